package host

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts what the recorder sees per arm.
type Metrics struct {
	samples      *prometheus.CounterVec
	decodeErrors *prometheus.CounterVec
	skipped      *prometheus.CounterVec
	sinkErrors   *prometheus.CounterVec
	lastReportMS *prometheus.GaugeVec
}

// NewMetrics creates the recorder metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roarm_samples_received_total",
			Help: "Position reports accepted from a follower arm.",
		}, []string{"arm_id"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roarm_decode_errors_total",
			Help: "Lines on a follower port that were not valid JSON.",
		}, []string{"port"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roarm_lines_skipped_total",
			Help: "Valid JSON lines that were not reports of the expected arm.",
		}, []string{"port"}),
		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roarm_sink_errors_total",
			Help: "Samples a sink failed to write.",
		}, []string{"arm_id"}),
		lastReportMS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "roarm_last_report_timestamp_ms",
			Help: "Device timestamp of the most recent report.",
		}, []string{"arm_id"}),
	}
	reg.MustRegister(m.samples, m.decodeErrors, m.skipped, m.sinkErrors, m.lastReportMS)
	return m
}

func (m *Metrics) observeSample(s Sample) {
	if m == nil {
		return
	}
	m.samples.WithLabelValues(s.ArmID).Inc()
	m.lastReportMS.WithLabelValues(s.ArmID).Set(float64(s.T))
}

func (m *Metrics) observeDecodeError(port string) {
	if m == nil {
		return
	}
	m.decodeErrors.WithLabelValues(port).Inc()
}

func (m *Metrics) observeSkipped(port string) {
	if m == nil {
		return
	}
	m.skipped.WithLabelValues(port).Inc()
}

func (m *Metrics) observeSinkError(armID string) {
	if m == nil {
		return
	}
	m.sinkErrors.WithLabelValues(armID).Inc()
}
