package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gwillem/roarm-follower/pkg/host"
	"github.com/gwillem/roarm-follower/pkg/logger"
)

type RecordCommand struct {
	Ports       []string      `short:"p" long:"port" description:"Serial port to read; repeat for several arms (default: scan all ports)"`
	Output      string        `short:"o" long:"output" description:"Directory for JSONL files (default from config)"`
	Duration    time.Duration `short:"d" long:"duration" description:"Stop after this long (default: until interrupted)"`
	Broker      string        `long:"broker" description:"MQTT broker URL, e.g. mqtt://localhost:1883/lab"`
	MetricsAddr string        `long:"metrics" description:"Serve Prometheus metrics on this address, e.g. :9102"`
	BaudRate    int           `long:"baud" default:"115200" description:"Serial baud rate"`
	Quiet       bool          `short:"q" long:"quiet" description:"Do not print samples"`
}

func (c *RecordCommand) Execute(args []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	rc := cfg.Record
	if c.Output != "" {
		rc.OutputDir = c.Output
	}
	if c.Broker != "" {
		rc.Broker = c.Broker
	}
	if c.MetricsAddr != "" {
		rc.MetricsAddr = c.MetricsAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if c.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Duration)
		defer cancel()
	}
	ctx = logger.WithName(ctx, "record")

	arms, err := c.findArms(ctx)
	if err != nil {
		return err
	}

	var sinks []host.SampleSink
	if !c.Quiet {
		sinks = append(sinks, host.Console{W: os.Stdout})
	}

	if rc.Broker != "" {
		pub, err := host.NewPublisherFromURL(rc.Broker)
		if err != nil {
			return err
		}
		if err := pub.Connect(5 * time.Second); err != nil {
			return err
		}
		defer pub.Close()
		logger.Infof(ctx, "Publishing to %s", pub.Topic("<arm_id>"))
		sinks = append(sinks, pub)
	}

	var metrics *host.Metrics
	if rc.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics = host.NewMetrics(reg)
		stopMetrics := serveMetrics(ctx, rc.MetricsAddr, reg)
		defer stopMetrics()
	}

	rec := host.NewRecorder(host.RecorderConfig{
		OutputDir: rc.OutputDir,
		BaudRate:  c.BaudRate,
		Metrics:   metrics,
		Sinks:     sinks,
	})

	logger.Infof(ctx, "Recording %d arm(s), press Ctrl+C to stop", len(arms))
	if err := rec.Run(ctx, arms); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Infof(ctx, "Recording stopped")
	return nil
}

// findArms maps arm_id to port, probing the given ports or all ports.
func (c *RecordCommand) findArms(ctx context.Context) (map[string]string, error) {
	ports := c.Ports
	if len(ports) == 0 {
		all, err := host.ListPorts()
		if err != nil {
			return nil, err
		}
		ports = all
	}
	logger.Infof(ctx, "Scanning %d port(s) for follower arms...", len(ports))

	d := &host.Detector{BaudRate: c.BaudRate}
	arms := d.FindArms(ctx, ports)
	if len(arms) == 0 {
		return nil, fmt.Errorf("%w on %d port(s)", host.ErrNoArm, len(ports))
	}
	return arms, nil
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Infof(ctx, "Serving metrics on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf(ctx, "Metrics server: %v", err)
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}
