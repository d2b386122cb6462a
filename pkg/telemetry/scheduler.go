package telemetry

import (
	"context"
	"time"

	"github.com/gwillem/roarm-follower/pkg/logger"
	"github.com/gwillem/roarm-follower/pkg/mode"
)

const (
	// ReportFrequency is the target report rate in Hz.
	ReportFrequency = 50

	// ReportInterval is the minimum spacing between reports in milliseconds.
	ReportInterval uint32 = 1000 / ReportFrequency
)

// Emitter writes one report.
type Emitter interface {
	Emit(ctx context.Context)
}

// Scheduler decides on each loop iteration whether a report is due.
type Scheduler struct {
	gate    mode.Source
	emitter Emitter
	clock   Clock

	lastReport uint32
	reports    uint64
}

// NewScheduler creates a scheduler with its last report time at zero.
func NewScheduler(gate mode.Source, emitter Emitter, clock Clock) *Scheduler {
	return &Scheduler{
		gate:    gate,
		emitter: emitter,
		clock:   clock,
	}
}

// Tick emits a report if the mode allows it and at least ReportInterval has
// passed since the previous one. It is safe to call far more often than the
// report rate and never panics out of the loop.
func (s *Scheduler) Tick(ctx context.Context) {
	if !s.gate.Mode().Reporting() {
		return
	}

	now := s.clock.Millis()
	// Unsigned subtraction stays correct across the 2^32 wrap.
	if now-s.lastReport < ReportInterval {
		return
	}

	s.emit(ctx)
	s.lastReport = now
	s.reports++
}

func (s *Scheduler) emit(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf(ctx, "Report emission panicked: %v", r)
		}
	}()
	s.emitter.Emit(ctx)
}

// LastReport returns the clock value of the most recent report.
func (s *Scheduler) LastReport() uint32 {
	return s.lastReport
}

// Reports returns the number of reports emitted so far.
func (s *Scheduler) Reports() uint64 {
	return s.reports
}

// Interval returns ReportInterval as a duration.
func Interval() time.Duration {
	return time.Duration(ReportInterval) * time.Millisecond
}
