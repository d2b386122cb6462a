package host

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gwillem/roarm-follower/pkg/logger"
)

// Stream reads report lines of one arm from a port.
type Stream struct {
	Port    string
	ArmID   string
	Metrics *Metrics
	Sinks   []SampleSink
	Now     func() time.Time
}

// Read consumes r until EOF or ctx is done. Undecodable lines and reports of
// other arms are skipped. A failing sink is logged and counted but does not
// stop the stream. It returns nil when ctx is cancelled.
func (s *Stream) Read(ctx context.Context, r io.Reader) error {
	now := s.Now
	if now == nil {
		now = time.Now
	}

	failing := make([]bool, len(s.Sinks))
	sc := bufio.NewScanner(&pollReader{ctx: ctx, r: r})
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}

		rec, err := DecodeRecord(line)
		switch {
		case errors.Is(err, errNotRecord):
			s.Metrics.observeSkipped(s.Port)
			continue
		case err != nil:
			s.Metrics.observeDecodeError(s.Port)
			continue
		case s.ArmID != "" && rec.ArmID != s.ArmID:
			s.Metrics.observeSkipped(s.Port)
			continue
		}

		sample := NewSample(rec, now())
		s.Metrics.observeSample(sample)
		for i, sink := range s.Sinks {
			err := sink.WriteSample(sample)
			if err != nil {
				s.Metrics.observeSinkError(rec.ArmID)
				if !failing[i] {
					logger.ErrorKV(ctx, "Sample sink failing, still reading", "arm_id", rec.ArmID, "sink", fmt.Sprintf("%T", sink), "error", err)
				}
			} else if failing[i] {
				logger.InfoKV(ctx, "Sample sink recovered", "arm_id", rec.ArmID, "sink", fmt.Sprintf("%T", sink))
			}
			failing[i] = err != nil
		}
	}

	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("read %s: %w", s.Port, err)
	}
	return nil
}

// RecorderConfig holds configuration for a Recorder.
type RecorderConfig struct {
	// OutputDir receives one JSONL file per arm. Empty disables files.
	OutputDir string
	BaudRate  int
	Open      Opener
	Metrics   *Metrics
	// Sinks receive samples of every arm, e.g. a Publisher or Console.
	Sinks []SampleSink
}

// Recorder reads several arms at once.
type Recorder struct {
	cfg RecorderConfig
	now func() time.Time
}

// NewRecorder creates a recorder.
func NewRecorder(cfg RecorderConfig) *Recorder {
	if cfg.Open == nil {
		cfg.Open = OpenSerial
	}
	return &Recorder{cfg: cfg, now: time.Now}
}

// Run records every arm in arms (arm_id -> port) until ctx is done. If one
// arm fails the others are stopped and the first error is returned.
func (r *Recorder) Run(ctx context.Context, arms map[string]string) error {
	g, gctx := errgroup.WithContext(ctx)
	for armID, port := range arms {
		g.Go(func() error {
			return r.recordArm(gctx, armID, port)
		})
	}
	return g.Wait()
}

func (r *Recorder) recordArm(ctx context.Context, armID, port string) error {
	ctx = logger.WithKV(ctx, "arm_id", armID, "port", port)

	conn, err := r.cfg.Open(port, r.cfg.BaudRate)
	if err != nil {
		return err
	}
	defer conn.Close()

	sinks := append([]SampleSink(nil), r.cfg.Sinks...)
	if r.cfg.OutputDir != "" {
		file, err := CreateJSONLFile(r.cfg.OutputDir, armID, r.now())
		if err != nil {
			return err
		}
		defer file.Close()
		logger.Infof(ctx, "Saving %s data to %s", armID, file.Path())
		sinks = append(sinks, file)
	}

	logger.Infof(ctx, "Starting reader for %s on %s", armID, port)
	defer logger.Infof(ctx, "Stopped reader for %s", armID)

	stream := &Stream{
		Port:    port,
		ArmID:   armID,
		Metrics: r.cfg.Metrics,
		Sinks:   sinks,
		Now:     r.now,
	}
	return stream.Read(ctx, conn)
}
