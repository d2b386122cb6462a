// Package follower runs the follower side of a leader/follower arm pair: it
// samples joint feedback, reports it to the host at a fixed rate and handles
// identity commands arriving on the same link.
package follower

import (
	"context"
	"io"

	"github.com/gwillem/roarm-follower/pkg/display"
	"github.com/gwillem/roarm-follower/pkg/identity"
	"github.com/gwillem/roarm-follower/pkg/logger"
	"github.com/gwillem/roarm-follower/pkg/mode"
	"github.com/gwillem/roarm-follower/pkg/robot"
	"github.com/gwillem/roarm-follower/pkg/telemetry"
)

// StateReader supplies fresh joint feedback.
type StateReader interface {
	ReadState(ctx context.Context) (robot.State, error)
}

// DeviceConfig holds the collaborators of a Device.
type DeviceConfig struct {
	Store   identity.Store
	Display display.Display
	Mode    mode.Mode
	Link    io.Writer
	Clock   telemetry.Clock
}

// Device owns all mutable follower state: cached identity, operating mode,
// latest feedback and the report schedule. It belongs to one goroutine.
type Device struct {
	identity  *identity.Manager
	mode      *mode.Holder
	display   display.Display
	link      io.Writer
	state     robot.State
	scheduler *telemetry.Scheduler

	feedbackFailing bool
}

// NewDevice wires a device. Call Init before the first Step.
func NewDevice(cfg DeviceConfig) *Device {
	if cfg.Clock == nil {
		cfg.Clock = telemetry.NewSystemClock()
	}

	d := &Device{
		mode:    mode.NewHolder(cfg.Mode),
		display: cfg.Display,
		link:    cfg.Link,
	}

	var notifier identity.Notifier
	if cfg.Display != nil {
		notifier = cfg.Display
	}
	d.identity = identity.NewManager(cfg.Store, notifier)

	enc := telemetry.NewEncoder(cfg.Link, cfg.Clock, d.identity, d)
	d.scheduler = telemetry.NewScheduler(d.mode, enc, cfg.Clock)

	return d
}

// Init loads the persisted identity and shows the starting status.
func (d *Device) Init(ctx context.Context) {
	d.identity.Init(ctx)
	if d.display != nil {
		d.display.NotifyMode(d.mode.Mode())
	}
	logger.InfoKV(ctx, "Follower initialized", "arm_id", d.identity.Get(), "mode", d.mode.Mode().String())
}

// Identity returns the current arm identity.
func (d *Device) Identity() string {
	return d.identity.Get()
}

// Mode returns the current operating mode.
func (d *Device) Mode() mode.Mode {
	return d.mode.Mode()
}

// State implements telemetry.StateSource.
func (d *Device) State() robot.State {
	return d.state
}

// Reports returns the number of reports emitted.
func (d *Device) Reports() uint64 {
	return d.scheduler.Reports()
}

// Refresh reads new feedback. On failure the previous sample is kept.
func (d *Device) Refresh(ctx context.Context, src StateReader) {
	st, err := src.ReadState(ctx)
	if err != nil {
		if !d.feedbackFailing {
			logger.Warnf(ctx, "Feedback read failed, reporting last sample: %v", err)
			d.feedbackFailing = true
		}
		return
	}
	if d.feedbackFailing {
		logger.Infof(ctx, "Feedback recovered")
		d.feedbackFailing = false
	}
	d.state = st
}

// Tick runs the report scheduler once.
func (d *Device) Tick(ctx context.Context) {
	d.scheduler.Tick(ctx)
}

func (d *Device) setMode(ctx context.Context, m mode.Mode) {
	d.mode.Set(m)
	if d.display != nil {
		d.display.NotifyMode(m)
	}
	logger.InfoKV(ctx, "Operating mode changed", "mode", m.String(), "reporting", m.Reporting())
}
