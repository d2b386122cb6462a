package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.bug.st/serial"

	"github.com/gwillem/roarm-follower/pkg/display"
	"github.com/gwillem/roarm-follower/pkg/follower"
	"github.com/gwillem/roarm-follower/pkg/identity"
	"github.com/gwillem/roarm-follower/pkg/logger"
	"github.com/gwillem/roarm-follower/pkg/mode"
	"github.com/gwillem/roarm-follower/pkg/prefs"
	"github.com/gwillem/roarm-follower/pkg/robot"
	"github.com/gwillem/roarm-follower/pkg/telemetry"
)

type FollowerCommand struct {
	Sim  bool   `long:"sim" description:"Simulate the arm instead of reading servos"`
	Mode string `long:"mode" description:"Operating mode at start (standalone, leader-broadcast, leader-single, follower or 0-3)"`
	Link string `long:"link" description:"Serial port to the host; '-' uses stdin/stdout"`
	Hz   int    `long:"hz" description:"Main loop frequency"`
	Limp bool   `long:"limp" description:"Turn servo torque off so the arm can be moved by hand"`
}

func (c *FollowerCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.Sim)
	if err != nil {
		return err
	}
	if c.Sim {
		cfg.Follower.Sim = true
	}
	if c.Mode != "" {
		cfg.Mode = c.Mode
	}
	if c.Link != "" {
		cfg.Link.Port = c.Link
	}
	if c.Hz > 0 {
		cfg.LoopHz = c.Hz
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	initial, err := mode.Parse(cfg.Mode)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithName(ctx, "follower")

	store, err := prefs.Open(cfg.PrefsDir)
	if err != nil {
		return err
	}
	ids, err := identity.NewPrefsStore(ctx, store)
	if err != nil {
		return err
	}

	feedback, closeFeedback, err := openFeedback(ctx, cfg, c.Limp)
	if err != nil {
		return err
	}
	defer closeFeedback()

	commands, link, closeLink, err := openLink(cfg.Link)
	if err != nil {
		return err
	}
	defer closeLink()

	var status display.Display = display.NewTerminal(os.Stderr)
	if opts.Verbose {
		status = display.Multi{status, display.NewLog(ctx)}
	}

	device := follower.NewDevice(follower.DeviceConfig{
		Store:   ids,
		Display: status,
		Mode:    initial,
		Link:    link,
	})

	agent, err := follower.NewAgent(follower.AgentConfig{
		Device:   device,
		Feedback: feedback,
		Commands: commands,
		Hz:       cfg.LoopHz,
	})
	if err != nil {
		return err
	}

	logger.Infof(ctx, "Reporting every %s while in %s mode", telemetry.Interval(), mode.Follower)
	if err := agent.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func openFeedback(ctx context.Context, cfg *robot.Config, limp bool) (follower.StateReader, func(), error) {
	if cfg.Follower.Sim {
		sim := robot.NewSimArm(cfg.Geometry)
		return sim, func() { sim.Close() }, nil
	}

	arm, err := robot.NewArm(cfg.Follower.Port, cfg.Follower.Calibration, cfg.Geometry)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to follower arm on %s: %w", cfg.Follower.Port, err)
	}
	if limp {
		if err := arm.Disable(ctx); err != nil {
			arm.Close()
			return nil, nil, fmt.Errorf("disable torque: %w", err)
		}
		logger.Infof(ctx, "Torque off, the arm can be moved by hand")
	}
	return arm, func() { arm.Close() }, nil
}

// openLink returns the command source and report sink of the host link.
func openLink(lc robot.LinkConfig) (io.Reader, io.Writer, func(), error) {
	if lc.Port == "" || lc.Port == "-" {
		return os.Stdin, os.Stdout, func() {}, nil
	}

	port, err := serial.Open(lc.Port, &serial.Mode{BaudRate: lc.BaudRate})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open host link %s: %w", lc.Port, err)
	}
	return port, port, func() { port.Close() }, nil
}
