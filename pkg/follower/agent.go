package follower

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gwillem/roarm-follower/pkg/logger"
)

// maxCommandLine bounds a single inbound command.
const maxCommandLine = 4096

// Agent drives a Device from a cooperative main loop.
type Agent struct {
	device   *Device
	feedback StateReader
	commands io.Reader
	hz       int

	mu      sync.Mutex
	running bool
	inbox   chan inbound
}

// inbound is one line from the link, or the reason it could not be read.
type inbound struct {
	line []byte
	err  error
}

// AgentConfig holds configuration for the agent.
type AgentConfig struct {
	Device   *Device
	Feedback StateReader
	// Commands is read for inbound command lines. May be nil.
	Commands io.Reader
	// Hz is the main loop rate; 0 means 200.
	Hz int
}

// NewAgent creates a new agent.
func NewAgent(cfg AgentConfig) (*Agent, error) {
	if cfg.Device == nil {
		return nil, errors.New("device is required")
	}
	if cfg.Feedback == nil {
		return nil, errors.New("feedback source is required")
	}
	if cfg.Hz <= 0 {
		cfg.Hz = 200
	}

	return &Agent{
		device:   cfg.Device,
		feedback: cfg.Feedback,
		commands: cfg.Commands,
		hz:       cfg.Hz,
		inbox:    make(chan inbound, 16),
	}, nil
}

// Hz returns the main loop frequency.
func (a *Agent) Hz() int {
	return a.hz
}

// Run initializes the device and runs the main loop until ctx is done.
func (a *Agent) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("already running")
	}
	a.running = true
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	a.device.Init(ctx)

	if a.commands != nil {
		go a.readCommands(ctx)
	}

	logger.Infof(ctx, "Follower loop started at %d Hz", a.hz)

	// Control loop
	ticker := time.NewTicker(time.Second / time.Duration(a.hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.InfoKV(ctx, "Follower loop stopped", "reports", a.device.Reports())
			return ctx.Err()
		case <-ticker.C:
			a.Step(ctx)
		}
	}
}

// Step runs one loop iteration: pending commands, feedback refresh, report tick.
func (a *Agent) Step(ctx context.Context) {
	a.drainInbox(ctx)
	a.device.Refresh(ctx, a.feedback)
	a.device.Tick(ctx)
}

// Post queues a command line for the next iteration. It never blocks; lines
// are dropped when the inbox is full.
func (a *Agent) Post(ctx context.Context, line []byte) {
	a.post(ctx, inbound{line: line})
}

func (a *Agent) post(ctx context.Context, msg inbound) {
	select {
	case a.inbox <- msg:
	default:
		logger.Warnf(ctx, "Command inbox full, dropping %q", msg.line)
	}
}

func (a *Agent) drainInbox(ctx context.Context) {
	for {
		select {
		case msg := <-a.inbox:
			if msg.err != nil {
				a.device.RejectCommand(ctx, msg.err)
				continue
			}
			a.device.HandleCommand(ctx, msg.line)
		default:
			return
		}
	}
}

// readCommands forwards link lines to the inbox. A line longer than
// maxCommandLine is discarded up to its newline and answered with an error.
func (a *Agent) readCommands(ctx context.Context) {
	r := bufio.NewReaderSize(a.commands, maxCommandLine)
	tooLong := false
	for {
		chunk, err := r.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			tooLong = true
			continue
		}

		switch {
		case tooLong:
			logger.Debugf(ctx, "Discarding command line longer than %d bytes", maxCommandLine)
			a.post(ctx, inbound{err: errLineTooLong})
			tooLong = false
		case len(chunk) > 0:
			a.Post(ctx, append([]byte(nil), chunk...))
		}

		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				logger.Debugf(ctx, "Command reader reached end of input")
				return
			}
			logger.Warnf(ctx, "Command reader stopped: %v", err)
			return
		}
	}
}
