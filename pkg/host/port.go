package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate matches the follower's USB serial console.
const DefaultBaudRate = 115200

// pollInterval is the serial read timeout; reads return empty at this rate
// so that cancellation and deadlines are noticed.
const pollInterval = 100 * time.Millisecond

var errDeadline = errors.New("deadline reached")

// Opener opens a named port.
type Opener func(name string, baudRate int) (io.ReadWriteCloser, error)

// OpenSerial opens a serial port with a short read timeout.
func OpenSerial(name string, baudRate int) (io.ReadWriteCloser, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	port, err := serial.Open(name, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	if err := port.SetReadTimeout(pollInterval); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", name, err)
	}
	return port, nil
}

// ListPorts returns candidate serial ports, skipping Bluetooth ports on macOS.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list ports: %w", err)
	}
	var out []string
	for _, p := range ports {
		if strings.Contains(p, "Bluetooth") {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// pollReader retries the empty reads a timed-out serial port returns until
// data arrives, ctx is done or the deadline passes.
type pollReader struct {
	ctx      context.Context
	r        io.Reader
	deadline time.Time
}

func (p *pollReader) Read(b []byte) (int, error) {
	for {
		if err := p.ctx.Err(); err != nil {
			return 0, err
		}
		if !p.deadline.IsZero() && time.Now().After(p.deadline) {
			return 0, errDeadline
		}
		n, err := p.r.Read(b)
		if n > 0 || err != nil {
			return n, err
		}
	}
}
