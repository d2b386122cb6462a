package host

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gwillem/roarm-follower/pkg/logger"
)

// DefaultDetectTimeout bounds how long a port is listened to for an arm_id.
const DefaultDetectTimeout = 2 * time.Second

// ErrNoArm is returned when no arm_id line arrives before the timeout.
var ErrNoArm = errors.New("no follower arm detected")

// Detector finds follower arms on serial ports.
type Detector struct {
	Open     Opener
	BaudRate int
	Timeout  time.Duration
}

// DetectArm listens on port and returns the first arm_id it sees.
func (d *Detector) DetectArm(ctx context.Context, port string) (string, error) {
	conn, err := d.opener()(port, d.BaudRate)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	return detectArmID(ctx, conn, time.Now().Add(d.timeout()))
}

// FindArms checks every port and maps each detected arm_id to its port.
// Ports are probed one after another; a second port reporting the same
// arm_id is logged and ignored.
func (d *Detector) FindArms(ctx context.Context, ports []string) map[string]string {
	arms := make(map[string]string)
	for _, port := range ports {
		if ctx.Err() != nil {
			break
		}
		armID, err := d.DetectArm(ctx, port)
		if err != nil {
			logger.Debugf(ctx, "No arm on %s: %v", port, err)
			continue
		}
		if prev, dup := arms[armID]; dup {
			logger.WarnKV(ctx, "Duplicate arm_id, ignoring port", "arm_id", armID, "kept", prev, "ignored", port)
			continue
		}
		logger.InfoKV(ctx, "Found follower arm", "arm_id", armID, "port", port)
		arms[armID] = port
	}
	return arms
}

func (d *Detector) opener() Opener {
	if d.Open != nil {
		return d.Open
	}
	return OpenSerial
}

func (d *Detector) timeout() time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return DefaultDetectTimeout
}

func detectArmID(ctx context.Context, r io.Reader, deadline time.Time) (string, error) {
	sc := bufio.NewScanner(&pollReader{ctx: ctx, r: r, deadline: deadline})
	for sc.Scan() {
		if armID, ok := armIDOf(sc.Bytes()); ok && armID != "" {
			return armID, nil
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, errDeadline) {
		return "", fmt.Errorf("detect arm: %w", err)
	}
	return "", ErrNoArm
}
