package host

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gwillem/roarm-follower/pkg/follower"
	"github.com/gwillem/roarm-follower/pkg/identity"
	"github.com/gwillem/roarm-follower/pkg/logger"
	"github.com/gwillem/roarm-follower/pkg/mode"
)

// DefaultReplyTimeout bounds how long SendCommand waits for a reply.
const DefaultReplyTimeout = 2 * time.Second

// ErrNoReply is returned when the arm does not answer in time.
var ErrNoReply = errors.New("no reply from arm")

// SendCommand writes cmd as one line to rw and waits for the first status
// reply. Position reports arriving in between are skipped.
func SendCommand(ctx context.Context, rw io.ReadWriter, cmd follower.Command, timeout time.Duration) (follower.Reply, error) {
	if timeout <= 0 {
		timeout = DefaultReplyTimeout
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return follower.Reply{}, err
	}
	if _, err := rw.Write(append(data, '\n')); err != nil {
		return follower.Reply{}, fmt.Errorf("send command %d: %w", cmd.T, err)
	}
	logger.Debugf(ctx, "Sent %s", data)

	sc := bufio.NewScanner(&pollReader{ctx: ctx, r: rw, deadline: time.Now().Add(timeout)})
	for sc.Scan() {
		var reply follower.Reply
		if err := json.Unmarshal(sc.Bytes(), &reply); err != nil || reply.Status == "" {
			continue
		}
		if reply.Status != follower.StatusOK {
			return reply, fmt.Errorf("arm rejected command %d: %s", cmd.T, reply.Error)
		}
		return reply, nil
	}
	if err := sc.Err(); err != nil && !errors.Is(err, errDeadline) {
		return follower.Reply{}, fmt.Errorf("read reply: %w", err)
	}
	return follower.Reply{}, ErrNoReply
}

// SetArmID asks the arm to persist a new identity.
func SetArmID(ctx context.Context, rw io.ReadWriter, armID string, timeout time.Duration) (follower.Reply, error) {
	if err := identity.Validate(armID); err != nil {
		return follower.Reply{}, err
	}
	return SendCommand(ctx, rw, follower.Command{T: follower.CmdSetArmIdentity, ArmID: &armID}, timeout)
}

// SetMode switches the arm's operating mode.
func SetMode(ctx context.Context, rw io.ReadWriter, m mode.Mode, timeout time.Duration) (follower.Reply, error) {
	if !m.Valid() {
		return follower.Reply{}, fmt.Errorf("invalid mode %d", int(m))
	}
	v := int(m)
	return SendCommand(ctx, rw, follower.Command{T: follower.CmdSetMode, Mode: &v}, timeout)
}
