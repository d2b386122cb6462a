package follower

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gwillem/roarm-follower/pkg/identity"
	"github.com/gwillem/roarm-follower/pkg/logger"
	"github.com/gwillem/roarm-follower/pkg/mode"
)

// Command codes accepted on the host link.
const (
	CmdSetMode        = 301 // {"T":301,"mode":3}, or "mode":-1 to query
	CmdSetArmIdentity = 400 // {"T":400,"arm_id":"follower_left"}
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ModeQuery as the mode of a T:301 command asks for the current mode.
const ModeQuery = -1

var (
	errMalformed   = errors.New("malformed command")
	errLineTooLong = fmt.Errorf("%w: line longer than %d bytes", errMalformed, maxCommandLine)
)

// Command is an inbound JSON command.
type Command struct {
	T     int     `json:"T"`
	ArmID *string `json:"arm_id,omitempty"`
	Mode  *int    `json:"mode,omitempty"`
}

// Reply is written back on the link for every command.
type Reply struct {
	Status string `json:"status"`
	ArmID  string `json:"arm_id,omitempty"`
	Mode   *int   `json:"mode,omitempty"`
	Error  string `json:"error,omitempty"`
}

// HandleCommand parses and executes one command line and writes the reply.
// Blank lines are ignored.
func (d *Device) HandleCommand(ctx context.Context, line []byte) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}

	reply := d.execute(ctx, line)
	d.writeReply(ctx, reply)
}

func (d *Device) execute(ctx context.Context, line []byte) Reply {
	var cmd Command
	if err := json.Unmarshal(line, &cmd); err != nil {
		logger.DebugKV(ctx, "Ignoring malformed command", "line", string(line), "error", err)
		return errorReply(errMalformed)
	}

	switch cmd.T {
	case CmdSetArmIdentity:
		if cmd.ArmID == nil {
			return errorReply(fmt.Errorf("%w: missing arm_id", identity.ErrInvalid))
		}
		if err := identity.Validate(*cmd.ArmID); err != nil {
			return errorReply(err)
		}
		// A persistence failure still changes the session identity; the reply
		// reports what is now in effect.
		_ = d.identity.Set(ctx, *cmd.ArmID)
		return Reply{Status: StatusOK, ArmID: d.identity.Get()}

	case CmdSetMode:
		if cmd.Mode == nil || *cmd.Mode == ModeQuery {
			n := int(d.mode.Mode())
			return Reply{Status: StatusOK, Mode: &n}
		}
		m := mode.Mode(*cmd.Mode)
		if !m.Valid() {
			return errorReply(fmt.Errorf("unknown mode %d", *cmd.Mode))
		}
		d.setMode(ctx, m)
		n := int(m)
		return Reply{Status: StatusOK, Mode: &n}

	default:
		return errorReply(fmt.Errorf("unknown command %d", cmd.T))
	}
}

// RejectCommand answers a line that could not be read with an error reply.
func (d *Device) RejectCommand(ctx context.Context, err error) {
	d.writeReply(ctx, errorReply(err))
}

func (d *Device) writeReply(ctx context.Context, reply Reply) {
	data, err := json.Marshal(reply)
	if err != nil {
		logger.Errorf(ctx, "Encode reply: %v", err)
		return
	}
	if _, err := d.link.Write(append(data, '\n')); err != nil {
		logger.Debugf(ctx, "Reply write failed: %v", err)
	}
}

func errorReply(err error) Reply {
	return Reply{Status: StatusError, Error: err.Error()}
}
