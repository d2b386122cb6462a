package telemetry

import (
	"context"
	"encoding/json"
	"io"

	"github.com/gwillem/roarm-follower/pkg/logger"
	"github.com/gwillem/roarm-follower/pkg/robot"
)

// IdentitySource returns the current arm identity.
type IdentitySource interface {
	Get() string
}

// StateSource returns the latest feedback snapshot. The encoder only reads it.
type StateSource interface {
	State() robot.State
}

// Encoder serializes reports onto a fire-and-forget sink.
type Encoder struct {
	sink     io.Writer
	clock    Clock
	identity IdentitySource
	state    StateSource
	buf      []byte
}

// NewEncoder creates an encoder writing to sink.
func NewEncoder(sink io.Writer, clock Clock, identity IdentitySource, state StateSource) *Encoder {
	return &Encoder{
		sink:     sink,
		clock:    clock,
		identity: identity,
		state:    state,
	}
}

// Emit writes exactly one newline-terminated record. Write failures are not
// reported: nobody on the link acknowledges reports.
func (e *Encoder) Emit(ctx context.Context) {
	rec := NewRecord(e.identity.Get(), e.clock.Millis(), e.state.State())

	data, err := json.Marshal(rec)
	if err != nil {
		// NaN or Inf from upstream feedback.
		logger.Debugf(ctx, "Dropping report: %v", err)
		return
	}

	e.buf = append(append(e.buf[:0], data...), '\n')
	if _, err := e.sink.Write(e.buf); err != nil {
		logger.Debugf(ctx, "Report write failed: %v", err)
	}
}
