package telemetry

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gwillem/roarm-follower/pkg/mode"
	"github.com/gwillem/roarm-follower/pkg/robot"
)

type manualClock struct {
	now uint32
}

func (c *manualClock) Millis() uint32 { return c.now }

type fixedIdentity string

func (f fixedIdentity) Get() string { return string(f) }

type mutableIdentity struct{ id string }

func (m *mutableIdentity) Get() string { return m.id }

type fixedState robot.State

func (f fixedState) State() robot.State { return robot.State(f) }

type failingWriter struct{ calls int }

func (w *failingWriter) Write([]byte) (int, error) {
	w.calls++
	return 0, errors.New("no host listening")
}

// countingEmitter records the clock value of every emission.
type countingEmitter struct {
	clock *manualClock
	at    []uint32
}

func (c *countingEmitter) Emit(context.Context) {
	c.at = append(c.at, c.clock.now)
}

var sampleState = robot.State{
	Joints: robot.Joints{Base: 0.1, Shoulder: -0.25, Elbow: 1.5, WristTilt: 0.3, WristRoll: -1, Gripper: 0.75},
	Pose:   robot.Pose{X: 312.5, Y: -10.25, Z: 200, Tilt: 0.125},
}

func decodeLines(t *testing.T, out *bytes.Buffer) []Record {
	t.Helper()

	var records []Record
	sc := bufio.NewScanner(out)
	for sc.Scan() {
		var rec Record
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, sc.Err())
	return records
}

// keyOrder returns the top-level keys of a JSON object in document order.
func keyOrder(t *testing.T, line string) []string {
	t.Helper()

	dec := json.NewDecoder(strings.NewReader(line))
	tok, err := dec.Token()
	require.NoError(t, err)
	require.Equal(t, json.Delim('{'), tok)

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		require.NoError(t, err)
		keys = append(keys, tok.(string))
		var skip json.RawMessage
		require.NoError(t, dec.Decode(&skip))
	}
	return keys
}

func TestEncoder_EmitsOneLineWithFixedKeys(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	enc := NewEncoder(&out, &manualClock{now: 1234}, fixedIdentity("follower_left"), fixedState(sampleState))

	enc.Emit(context.Background())

	line := out.String()
	require.True(t, strings.HasSuffix(line, "\n"))
	require.Equal(t, 1, strings.Count(line, "\n"))
	require.Equal(t, Keys, keyOrder(t, line))

	require.Equal(t,
		`{"arm_id":"follower_left","t":1234,"b":0.1,"s":-0.25,"e":1.5,"w":0.3,"r":-1,"g":0.75,"x":312.5,"y":-10.25,"z":200,"tilt":0.125}`+"\n",
		line)
}

func TestEncoder_WriteErrorsAreDropped(t *testing.T) {
	t.Parallel()

	w := &failingWriter{}
	enc := NewEncoder(w, &manualClock{}, fixedIdentity("unknown"), fixedState(sampleState))

	require.NotPanics(t, func() { enc.Emit(context.Background()) })
	require.Equal(t, 1, w.calls)
}

func TestEncoder_NonFiniteStateIsSkipped(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	bad := sampleState
	bad.Pose.X = math.NaN()
	enc := NewEncoder(&out, &manualClock{}, fixedIdentity("unknown"), fixedState(bad))

	enc.Emit(context.Background())
	require.Zero(t, out.Len())
}

func TestScheduler_GatedOutsideFollowerMode(t *testing.T) {
	t.Parallel()

	for _, m := range []mode.Mode{mode.Standalone, mode.LeaderBroadcast, mode.LeaderSingle, mode.Mode(9)} {
		clock := &manualClock{}
		em := &countingEmitter{clock: clock}
		s := NewScheduler(mode.NewHolder(m), em, clock)

		for i := 0; i < 5000; i += 7 {
			clock.now = uint32(i)
			s.Tick(context.Background())
		}
		clock.now = math.MaxUint32
		s.Tick(context.Background())

		require.Empty(t, em.at, m.String())
		require.Zero(t, s.LastReport(), m.String())
	}
}

func TestScheduler_RateBound(t *testing.T) {
	t.Parallel()

	clock := &manualClock{}
	em := &countingEmitter{clock: clock}
	s := NewScheduler(mode.NewHolder(mode.Follower), em, clock)

	// Ten ticks per millisecond for one simulated second.
	for ms := uint32(0); ms <= 1000; ms++ {
		clock.now = ms
		for i := 0; i < 10; i++ {
			s.Tick(context.Background())
		}
	}

	require.InDelta(t, 50, len(em.at), 1)
	require.EqualValues(t, len(em.at), s.Reports())
	for i := 1; i < len(em.at); i++ {
		require.GreaterOrEqual(t, em.at[i]-em.at[i-1], ReportInterval)
	}
}

func TestScheduler_SlowTicksNeverExceedRate(t *testing.T) {
	t.Parallel()

	clock := &manualClock{}
	em := &countingEmitter{clock: clock}
	s := NewScheduler(mode.NewHolder(mode.Follower), em, clock)

	for ms := uint32(0); ms <= 1000; ms += 33 {
		clock.now = ms
		s.Tick(context.Background())
	}

	require.Len(t, em.at, 30)
}

func TestScheduler_ModeSwitchStartsAndStopsReporting(t *testing.T) {
	t.Parallel()

	clock := &manualClock{}
	em := &countingEmitter{clock: clock}
	gate := mode.NewHolder(mode.Standalone)
	s := NewScheduler(gate, em, clock)

	run := func(from, to uint32) {
		for ms := from; ms < to; ms++ {
			clock.now = ms
			s.Tick(context.Background())
		}
	}

	run(0, 100)
	require.Empty(t, em.at)

	gate.Set(mode.Follower)
	run(100, 200)
	require.Len(t, em.at, 5)
	require.Equal(t, uint32(100), em.at[0])

	gate.Set(mode.LeaderSingle)
	run(200, 300)
	require.Len(t, em.at, 5)
}

func TestScheduler_Wraparound(t *testing.T) {
	t.Parallel()

	clock := &manualClock{now: math.MaxUint32 - 9}
	em := &countingEmitter{clock: clock}
	s := NewScheduler(mode.NewHolder(mode.Follower), em, clock)

	s.Tick(context.Background())
	require.Len(t, em.at, 1)

	// Step through the wrap one millisecond at a time for 200 ms.
	for i := 0; i < 200; i++ {
		clock.now++
		s.Tick(context.Background())
	}

	require.Len(t, em.at, 11)
	for i := 1; i < len(em.at); i++ {
		require.Equal(t, ReportInterval, em.at[i]-em.at[i-1])
	}
	// The first report after the wrap lands 20 ms after the last one before it.
	require.Equal(t, uint32(10), em.at[1])
}

func TestScheduler_RecordsTrackIdentityAndTime(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	clock := &manualClock{}
	id := &mutableIdentity{id: "unknown"}
	enc := NewEncoder(&out, clock, id, fixedState(sampleState))
	s := NewScheduler(mode.NewHolder(mode.Follower), enc, clock)

	for ms := uint32(0); ms <= 200; ms += 5 {
		if ms == 100 {
			id.id = "follower_right"
		}
		clock.now = ms
		s.Tick(context.Background())
	}

	records := decodeLines(t, &out)
	require.Len(t, records, 10)
	for i, rec := range records {
		if rec.T < 100 {
			require.Equal(t, "unknown", rec.ArmID)
		} else {
			require.Equal(t, "follower_right", rec.ArmID)
		}
		require.Equal(t, sampleState, rec.State())
		if i > 0 {
			require.GreaterOrEqual(t, rec.T, records[i-1].T)
		}
	}
}

func TestScheduler_RecoversFromEmitterPanic(t *testing.T) {
	t.Parallel()

	clock := &manualClock{now: 100}
	s := NewScheduler(mode.NewHolder(mode.Follower), panicEmitter{}, clock)

	require.NotPanics(t, func() { s.Tick(context.Background()) })
	require.Equal(t, uint32(100), s.LastReport())
}

type panicEmitter struct{}

func (panicEmitter) Emit(context.Context) { panic("boom") }
