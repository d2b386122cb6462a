package follower

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gwillem/roarm-follower/pkg/identity"
	"github.com/gwillem/roarm-follower/pkg/mode"
	"github.com/gwillem/roarm-follower/pkg/prefs"
	"github.com/gwillem/roarm-follower/pkg/robot"
	"github.com/gwillem/roarm-follower/pkg/telemetry"
)

var errTestFeedback = errors.New("servo timeout")

type manualClock struct{ now uint32 }

func (c *manualClock) Millis() uint32 { return c.now }

type stubFeedback struct {
	state robot.State
	err   error
	reads int
}

func (s *stubFeedback) ReadState(context.Context) (robot.State, error) {
	s.reads++
	return s.state, s.err
}

type recordingDisplay struct {
	ids   []string
	modes []mode.Mode
}

func (r *recordingDisplay) NotifyIdentity(id string) { r.ids = append(r.ids, id) }
func (r *recordingDisplay) NotifyMode(m mode.Mode)   { r.modes = append(r.modes, m) }

// syncBuffer is a bytes.Buffer safe for the agent goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	dir     string
	link    *bytes.Buffer
	clock   *manualClock
	display *recordingDisplay
	device  *Device
}

func newFixture(t *testing.T, m mode.Mode) *fixture {
	t.Helper()
	return newFixtureIn(t, t.TempDir(), m)
}

func newFixtureIn(t *testing.T, dir string, m mode.Mode) *fixture {
	t.Helper()

	store, err := prefs.Open(dir)
	require.NoError(t, err)
	idStore, err := identity.NewPrefsStore(context.Background(), store)
	require.NoError(t, err)

	f := &fixture{
		dir:     dir,
		link:    new(bytes.Buffer),
		clock:   new(manualClock),
		display: new(recordingDisplay),
	}
	f.device = NewDevice(DeviceConfig{
		Store:   idStore,
		Display: f.display,
		Mode:    m,
		Link:    f.link,
		Clock:   f.clock,
	})
	f.device.Init(context.Background())
	return f
}

func (f *fixture) lines(t *testing.T) []map[string]any {
	t.Helper()

	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(f.link.Bytes()))
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	return out
}

func TestDevice_SetIdentityCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t, mode.Follower)
	require.Equal(t, identity.Unknown, f.device.Identity())

	f.device.HandleCommand(context.Background(), []byte(`{"T":400,"arm_id":"follower_left"}`))

	require.Equal(t, `{"status":"ok","arm_id":"follower_left"}`+"\n", f.link.String())
	require.Equal(t, "follower_left", f.device.Identity())
	require.Equal(t, []string{identity.Unknown, "follower_left"}, f.display.ids)

	// Restart over the same prefs directory.
	restarted := newFixtureIn(t, f.dir, mode.Follower)
	require.Equal(t, "follower_left", restarted.device.Identity())
}

func TestDevice_MalformedCommandsLeaveIdentityAlone(t *testing.T) {
	t.Parallel()

	f := newFixture(t, mode.Follower)
	f.device.HandleCommand(context.Background(), []byte(`{"T":400,"arm_id":"follower_right"}`))
	f.link.Reset()

	bad := []string{
		`{"T":400}`,
		`{"T":400,"arm_id":""}`,
		`{"T":400,"arm_id":"has space"}`,
		`{"T":400,"arm_id":42}`,
		`not json`,
		`{"T":999}`,
		`{"T":301,"mode":12}`,
	}
	for _, line := range bad {
		f.device.HandleCommand(context.Background(), []byte(line))
	}
	f.device.HandleCommand(context.Background(), []byte("   "))

	replies := f.lines(t)
	require.Len(t, replies, len(bad))
	for i, r := range replies {
		require.Equal(t, StatusError, r["status"], bad[i])
		require.NotEmpty(t, r["error"], bad[i])
	}
	require.Equal(t, "follower_right", f.device.Identity())
	require.Equal(t, mode.Follower, f.device.Mode())
}

func TestDevice_SetModeCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t, mode.Standalone)
	f.device.HandleCommand(context.Background(), []byte(`{"T":301,"mode":3}`))

	require.Equal(t, `{"status":"ok","mode":3}`+"\n", f.link.String())
	require.Equal(t, mode.Follower, f.device.Mode())
	require.Equal(t, []mode.Mode{mode.Standalone, mode.Follower}, f.display.modes)
}

func TestDevice_ModeQuery(t *testing.T) {
	t.Parallel()

	f := newFixture(t, mode.LeaderSingle)
	f.device.HandleCommand(context.Background(), []byte(`{"T":301,"mode":-1}`))
	f.device.HandleCommand(context.Background(), []byte(`{"T":301}`))

	require.Equal(t, `{"status":"ok","mode":2}`+"\n"+`{"status":"ok","mode":2}`+"\n", f.link.String())
	require.Equal(t, mode.LeaderSingle, f.device.Mode())
	require.Equal(t, []mode.Mode{mode.LeaderSingle}, f.display.modes)
}

func TestAgent_StepReportsLatestFeedback(t *testing.T) {
	t.Parallel()

	f := newFixture(t, mode.Follower)
	fb := &stubFeedback{state: robot.State{
		Joints: robot.Joints{Base: 0.5, Gripper: 1},
		Pose:   robot.Pose{X: 100, Z: 50},
	}}
	agent, err := NewAgent(AgentConfig{Device: f.device, Feedback: fb})
	require.NoError(t, err)

	ctx := context.Background()
	agent.Post(ctx, []byte(`{"T":400,"arm_id":"follower_left"}`))

	for ms := uint32(0); ms <= 100; ms += 5 {
		f.clock.now = ms
		agent.Step(ctx)
	}

	lines := f.lines(t)
	require.Len(t, lines, 6) // one reply + reports at 20..100
	require.Equal(t, StatusOK, lines[0]["status"])

	var prev float64
	for _, rec := range lines[1:] {
		require.Len(t, rec, len(telemetry.Keys))
		for _, k := range telemetry.Keys {
			require.Contains(t, rec, k)
		}
		require.Equal(t, "follower_left", rec["arm_id"])
		require.Equal(t, 0.5, rec["b"])
		require.Equal(t, 100.0, rec["x"])
		ts := rec["t"].(float64)
		require.GreaterOrEqual(t, ts, prev)
		prev = ts
	}
	require.Equal(t, 21, fb.reads)
}

func TestAgent_FeedbackErrorsKeepLastSample(t *testing.T) {
	t.Parallel()

	f := newFixture(t, mode.Follower)
	fb := &stubFeedback{state: robot.State{Joints: robot.Joints{Elbow: 1.25}}}
	agent, err := NewAgent(AgentConfig{Device: f.device, Feedback: fb})
	require.NoError(t, err)

	ctx := context.Background()
	agent.Step(ctx)

	fb.err = errTestFeedback
	fb.state = robot.State{}
	for ms := uint32(1); ms <= 40; ms++ {
		f.clock.now = ms
		agent.Step(ctx)
	}

	lines := f.lines(t)
	require.Len(t, lines, 2)
	for _, rec := range lines {
		require.Equal(t, 1.25, rec["e"])
	}
}

func TestAgent_GatedModeEmitsNothing(t *testing.T) {
	t.Parallel()

	f := newFixture(t, mode.LeaderBroadcast)
	agent, err := NewAgent(AgentConfig{Device: f.device, Feedback: &stubFeedback{}})
	require.NoError(t, err)

	for ms := uint32(0); ms < 2000; ms++ {
		f.clock.now = ms
		agent.Step(context.Background())
	}
	require.Zero(t, f.link.Len())
}

func TestAgent_RunReadsCommandsFromLink(t *testing.T) {
	t.Parallel()

	store, err := prefs.Open(t.TempDir())
	require.NoError(t, err)
	idStore, err := identity.NewPrefsStore(context.Background(), store)
	require.NoError(t, err)

	out := new(syncBuffer)
	device := NewDevice(DeviceConfig{Store: idStore, Mode: mode.Follower, Link: out})

	pr, pw := io.Pipe()
	agent, err := NewAgent(AgentConfig{Device: device, Feedback: &stubFeedback{}, Commands: pr, Hz: 500})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- agent.Run(ctx) }()

	_, err = pw.Write([]byte(`{"T":400,"arm_id":"follower_right"}` + "\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), `"arm_id":"follower_right","t":`)
	}, 2*time.Second, 10*time.Millisecond)
	require.Contains(t, out.String(), `{"status":"ok","arm_id":"follower_right"}`)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	pw.Close()
}

func TestAgent_OversizedLineDoesNotStopCommands(t *testing.T) {
	t.Parallel()

	store, err := prefs.Open(t.TempDir())
	require.NoError(t, err)
	idStore, err := identity.NewPrefsStore(context.Background(), store)
	require.NoError(t, err)

	out := new(syncBuffer)
	device := NewDevice(DeviceConfig{Store: idStore, Mode: mode.Standalone, Link: out})

	pr, pw := io.Pipe()
	agent, err := NewAgent(AgentConfig{Device: device, Feedback: &stubFeedback{}, Commands: pr, Hz: 500})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- agent.Run(ctx) }()

	go func() {
		pw.Write([]byte(strings.Repeat("x", 5000) + "\n"))
		pw.Write([]byte(`{"T":400,"arm_id":"follower_right"}` + "\n"))
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), `{"status":"ok","arm_id":"follower_right"}`)
	}, 2*time.Second, 10*time.Millisecond)

	replies := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, replies, 2)
	require.Contains(t, replies[0], `"status":"error"`)
	require.Contains(t, replies[0], "line longer than")

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	pw.Close()
	require.Equal(t, "follower_right", device.Identity())
}

func TestNewAgent_RequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := NewAgent(AgentConfig{})
	require.Error(t, err)

	f := newFixture(t, mode.Follower)
	_, err = NewAgent(AgentConfig{Device: f.device})
	require.Error(t, err)

	a, err := NewAgent(AgentConfig{Device: f.device, Feedback: &stubFeedback{}})
	require.NoError(t, err)
	require.Equal(t, 200, a.Hz())
}
