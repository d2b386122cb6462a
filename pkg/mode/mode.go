// Package mode defines the operating role of an arm. Only the follower role
// reports telemetry.
package mode

import (
	"fmt"
	"strconv"
	"strings"
)

// Mode is the operating role. Values match the ESP-NOW mode numbers of the
// arm firmware ({"T":301,"mode":N}).
type Mode int

const (
	Standalone      Mode = 0
	LeaderBroadcast Mode = 1
	LeaderSingle    Mode = 2
	Follower        Mode = 3
)

var names = map[Mode]string{
	Standalone:      "standalone",
	LeaderBroadcast: "leader-broadcast",
	LeaderSingle:    "leader-single",
	Follower:        "follower",
}

// String returns the configuration name of m.
func (m Mode) String() string {
	if s, ok := names[m]; ok {
		return s
	}
	return "mode(" + strconv.Itoa(int(m)) + ")"
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	_, ok := names[m]
	return ok
}

// Reporting reports whether telemetry is enabled in m.
func (m Mode) Reporting() bool {
	return m == Follower
}

// Parse accepts a mode name or its number.
func Parse(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range names {
		if s == name {
			return m, nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && Mode(n).Valid() {
		return Mode(n), nil
	}
	return Standalone, fmt.Errorf("unknown mode %q", s)
}

// Source exposes the current mode read-only.
type Source interface {
	Mode() Mode
}

// Holder stores the process-wide mode. Only configuration and command
// handling change it.
type Holder struct {
	m Mode
}

// NewHolder returns a holder starting in m.
func NewHolder(m Mode) *Holder {
	return &Holder{m: m}
}

// Mode implements Source.
func (h *Holder) Mode() Mode {
	return h.m
}

// Set changes the mode.
func (h *Holder) Set(m Mode) {
	h.m = m
}
