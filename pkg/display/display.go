// Package display shows follower status to the operator. It stands in for
// the small on-arm screen: one line per update, written to a terminal.
package display

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/gwillem/roarm-follower/pkg/identity"
	"github.com/gwillem/roarm-follower/pkg/logger"
	"github.com/gwillem/roarm-follower/pkg/mode"
)

var (
	labelStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	unknownStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Terminal renders status lines to w.
type Terminal struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTerminal creates a terminal display writing to w (usually stderr).
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

// NotifyIdentity shows the current arm identity.
func (t *Terminal) NotifyIdentity(id string) {
	style := valueStyle
	if id == identity.Unknown {
		style = unknownStyle
	}
	t.println(labelStyle.Render("ARM ID") + " " + style.Render(id))
}

// NotifyMode shows the current operating mode.
func (t *Terminal) NotifyMode(m mode.Mode) {
	hint := "reporting off"
	if m.Reporting() {
		hint = "reporting on"
	}
	t.println(labelStyle.Render("MODE") + "   " + valueStyle.Render(m.String()) + " " + dimStyle.Render(hint))
}

func (t *Terminal) println(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.w, s)
}

// Log reports status changes through the context logger.
type Log struct {
	ctx context.Context
}

// NewLog creates a display that logs at info level.
func NewLog(ctx context.Context) *Log {
	return &Log{ctx: ctx}
}

// NotifyIdentity implements identity.Notifier.
func (l *Log) NotifyIdentity(id string) {
	logger.InfoKV(l.ctx, "Display updated", "arm_id", id)
}

// NotifyMode logs a mode change.
func (l *Log) NotifyMode(m mode.Mode) {
	logger.InfoKV(l.ctx, "Display updated", "mode", m.String(), "reporting", m.Reporting())
}

// Display receives status updates.
type Display interface {
	NotifyIdentity(id string)
	NotifyMode(m mode.Mode)
}

// Multi fans updates out to several displays.
type Multi []Display

// NotifyIdentity implements Display.
func (m Multi) NotifyIdentity(id string) {
	for _, d := range m {
		d.NotifyIdentity(id)
	}
}

// NotifyMode implements Display.
func (m Multi) NotifyMode(md mode.Mode) {
	for _, d := range m {
		d.NotifyMode(md)
	}
}
