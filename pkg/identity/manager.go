package identity

import (
	"context"

	"github.com/gwillem/roarm-follower/pkg/logger"
)

// Notifier receives identity changes, typically a status display.
type Notifier interface {
	NotifyIdentity(id string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(id string)

// NotifyIdentity implements Notifier.
func (f NotifierFunc) NotifyIdentity(id string) { f(id) }

// Manager caches the identity in memory and writes changes through to a Store.
// It is owned by a single goroutine and does no locking.
type Manager struct {
	store    Store
	notifier Notifier
	current  string
}

// NewManager creates a manager holding Unknown until Init or Set is called.
// notifier may be nil.
func NewManager(store Store, notifier Notifier) *Manager {
	return &Manager{
		store:    store,
		notifier: notifier,
		current:  Unknown,
	}
}

// Init loads the persisted identity into the cache and notifies the display.
// It never writes to the store.
func (m *Manager) Init(ctx context.Context) {
	m.current = m.store.Load()
	if Validate(m.current) != nil {
		m.current = Unknown
	}
	logger.InfoKV(ctx, "Arm identity loaded", "arm_id", m.current)
	m.notify()
}

// Set writes value through to the store and makes it the current identity.
// Invalid values are rejected with ErrInvalid and change nothing. A storage
// failure is returned, but the in-memory identity is updated anyway.
func (m *Manager) Set(ctx context.Context, value string) error {
	if err := Validate(value); err != nil {
		return err
	}

	err := m.store.Persist(value)
	if err != nil {
		logger.Errorf(ctx, "Failed to persist arm identity %q: %v", value, err)
	}

	m.current = value
	m.notify()
	logger.DebugKV(ctx, "Arm identity set", "arm_id", value, "persisted", err == nil)

	return err
}

// Get returns the cached identity without touching storage.
func (m *Manager) Get() string {
	return m.current
}

func (m *Manager) notify() {
	if m.notifier != nil {
		m.notifier.NotifyIdentity(m.current)
	}
}
