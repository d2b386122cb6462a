// Package identity keeps the arm identity: a short persisted label that tells
// otherwise identical follower arms apart.
package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/gwillem/roarm-follower/pkg/logger"
	"github.com/gwillem/roarm-follower/pkg/prefs"
)

const (
	// Unknown is reported when no identity has ever been persisted.
	Unknown = "unknown"

	// Namespace and Key locate the identity in the prefs store.
	Namespace = "arm_config"
	Key       = "arm_id"

	// MaxLength bounds identity strings.
	MaxLength = 32
)

var (
	// ErrInvalid is returned by Validate for unusable identity strings.
	ErrInvalid = errors.New("invalid arm identity")

	validPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
)

// Store persists a single identity string.
type Store interface {
	// Persist writes value durably before returning.
	Persist(value string) error
	// Load returns the stored value, or Unknown if there is none or it cannot be read.
	Load() string
}

// PrefsStore stores the identity in the arm_config namespace of a prefs store.
type PrefsStore struct {
	ns  *prefs.Namespace
	ctx context.Context
}

// NewPrefsStore opens the arm_config namespace in store.
func NewPrefsStore(ctx context.Context, store *prefs.Store) (*PrefsStore, error) {
	ns, err := store.Namespace(Namespace)
	if err != nil {
		return nil, fmt.Errorf("open identity namespace: %w", err)
	}
	return &PrefsStore{ns: ns, ctx: ctx}, nil
}

// Persist implements Store.
func (s *PrefsStore) Persist(value string) error {
	if err := s.ns.PutString(Key, value); err != nil {
		return fmt.Errorf("persist identity: %w", err)
	}
	return nil
}

// Load implements Store. Storage faults and stored values that fail
// Validate degrade to Unknown.
func (s *PrefsStore) Load() string {
	v, err := s.ns.String(Key)
	switch {
	case err == nil:
		if verr := Validate(v); verr != nil {
			logger.Warnf(s.ctx, "Stored arm identity is unusable, using %q: %v", Unknown, verr)
			return Unknown
		}
		return v
	case errors.Is(err, prefs.ErrNotFound):
		return Unknown
	default:
		logger.Warnf(s.ctx, "Failed to load arm identity, using %q: %v", Unknown, err)
		return Unknown
	}
}

// Validate checks that value can be used as an identity.
func Validate(value string) error {
	if value == "" {
		return fmt.Errorf("%w: empty", ErrInvalid)
	}
	if len(value) > MaxLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalid, MaxLength)
	}
	if !validPattern.MatchString(value) {
		return fmt.Errorf("%w: %q contains characters outside [A-Za-z0-9_.-]", ErrInvalid, value)
	}
	return nil
}
