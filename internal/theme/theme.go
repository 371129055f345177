// Package theme holds the light/dark presentation preference. It is
// deliberately independent of the session: signing out must not reset the
// visitor's theme.
package theme

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	dErrors "linker/pkg/domain-errors"
	"linker/pkg/platform/sentinel"
)

// Theme is a named presentation mode.
type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

// Parse validates a wire value as a Theme.
func Parse(value string) (Theme, error) {
	switch Theme(value) {
	case Light, Dark:
		return Theme(value), nil
	default:
		return "", dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unknown theme %q", value))
	}
}

// Storage persists a single small value durably. The session credential
// stores satisfy it, so the theme rides the same storage layer under its own
// path or key.
type Storage interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, value string) error
}

// Store is the process-wide theme preference.
type Store struct {
	storage Storage
	logger  *slog.Logger

	mu      sync.RWMutex
	current Theme
}

// NewStore starts on the light theme until Restore finds a saved preference.
func NewStore(storage Storage, logger *slog.Logger) *Store {
	return &Store{
		storage: storage,
		logger:  logger,
		current: Light,
	}
}

// Restore loads the persisted preference. A missing or unreadable value
// keeps the default; theme restore never blocks startup.
func (s *Store) Restore(ctx context.Context) {
	value, err := s.storage.Load(ctx)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "theme restore failed, keeping default", "error", err)
		}
		return
	}

	parsed, err := Parse(value)
	if err != nil {
		s.logger.WarnContext(ctx, "ignoring unrecognized persisted theme", "value", value)
		return
	}

	s.mu.Lock()
	s.current = parsed
	s.mu.Unlock()
}

// Current reports the active theme.
func (s *Store) Current() Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Set switches the active theme and persists it. The in-memory switch holds
// even when persistence fails, so the visitor sees the change immediately.
func (s *Store) Set(ctx context.Context, t Theme) error {
	if _, err := Parse(string(t)); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = t
	s.mu.Unlock()

	if err := s.storage.Save(ctx, string(t)); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist theme", "theme", t, "error", err)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist theme")
	}
	return nil
}
