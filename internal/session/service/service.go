// Package service holds the session state machine: the single source of
// truth for who the current user is. State mutates only through Restore,
// SyncWithIdentityProvider, LoginLegacyAdmin, Logout, and the expiry hook;
// everything else reads snapshots.
package service

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"linker/internal/backend"
	"linker/internal/identity"
	"linker/internal/notice"
	"linker/internal/session/metrics"
	"linker/internal/session/models"
	"linker/internal/session/store"
)

// BackendAuth is the slice of the backend client the session service needs.
// *backend.Client satisfies it.
type BackendAuth interface {
	Me(ctx context.Context) (*models.User, error)
	ClerkSync(ctx context.Context, providerCredential string, req backend.SyncRequest) (*backend.AuthPayload, error)
	Login(ctx context.Context, email, password string) (*backend.AuthPayload, error)
}

// Store is the process-wide session. It is created empty with loading=true;
// Restore resolves it exactly once per boot.
type Store struct {
	logger      *slog.Logger
	provider    identity.Provider
	backend     BackendAuth
	credentials store.CredentialStore
	notices     notice.Emitter
	metrics     *metrics.Metrics

	mu         sync.Mutex
	user       *models.User
	credential string
	loading    bool
	// generation advances on every teardown (logout, expiry) and every
	// applied mutation. In-flight operations capture it before their first
	// suspension point and discard their result if it moved on, so a logout
	// racing a sync always wins.
	generation uint64

	restoreOnce sync.Once
	ready       chan struct{}

	// flight collapses duplicate submissions of the same auth form.
	flight singleflight.Group
}

// New constructs an empty, loading session store. metrics may be nil (tests).
func New(
	provider identity.Provider,
	backendAuth BackendAuth,
	credentials store.CredentialStore,
	notices notice.Emitter,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Store {
	return &Store{
		logger:      logger,
		provider:    provider,
		backend:     backendAuth,
		credentials: credentials,
		notices:     notices,
		metrics:     m,
		loading:     true,
		ready:       make(chan struct{}),
	}
}

// Snapshot returns the current session state. The returned user is a copy.
func (s *Store) Snapshot() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := models.Snapshot{Loading: s.loading}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

// Ready is closed once the initial restore has resolved, successfully or not.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Credential implements backend.CredentialSource: the in-memory backend
// credential for request signing.
func (s *Store) Credential() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credential, s.credential != ""
}

// HandleSessionExpired is the backend client's 401 hook. Durable storage is
// already erased by the client; this clears the in-memory half so both sides
// converge on "logged out".
func (s *Store) HandleSessionExpired(ctx context.Context) {
	s.mu.Lock()
	hadUser := s.user != nil
	s.user = nil
	s.credential = ""
	s.generation++
	s.mu.Unlock()

	if hadUser {
		s.logger.WarnContext(ctx, "session expired, cleared in-memory state")
		if s.metrics != nil {
			s.metrics.IncrementLogouts()
		}
	}
}

// currentGeneration reads the generation before an operation's first
// suspension point.
func (s *Store) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// apply installs a resolved user and credential if the session generation is
// still the one the operation started from. Persisting happens under the
// lock so a concurrent logout can never interleave between the in-memory and
// durable halves. Returns false when the result is stale.
func (s *Store) apply(ctx context.Context, gen uint64, user models.User, credential string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return false
	}
	if err := s.credentials.Save(ctx, credential); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist credential", "error", err)
		// In-memory state still advances; the session survives until the
		// process restarts.
	}
	u := user
	s.user = &u
	s.credential = credential
	s.generation++
	return true
}

// clearIf resets user and credential in memory if the generation still
// matches. Durable storage is the caller's responsibility.
func (s *Store) clearIf(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return false
	}
	s.user = nil
	s.credential = ""
	return true
}

// setCredentialIf installs only the credential (used during restore so the
// who-am-i call can be signed) if the generation still matches.
func (s *Store) setCredentialIf(gen uint64, credential string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return false
	}
	s.credential = credential
	return true
}

// finishLoading flips loading to false and releases Ready waiters. Called
// exactly once, from restore.
func (s *Store) finishLoading() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
	close(s.ready)
}
