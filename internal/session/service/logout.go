package service

import "context"

// Logout tears the session down: in-memory state, durable credential, and —
// best-effort — the provider-side sign-in. It never fails to the caller;
// internal step failures are logged and the local teardown stands. The
// transport layer handles navigating back to the public landing route.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	s.user = nil
	s.credential = ""
	s.generation++
	s.mu.Unlock()

	if err := s.credentials.Clear(ctx); err != nil {
		s.logger.ErrorContext(ctx, "failed to erase stored credential on logout", "error", err)
	}

	if s.provider.SignedIn(ctx) {
		if err := s.provider.SignOut(ctx); err != nil {
			// Allowed to fail quietly: the local teardown already succeeded.
			s.logger.WarnContext(ctx, "identity provider sign-out failed", "error", err)
		}
	}

	s.notices.Info("You have been logged out.")
	if s.metrics != nil {
		s.metrics.IncrementLogouts()
	}
	s.logger.InfoContext(ctx, "session logged out")
}
