package service

import (
	"context"
	"errors"

	"linker/internal/session/models"
	"linker/pkg/platform/sentinel"
)

// Restore resolves the boot-time session exactly once: from the durable
// credential when one is stored, otherwise from an active identity-provider
// sign-in. It never returns an error — every failure path ends in a resolved,
// possibly empty session — and it always releases Ready, so consumers waiting
// on the initial resolution are never blocked forever.
func (s *Store) Restore(ctx context.Context) {
	s.restoreOnce.Do(func() {
		defer s.finishLoading()
		s.restore(ctx)
	})
}

func (s *Store) restore(ctx context.Context) {
	gen := s.currentGeneration()

	credential, err := s.credentials.Load(ctx)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.ErrorContext(ctx, "failed to read stored credential", "error", err)
		}
		s.restoreViaSync(ctx, "no stored credential")
		return
	}

	if !s.setCredentialIf(gen, credential) {
		s.observeRestore("superseded")
		return
	}

	user, err := s.backend.Me(ctx)
	if err != nil {
		// Any failure — network, 401, malformed record — invalidates the
		// stored credential.
		s.logger.WarnContext(ctx, "stored credential did not resolve a user", "error", err)
		if clearErr := s.credentials.Clear(ctx); clearErr != nil {
			s.logger.ErrorContext(ctx, "failed to erase stored credential", "error", clearErr)
		}
		s.clearIf(gen)
		s.restoreViaSync(ctx, "stored credential rejected")
		return
	}

	if s.apply(ctx, gen, *user, credential) {
		s.logger.InfoContext(ctx, "session restored from stored credential",
			"role", user.Role,
			"approval_status", user.ApprovalStatus,
		)
		s.observeRestore("restored")
		return
	}
	s.observeRestore("superseded")
}

// restoreViaSync is the fallback half of restore: when no usable credential
// exists but the identity provider still reports an active sign-in, run the
// sync protocol once. The requested role is only a hint for first contact;
// existing accounts resolve to their backend role regardless.
func (s *Store) restoreViaSync(ctx context.Context, reason string) {
	if !s.provider.SignedIn(ctx) {
		s.logger.InfoContext(ctx, "session resolved empty", "reason", reason)
		s.observeRestore("empty")
		return
	}

	user, err := s.runSync(ctx, models.RoleGeneralUser, "")
	if err != nil {
		s.logger.WarnContext(ctx, "restore-time identity sync failed",
			"reason", reason,
			"error", err,
		)
		s.observeRestore("failed")
		return
	}
	s.logger.InfoContext(ctx, "session restored via identity sync",
		"reason", reason,
		"role", user.Role,
	)
	s.observeRestore("synced")
}

func (s *Store) observeRestore(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveRestore(outcome)
	}
}
