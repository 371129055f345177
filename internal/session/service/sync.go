package service

import (
	"context"
	"errors"
	"fmt"

	"linker/internal/backend"
	"linker/internal/session/models"
	dErrors "linker/pkg/domain-errors"
)

// SyncWithIdentityProvider reconciles an active identity-provider sign-in
// with the backend's user record, requesting role assignment on first
// contact. Duplicate submissions collapse into one in-flight exchange.
//
// On success a user-visible notice is emitted: "pending approval" when the
// resolved role is a non-approved manufacturer, a welcome otherwise.
func (s *Store) SyncWithIdentityProvider(ctx context.Context, requestedRole models.Role, companyName string) (*models.User, error) {
	result, err, _ := s.flight.Do("sync", func() (any, error) {
		user, err := s.runSync(ctx, requestedRole, companyName)
		if err != nil {
			return nil, err
		}
		if user.Role == models.RoleManufacturer && user.ApprovalStatus != models.ApprovalApproved {
			s.notices.Info("Your manufacturer account is pending approval.")
		} else {
			s.notices.Success(fmt.Sprintf("Welcome, %s!", user.Name))
		}
		return user, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.User), nil
}

// runSync executes the sync protocol in strict order: precondition, mint,
// exchange, persist. Shared by the explicit operation and the restore
// fallback.
func (s *Store) runSync(ctx context.Context, requestedRole models.Role, companyName string) (*models.User, error) {
	// Step 1: the provider must report an active sign-in; no network calls
	// otherwise.
	if !s.provider.SignedIn(ctx) {
		s.observeSync("not_signed_in")
		return nil, dErrors.Wrap(models.ErrNotSignedIn, dErrors.CodeUnauthorized, "sign in with the identity provider first")
	}

	gen := s.currentGeneration()

	// Step 2: mint the short-lived credential. Empty or failed minting is
	// fatal for this attempt and never retried automatically.
	providerCredential, err := s.provider.Credential(ctx)
	if err != nil || providerCredential == "" {
		if err != nil {
			s.logger.WarnContext(ctx, "identity provider failed to mint credential", "error", err)
		}
		s.observeSync("credential_unavailable")
		return nil, dErrors.Wrap(models.ErrCredentialUnavailable, dErrors.CodeUnavailable, "could not obtain an identity credential, try again")
	}

	// Steps 3-5: exchange with the backend. The backend is authoritative on
	// the resolved role regardless of the hint.
	payload, err := s.backend.ClerkSync(ctx, providerCredential, backend.SyncRequest{
		RequestedRole: string(requestedRole),
		CompanyName:   companyName,
	})
	if err != nil {
		if errors.Is(err, models.ErrSyncRejected) {
			s.observeSync("rejected")
		} else {
			s.observeSync("failed")
		}
		return nil, err
	}

	if !s.apply(ctx, gen, payload.User, payload.Token) {
		// The session was torn down while the exchange was in flight;
		// the teardown wins and this result is discarded.
		s.logger.InfoContext(ctx, "discarding stale identity sync result")
		s.observeSync("superseded")
		return nil, dErrors.New(dErrors.CodeConflict, "session ended during sign-in")
	}

	s.observeSync("ok")
	user := payload.User
	return &user, nil
}

func (s *Store) observeSync(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveSync(outcome)
	}
}
