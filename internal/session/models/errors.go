package models

import "errors"

// Session failure taxonomy. Services wrap these with pkg/domain-errors codes
// before they cross the transport boundary; callers branch with errors.Is.
var (
	// ErrNotSignedIn: the identity provider reports no active sign-in, so
	// identity sync cannot start. Requires user action, never retried.
	ErrNotSignedIn = errors.New("no active identity provider sign-in")

	// ErrCredentialUnavailable: the provider is signed in but minted no
	// short-lived credential. Fatal for this attempt.
	ErrCredentialUnavailable = errors.New("identity provider returned no credential")

	// ErrSyncRejected: the backend declined the sync exchange. The wrapping
	// domain error carries the backend-supplied message verbatim.
	ErrSyncRejected = errors.New("identity sync rejected by backend")

	// ErrInvalidCredentials: the legacy admin password login was rejected.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrSessionExpired: a 401 on an authenticated call invalidated the
	// stored credential mid-session.
	ErrSessionExpired = errors.New("session expired")
)
