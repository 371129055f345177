// Package identity abstracts the hosted identity provider. The session
// service only ever sees this interface; provider-specific types stay inside
// the adapter packages.
package identity

import "context"

// Identity is the provider's view of the signed-in person. The backend keys
// its user records on Subject, so repeated syncs resolve the same account.
type Identity struct {
	Subject string
	Email   string
	Name    string
}

// Provider exposes the four facts the gateway needs from the hosted identity
// service: sign-in state, the current identity, a short-lived credential for
// the backend exchange, and sign-out.
type Provider interface {
	// SignedIn reports whether the provider holds an active sign-in.
	SignedIn(ctx context.Context) bool

	// CurrentIdentity returns the signed-in identity.
	CurrentIdentity(ctx context.Context) (Identity, error)

	// Credential mints a short-lived bearer credential for the active
	// sign-in. An empty credential with a nil error means the provider
	// declined to mint one.
	Credential(ctx context.Context) (string, error)

	// SignOut ends the provider-side sign-in. Best-effort callers may
	// ignore the returned error.
	SignOut(ctx context.Context) error
}
