// Package identitytest provides a scriptable identity.Provider for unit
// tests.
package identitytest

import (
	"context"
	"sync"

	"linker/internal/identity"
)

// Fake is an in-memory identity provider. Zero value is signed out.
type Fake struct {
	mu sync.Mutex

	signedIn      bool
	identity      identity.Identity
	credential    string
	credentialErr error
	signOutErr    error

	SignOutCalls    int
	CredentialCalls int
}

// SignIn puts the fake into the signed-in state with the given identity and
// short-lived credential.
func (f *Fake) SignIn(id identity.Identity, credential string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signedIn = true
	f.identity = id
	f.credential = credential
}

// FailCredential makes Credential return err (or an empty credential when err
// is nil).
func (f *Fake) FailCredential(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credential = ""
	f.credentialErr = err
}

// FailSignOut makes SignOut return err while still clearing local state.
func (f *Fake) FailSignOut(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOutErr = err
}

func (f *Fake) SignedIn(_ context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signedIn
}

func (f *Fake) CurrentIdentity(_ context.Context) (identity.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.identity, nil
}

func (f *Fake) Credential(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CredentialCalls++
	if f.credentialErr != nil {
		return "", f.credentialErr
	}
	return f.credential, nil
}

func (f *Fake) SignOut(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SignOutCalls++
	f.signedIn = false
	f.identity = identity.Identity{}
	f.credential = ""
	return f.signOutErr
}
