// Package store persists the backend-issued credential to durable client
// storage. Exactly one credential is held per client instance, under one
// fixed key; the session service is its only writer.
package store

import "context"

// Error Contract:
// All store methods follow this pattern:
// - Load returns sentinel.ErrNotFound (wrapped) when no credential is stored
// - Save and Clear return nil on success; Clear of an absent credential is a no-op
// - Infrastructure failures come back wrapped with context
type CredentialStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, credential string) error
	Clear(ctx context.Context) error
}
