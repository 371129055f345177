package store

import (
	"context"
	"fmt"
	"sync"

	"linker/pkg/platform/sentinel"
)

// InMemoryCredentialStore holds the credential in memory for tests/dev.
type InMemoryCredentialStore struct {
	mu         sync.RWMutex
	credential string
	present    bool
}

// NewMemory constructs an empty in-memory credential store.
func NewMemory() *InMemoryCredentialStore {
	return &InMemoryCredentialStore{}
}

func (s *InMemoryCredentialStore) Load(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.present {
		return "", fmt.Errorf("credential not stored: %w", sentinel.ErrNotFound)
	}
	return s.credential, nil
}

func (s *InMemoryCredentialStore) Save(_ context.Context, credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = credential
	s.present = true
	return nil
}

func (s *InMemoryCredentialStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = ""
	s.present = false
	return nil
}
