package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"linker/pkg/platform/sentinel"
)

// FileCredentialStore keeps the credential in a single 0600 file. This is the
// default durable storage for a single-machine client instance.
type FileCredentialStore struct {
	path string
}

// NewFile constructs a file-backed credential store at path. Parent
// directories are created on first Save.
func NewFile(path string) *FileCredentialStore {
	return &FileCredentialStore{path: path}
}

func (s *FileCredentialStore) Load(_ context.Context) (string, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("credential not stored: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read credential file: %w", err)
	}
	credential := strings.TrimSpace(string(raw))
	if credential == "" {
		return "", fmt.Errorf("credential file empty: %w", sentinel.ErrNotFound)
	}
	return credential, nil
}

func (s *FileCredentialStore) Save(_ context.Context, credential string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	// Write-then-rename so a crash never leaves a truncated credential.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(credential), 0o600); err != nil {
		return fmt.Errorf("write credential file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace credential file: %w", err)
	}
	return nil
}

func (s *FileCredentialStore) Clear(_ context.Context) error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove credential file: %w", err)
	}
	return nil
}
