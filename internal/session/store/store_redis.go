package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"linker/pkg/platform/sentinel"
)

// credentialKey is the single fixed key holding the backend credential.
const credentialKey = "linker:session:credential"

// RedisCredentialStore keeps the credential in Redis for deployments where
// the gateway instance may be restarted on another host.
type RedisCredentialStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed credential store.
func NewRedis(client *redis.Client) *RedisCredentialStore {
	return &RedisCredentialStore{client: client}
}

func (s *RedisCredentialStore) Load(ctx context.Context) (string, error) {
	credential, err := s.client.Get(ctx, credentialKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("credential not stored: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}
	return credential, nil
}

func (s *RedisCredentialStore) Save(ctx context.Context, credential string) error {
	if err := s.client.Set(ctx, credentialKey, credential, 0).Err(); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

func (s *RedisCredentialStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, credentialKey).Err(); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}
