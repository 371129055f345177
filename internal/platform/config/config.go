package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// App captures process-level configuration so main stays lean. One config
// struct per collaborator boundary: the local UI server, the marketplace
// backend, the hosted identity provider, and durable client storage.
type App struct {
	Server   Server
	Backend  Backend
	Identity Identity
	Storage  Storage
	Redis    RedisConfig
}

// Server configures the local UI-facing HTTP listener.
type Server struct {
	Addr string
	// RestoreWait bounds how long guarded navigations block on the initial
	// session restore before answering with a waiting response.
	RestoreWait time.Duration
}

// Backend locates the marketplace REST API.
type Backend struct {
	BaseURL string
	Timeout time.Duration
}

// Identity locates the hosted identity provider's client API.
type Identity struct {
	BaseURL string
	// ClientToken is the device-scoped token identifying this client
	// instance to the provider.
	ClientToken string
	Timeout     time.Duration
}

// Storage configures durable client storage. When Redis is configured the
// credential store prefers it; the file paths are the single-machine default.
type Storage struct {
	CredentialPath string
	ThemePath      string
}

// RedisConfig configures the optional Redis-backed stores.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds the app config from environment variables with development
// defaults.
func FromEnv() App {
	stateDir := envOr("LINKER_STATE_DIR", defaultStateDir())

	return App{
		Server: Server{
			Addr:        envOr("LINKER_ADDR", ":4173"),
			RestoreWait: envDuration("LINKER_RESTORE_WAIT", 10*time.Second),
		},
		Backend: Backend{
			BaseURL: envOr("LINKER_BACKEND_URL", "http://localhost:5000/api"),
			Timeout: envDuration("LINKER_BACKEND_TIMEOUT", 15*time.Second),
		},
		Identity: Identity{
			BaseURL:     envOr("LINKER_IDENTITY_URL", "https://clerk.linker.example"),
			ClientToken: os.Getenv("LINKER_IDENTITY_CLIENT_TOKEN"),
			Timeout:     envDuration("LINKER_IDENTITY_TIMEOUT", 10*time.Second),
		},
		Storage: Storage{
			CredentialPath: envOr("LINKER_CREDENTIAL_PATH", filepath.Join(stateDir, "credential")),
			ThemePath:      envOr("LINKER_THEME_PATH", filepath.Join(stateDir, "theme")),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("LINKER_REDIS_URL"),
			PoolSize:     envInt("LINKER_REDIS_POOL_SIZE", 4),
			MinIdleConns: envInt("LINKER_REDIS_MIN_IDLE", 1),
			DialTimeout:  envDuration("LINKER_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("LINKER_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("LINKER_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "linker")
	}
	return ".linker"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
