package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"linker/internal/backend"
	"linker/internal/identity/clerk"
	"linker/internal/notice"
	"linker/internal/platform/config"
	"linker/internal/platform/httpserver"
	"linker/internal/platform/logger"
	platformredis "linker/internal/platform/redis"
	"linker/internal/session/metrics"
	"linker/internal/session/service"
	"linker/internal/session/store"
	"linker/internal/theme"
	httptransport "linker/internal/transport/http"
)

// main wires the session gateway: identity provider adapter, backend client,
// session service, theme store, and the local HTTP surface. Business rules
// live in the internal packages; main only assembles and supervises.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}

	var credentials store.CredentialStore
	if redisClient != nil {
		credentials = store.NewRedis(redisClient.Client)
		log.Info("using redis credential store")
	} else {
		credentials = store.NewFile(cfg.Storage.CredentialPath)
		log.Info("using file credential store", "path", cfg.Storage.CredentialPath)
	}

	notices := notice.NewBus()
	sessionMetrics := metrics.New()
	provider := clerk.New(cfg.Identity, log)
	backendClient := backend.New(cfg.Backend, credentials, log)

	sessions := service.New(provider, backendClient, credentials, notices, sessionMetrics, log)
	backendClient.BindSession(sessions, sessions.HandleSessionExpired)

	themes := theme.NewStore(store.NewFile(cfg.Storage.ThemePath), log)

	// Restore runs in the background; guarded routes wait on session
	// readiness up to the configured deadline.
	go sessions.Restore(ctx)
	themes.Restore(ctx)

	handler := httptransport.NewHandler(sessions, backendClient, themes, notices, log)
	router := httptransport.NewRouter(handler, sessions, cfg.Server.RestoreWait, log)
	srv := httpserver.New(cfg.Server.Addr, router)

	go func() {
		log.Info("session gateway listening", "addr", cfg.Server.Addr, "backend", cfg.Backend.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("redis close failed", "error", err)
		}
	}
}
