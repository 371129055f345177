// Package backend is the authenticated HTTP client for the marketplace REST
// API. It is the only reader of the backend credential: every outgoing call
// carries `Authorization: Bearer <credential>` when one is held and no
// Authorization header at all otherwise.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"linker/internal/platform/config"
	"linker/internal/session/models"
	"linker/internal/session/store"
	dErrors "linker/pkg/domain-errors"
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "linker_backend_requests_total",
	Help: "Backend API responses by HTTP status class",
}, []string{"class"})

// CredentialSource supplies the in-memory backend credential for request
// signing. The session service is the canonical implementation.
type CredentialSource interface {
	Credential() (string, bool)
}

// Client wraps the backend API. Session-expiry discovered via 401 on an
// authenticated call erases the durable credential and notifies the expiry
// hook; redirecting the browser is the transport layer's half of the
// contract (see LoginRouteFor).
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer

	credentials store.CredentialStore
	source      CredentialSource
	onExpired   func(ctx context.Context)
}

// New constructs a backend client. The credential source and expiry hook are
// bound after the session service exists (BindSession); until then requests
// go out unauthenticated.
func New(cfg config.Backend, credentials store.CredentialStore, logger *slog.Logger) *Client {
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
		tracer:      otel.Tracer("linker/backend"),
		credentials: credentials,
	}
}

// BindSession attaches the credential source and the session-expiry hook.
// Both sides of the 401 contract must converge on "logged out": this client
// erases durable storage, the hook clears the in-memory session.
func (c *Client) BindSession(source CredentialSource, onExpired func(ctx context.Context)) {
	c.source = source
	c.onExpired = onExpired
}

// LoginRouteFor returns the login route appropriate to the path on which
// session expiry was discovered. Admin-prefixed paths go to the admin login.
func LoginRouteFor(currentPath string) string {
	if currentPath == "/admin" || strings.HasPrefix(currentPath, "/admin/") || strings.HasPrefix(currentPath, "/admin-") {
		return "/admin-login"
	}
	return "/login"
}

// Get issues an authenticated GET.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post issues an authenticated POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

// Put issues an authenticated PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.Do(ctx, http.MethodPut, path, body)
}

// Delete issues an authenticated DELETE.
func (c *Client) Delete(ctx context.Context, path string) (*http.Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil)
}

// Do issues an authenticated request. A 401 response is consumed: the durable
// credential is erased, the expiry hook fires, and models.ErrSessionExpired
// comes back instead of the response.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	bearer := ""
	if c.source != nil {
		if credential, ok := c.source.Credential(); ok {
			bearer = credential
		}
	}

	resp, err := c.send(ctx, method, path, body, bearer)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		_ = resp.Body.Close()
		c.teardown(ctx, path)
		return nil, dErrors.Wrap(models.ErrSessionExpired, dErrors.CodeUnauthorized, "session expired")
	}
	return resp, nil
}

// teardown is the last-resort recovery for credential expiry discovered
// mid-session.
func (c *Client) teardown(ctx context.Context, path string) {
	c.logger.WarnContext(ctx, "backend rejected credential, tearing down session", "path", path)
	if err := c.credentials.Clear(ctx); err != nil {
		c.logger.ErrorContext(ctx, "failed to erase credential after 401", "error", err)
	}
	if c.onExpired != nil {
		c.onExpired(ctx)
	}
}

// send performs the HTTP exchange with the given bearer (empty means no
// Authorization header) and records the span and status-class metric.
func (c *Client) send(ctx context.Context, method, path string, body any, bearer string) (*http.Response, error) {
	ctx, span := c.tracer.Start(ctx, "backend "+method+" "+path)
	defer span.End()

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build backend request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "backend unreachable")
	}

	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.Int("http.response.status_code", resp.StatusCode),
	)
	requestsTotal.WithLabelValues(statusClass(resp.StatusCode)).Inc()
	return resp, nil
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}
