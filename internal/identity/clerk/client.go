// Package clerk adapts the hosted Clerk client API to the identity.Provider
// interface. Only the client-side surface is wrapped: session state, token
// minting, and sign-out.
package clerk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"linker/internal/identity"
	"linker/internal/platform/config"
	"linker/pkg/platform/sentinel"
	"linker/pkg/requestcontext"
)

// expiryLeeway is subtracted from a cached token's exp so we never hand out a
// credential about to lapse mid-exchange.
const expiryLeeway = 10 * time.Second

// Client talks to the provider's client API using the device-scoped client
// token. The minted short-lived credential is cached until its JWT exp.
type Client struct {
	baseURL     string
	clientToken string
	httpClient  *http.Client
	logger      *slog.Logger

	mu          sync.Mutex
	cachedToken string
	cachedExp   time.Time
}

// New constructs a Clerk adapter from config.
func New(cfg config.Identity, logger *slog.Logger) *Client {
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		clientToken: cfg.ClientToken,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
	}
}

type providerUser struct {
	ID        string `json:"id"`
	Email     string `json:"email_address"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type providerSession struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	User   providerUser `json:"user"`
}

type clientState struct {
	Sessions []providerSession `json:"sessions"`
}

func (s *clientState) active() *providerSession {
	for i := range s.Sessions {
		if s.Sessions[i].Status == "active" {
			return &s.Sessions[i]
		}
	}
	return nil
}

// SignedIn reports whether the provider holds an active session. Transport
// failures are reported as "not signed in": the caller cannot sync anyway.
func (c *Client) SignedIn(ctx context.Context) bool {
	state, err := c.fetchState(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "identity provider state lookup failed", "error", err)
		return false
	}
	return state.active() != nil
}

// CurrentIdentity returns the identity behind the active session.
func (c *Client) CurrentIdentity(ctx context.Context) (identity.Identity, error) {
	state, err := c.fetchState(ctx)
	if err != nil {
		return identity.Identity{}, err
	}
	sess := state.active()
	if sess == nil {
		return identity.Identity{}, fmt.Errorf("no active sign-in: %w", sentinel.ErrNotFound)
	}
	return identity.Identity{
		Subject: sess.User.ID,
		Email:   sess.User.Email,
		Name:    strings.TrimSpace(sess.User.FirstName + " " + sess.User.LastName),
	}, nil
}

// Credential mints a short-lived session token, reusing a cached one while it
// remains comfortably unexpired.
func (c *Client) Credential(ctx context.Context) (string, error) {
	now := requestcontext.Now(ctx)
	c.mu.Lock()
	if c.cachedToken != "" && now.Before(c.cachedExp.Add(-expiryLeeway)) {
		token := c.cachedToken
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	state, err := c.fetchState(ctx)
	if err != nil {
		return "", err
	}
	sess := state.active()
	if sess == nil {
		return "", fmt.Errorf("no active sign-in: %w", sentinel.ErrNotFound)
	}

	var minted struct {
		JWT string `json:"jwt"`
	}
	path := fmt.Sprintf("/v1/client/sessions/%s/tokens", sess.ID)
	if err := c.do(ctx, http.MethodPost, path, &minted); err != nil {
		return "", err
	}
	if minted.JWT == "" {
		// The provider declined to mint; the session service maps this to
		// its credential-unavailable failure.
		return "", nil
	}

	c.cacheToken(minted.JWT)
	return minted.JWT, nil
}

// SignOut removes all provider-side sessions for this client.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	c.cachedToken = ""
	c.cachedExp = time.Time{}
	c.mu.Unlock()
	return c.do(ctx, http.MethodDelete, "/v1/client/sessions", nil)
}

// cacheToken records the minted credential until its exp claim. The signature
// is deliberately not verified here; the backend is the verifying party.
func (c *Client) cacheToken(token string) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return
	}
	c.mu.Lock()
	c.cachedToken = token
	c.cachedExp = exp.Time
	c.mu.Unlock()
}

func (c *Client) fetchState(ctx context.Context) (*clientState, error) {
	var state clientState
	if err := c.do(ctx, http.MethodGet, "/v1/client", &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build identity request: %w", err)
	}
	if c.clientToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.clientToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("identity provider responded %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode identity response: %w", err)
	}
	return nil
}
