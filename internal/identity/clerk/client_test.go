package clerk

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linker/internal/platform/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// unsignedJWT builds a syntactically valid JWT with the given exp, signed with
// a junk signature. The adapter never verifies signatures.
func unsignedJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	payload, err := json.Marshal(map[string]any{"exp": exp.Unix(), "sub": "user_1"})
	require.NoError(t, err)
	return fmt.Sprintf("%s.%s.junk", header, base64.RawURLEncoding.EncodeToString(payload))
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.Identity{
		BaseURL:     srv.URL,
		ClientToken: "client_tok",
		Timeout:     2 * time.Second,
	}, testLogger())
}

// routeFunc registers handler for the given method and path; Go 1.21's
// ServeMux has no method patterns.
func routeFunc(mux *http.ServeMux, method, path string, handler http.HandlerFunc) {
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.NotFound(w, r)
			return
		}
		handler(w, r)
	})
}

func signedInState(sessionID string) map[string]any {
	return map[string]any{
		"sessions": []map[string]any{{
			"id":     sessionID,
			"status": "active",
			"user": map[string]any{
				"id":            "user_1",
				"email_address": "emma@linker.example",
				"first_name":    "Emma",
				"last_name":     "Lewis",
			},
		}},
	}
}

func TestSignedIn(t *testing.T) {
	t.Run("active session reports signed in", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer client_tok", r.Header.Get("Authorization"))
			_ = json.NewEncoder(w).Encode(signedInState("sess_1"))
		}))

		assert.True(t, client.SignedIn(context.Background()))
	})

	t.Run("no sessions reports signed out", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"sessions": []any{}})
		}))

		assert.False(t, client.SignedIn(context.Background()))
	})

	t.Run("provider outage reports signed out", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))

		assert.False(t, client.SignedIn(context.Background()))
	})
}

func TestCurrentIdentity(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(signedInState("sess_1"))
	}))

	id, err := client.CurrentIdentity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "user_1", id.Subject)
	assert.Equal(t, "emma@linker.example", id.Email)
	assert.Equal(t, "Emma Lewis", id.Name)
}

func TestCredential(t *testing.T) {
	t.Run("mints and caches until expiry", func(t *testing.T) {
		token := ""
		var mints atomic.Int32
		mux := http.NewServeMux()
		routeFunc(mux, http.MethodGet, "/v1/client", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(signedInState("sess_1"))
		})
		routeFunc(mux, http.MethodPost, "/v1/client/sessions/sess_1/tokens", func(w http.ResponseWriter, r *http.Request) {
			mints.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]string{"jwt": token})
		})
		client := newTestClient(t, mux)
		token = unsignedJWT(t, time.Now().Add(time.Minute))

		first, err := client.Credential(context.Background())
		require.NoError(t, err)
		second, err := client.Credential(context.Background())
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, int32(1), mints.Load(), "second call should reuse the cached token")
	})

	t.Run("near-expired token is re-minted", func(t *testing.T) {
		token := ""
		var mints atomic.Int32
		mux := http.NewServeMux()
		routeFunc(mux, http.MethodGet, "/v1/client", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(signedInState("sess_1"))
		})
		routeFunc(mux, http.MethodPost, "/v1/client/sessions/sess_1/tokens", func(w http.ResponseWriter, r *http.Request) {
			mints.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]string{"jwt": token})
		})
		client := newTestClient(t, mux)
		token = unsignedJWT(t, time.Now().Add(2*time.Second)) // inside the leeway window

		_, err := client.Credential(context.Background())
		require.NoError(t, err)
		_, err = client.Credential(context.Background())
		require.NoError(t, err)

		assert.Equal(t, int32(2), mints.Load())
	})

	t.Run("provider declining to mint returns empty credential", func(t *testing.T) {
		mux := http.NewServeMux()
		routeFunc(mux, http.MethodGet, "/v1/client", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(signedInState("sess_1"))
		})
		routeFunc(mux, http.MethodPost, "/v1/client/sessions/sess_1/tokens", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]string{})
		})
		client := newTestClient(t, mux)

		credential, err := client.Credential(context.Background())
		require.NoError(t, err)
		assert.Empty(t, credential)
	})
}

func TestSignOutDropsCachedCredential(t *testing.T) {
	token := ""
	mux := http.NewServeMux()
	routeFunc(mux, http.MethodGet, "/v1/client", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(signedInState("sess_1"))
	})
	routeFunc(mux, http.MethodPost, "/v1/client/sessions/sess_1/tokens", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"jwt": token})
	})
	var signOuts atomic.Int32
	routeFunc(mux, http.MethodDelete, "/v1/client/sessions", func(w http.ResponseWriter, r *http.Request) {
		signOuts.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	client := newTestClient(t, mux)
	token = unsignedJWT(t, time.Now().Add(time.Minute))

	_, err := client.Credential(context.Background())
	require.NoError(t, err)
	require.NoError(t, client.SignOut(context.Background()))

	assert.Equal(t, int32(1), signOuts.Load())
	client.mu.Lock()
	assert.Empty(t, client.cachedToken)
	client.mu.Unlock()
}
