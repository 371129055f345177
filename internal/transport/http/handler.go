// Package httptransport is the thin HTTP layer over the session service,
// theme store, and backend proxy. Handlers decode, validate, delegate, and
// encode; session semantics live in internal/session/service.
package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"linker/internal/access"
	"linker/internal/backend"
	"linker/internal/notice"
	"linker/internal/session/models"
	"linker/internal/theme"
	dErrors "linker/pkg/domain-errors"
	"linker/pkg/platform/httputil"
	"linker/pkg/requestcontext"
)

// SessionService is the session surface the transport needs.
type SessionService interface {
	Snapshot() models.Snapshot
	Ready() <-chan struct{}
	SyncWithIdentityProvider(ctx context.Context, requestedRole models.Role, companyName string) (*models.User, error)
	LoginLegacyAdmin(ctx context.Context, email, password string) error
	Logout(ctx context.Context)
}

// BackendProxy forwards opaque marketplace calls with session credentials.
type BackendProxy interface {
	Do(ctx context.Context, method, path string, body any) (*http.Response, error)
}

// Handler wires the session API, preference endpoints, and backend proxy.
type Handler struct {
	sessions SessionService
	proxy    BackendProxy
	themes   *theme.Store
	notices  *notice.Bus
	logger   *slog.Logger
}

// NewHandler constructs the transport handler with its collaborators.
func NewHandler(
	sessions SessionService,
	proxy BackendProxy,
	themes *theme.Store,
	notices *notice.Bus,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		sessions: sessions,
		proxy:    proxy,
		themes:   themes,
		notices:  notices,
		logger:   logger,
	}
}

// handleGetSession reports the current session snapshot. It answers
// immediately even while the initial restore runs; loading=true tells the
// caller to hold off on auth-dependent rendering.
func (h *Handler) handleGetSession(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, fromSnapshot(h.sessions.Snapshot()))
}

// handleSyncSession establishes a backend session from the hosted identity
// provider's sign-in. POST /session/sync.
func (h *Handler) handleSyncSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, err := decodeValid[SyncSessionRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	user, err := h.sessions.SyncWithIdentityProvider(ctx, req.role(), strings.TrimSpace(req.CompanyName))
	if err != nil {
		h.logger.ErrorContext(ctx, "identity sync failed",
			"request_id", requestID,
			"requested_role", req.RequestedRole,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "identity sync completed",
		"request_id", requestID,
		"user_id", user.ID,
		"role", user.Role,
	)
	resp := fromSnapshot(h.sessions.Snapshot())
	resp.Next = access.HomeFor(user)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handleLegacyLogin performs the password login kept for the admin console.
// POST /session/login.
func (h *Handler) handleLegacyLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, err := decodeValid[LegacyLoginRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.sessions.LoginLegacyAdmin(ctx, req.Email, req.Password); err != nil {
		h.logger.WarnContext(ctx, "legacy login rejected",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	snap := h.sessions.Snapshot()
	resp := fromSnapshot(snap)
	resp.Next = access.HomeFor(snap.User)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handleLogout ends the session and points the client back at the landing
// page. Always succeeds. POST /session/logout.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(r.Context())
	resp := fromSnapshot(h.sessions.Snapshot())
	resp.Next = access.RouteLanding
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handleGetTheme reports the active theme. GET /theme.
func (h *Handler) handleGetTheme(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, ThemeResponse{Theme: h.themes.Current()})
}

// handleSetTheme switches and persists the theme. PUT /theme.
func (h *Handler) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	req, err := decodeValid[SetThemeRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.themes.Set(r.Context(), req.theme()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ThemeResponse{Theme: h.themes.Current()})
}

// handleNotices drains pending user-visible notices. GET /notices.
func (h *Handler) handleNotices(w http.ResponseWriter, _ *http.Request) {
	drained := h.notices.Drain()
	if drained == nil {
		drained = []notice.Notice{}
	}
	httputil.WriteJSON(w, http.StatusOK, NoticesResponse{Notices: drained})
}

// handleView serves the page descriptor for a navigable route. Rendering is
// a client concern; the descriptor carries what the renderer needs.
func (h *Handler) handleView(view string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, ViewResponse{View: view, Theme: h.themes.Current()})
	}
}

// handleProxy forwards /api/* to the marketplace backend with the session
// credential attached. A session expired mid-call turns into a redirect to
// the login route matching where the visitor was.
func (h *Handler) handleProxy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	path := strings.TrimPrefix(r.URL.Path, "/api")
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}

	var body any
	if r.Body != nil {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read request body"))
			return
		}
		if len(raw) > 0 {
			body = json.RawMessage(raw)
		}
	}

	resp, err := h.proxy.Do(ctx, r.Method, path, body)
	if err != nil {
		if errors.Is(err, models.ErrSessionExpired) {
			http.Redirect(w, r, backend.LoginRouteFor(strings.TrimPrefix(r.URL.Path, "/api")), http.StatusFound)
			return
		}
		h.logger.ErrorContext(ctx, "backend proxy call failed",
			"request_id", requestcontext.RequestID(ctx),
			"method", r.Method,
			"path", path,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.WarnContext(ctx, "backend proxy response truncated", "path", path, "error", err)
	}
}

// handleHealthz is the liveness probe.
func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
