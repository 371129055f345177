package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"linker/internal/access"
	"linker/internal/session/models"
	"linker/pkg/platform/middleware/requestid"
	"linker/pkg/platform/middleware/requesttime"
)

// NewRouter mounts the full navigation surface and session API.
//
// Public pages stay reachable regardless of session state; guarded pages sit
// behind the route guard with their declared policies. The guard, not the
// page handler, owns redirect decisions.
func NewRouter(h *Handler, sessions access.SessionSource, restoreWait time.Duration, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	// Public pages.
	r.Get(access.RouteLanding, h.handleView("landing"))
	r.Get(access.RouteLogin, h.handleView("login"))
	r.Get(access.RouteAdminLogin, h.handleView("admin-login"))
	r.Get(access.RouteApprovalPending, h.handleView("approval-pending"))

	// Guarded pages, one policy per route.
	guarded := func(policy access.Policy, path, view string) {
		r.Group(func(g chi.Router) {
			g.Use(access.Guard(sessions, policy, restoreWait, logger))
			g.Get(path, h.handleView(view))
		})
	}
	buyerOnly := access.Policy{AllowedRoles: []models.Role{models.RoleBuyer}}
	guarded(buyerOnly, access.RouteSearch, "search")
	guarded(buyerOnly, access.RouteBuyerHome, "buyer-dashboard")
	guarded(access.Policy{
		AllowedRoles:    []models.Role{models.RoleManufacturer},
		RequireApproval: true,
	}, access.RouteManufacturerHome, "manufacturer-dashboard")
	guarded(access.Policy{
		AllowedRoles: []models.Role{models.RoleAdmin},
	}, access.RouteAdminHome, "admin")

	// Session API.
	r.Get("/session", h.handleGetSession)
	r.Post("/session/sync", h.handleSyncSession)
	r.Post("/session/login", h.handleLegacyLogin)
	r.Post("/session/logout", h.handleLogout)

	// Preferences and notices.
	r.Get("/theme", h.handleGetTheme)
	r.Put("/theme", h.handleSetTheme)
	r.Get("/notices", h.handleNotices)

	// Opaque backend pass-through.
	r.Handle("/api/*", http.HandlerFunc(h.handleProxy))

	// Ops.
	r.Get("/healthz", h.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
