package access

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"linker/internal/session/models"
	"linker/pkg/platform/httputil"
)

var decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "linker_guard_decisions_total",
	Help: "Route guard decisions by kind",
}, []string{"kind"})

// SessionSource is the read side of the session store the guard consults.
type SessionSource interface {
	Snapshot() models.Snapshot
	Ready() <-chan struct{}
}

// Guard enforces a policy on every navigation to the wrapped routes. The
// first real decision waits for the initial restore; if the restore outruns
// restoreWait the guard answers with a neutral waiting response rather than
// guessing a redirect.
func Guard(sessions SessionSource, policy Policy, restoreWait time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-sessions.Ready():
			case <-r.Context().Done():
				return
			case <-time.After(restoreWait):
				logger.WarnContext(r.Context(), "session restore still pending, deferring navigation",
					"path", r.URL.Path,
				)
				serveWaiting(w)
				decisionsTotal.WithLabelValues(string(KindWait)).Inc()
				return
			}

			decision := Decide(sessions.Snapshot(), policy)
			decisionsTotal.WithLabelValues(string(decision.Kind)).Inc()

			switch decision.Kind {
			case KindGrant:
				next.ServeHTTP(w, r)
			case KindRedirect:
				target := decision.RedirectTo
				if target == RouteLogin {
					// Remember where the visitor was headed so the login
					// flow can resume there. Resumption is a convenience,
					// not a guarantee.
					target = RouteLogin + "?next=" + url.QueryEscape(r.URL.RequestURI())
				}
				http.Redirect(w, r, target, http.StatusFound)
			default:
				serveWaiting(w)
			}
		})
	}
}

func serveWaiting(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "1")
	httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
}
