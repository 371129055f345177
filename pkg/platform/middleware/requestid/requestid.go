// Package requestid tags every request with a correlation ID for log lines
// and error envelopes. An inbound X-Request-ID header is trusted when present
// so the UI shell can correlate across retries.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"linker/pkg/requestcontext"
)

const headerName = "X-Request-ID"

// Middleware ensures a request ID exists in the context and echoes it back
// on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(headerName)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(headerName, reqID)
		ctx := requestcontext.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
