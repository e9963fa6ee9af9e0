package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"dlas/pkg/logger"
)

// SecurityHeaders sets the response headers that matter for a JSON-only
// API; nothing here serves HTML, so the browser-rendering headers are
// limited to the ones that block embedding and sniffing.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		// License and audit data must never land in shared caches.
		w.Header().Set("Cache-Control", "no-store, max-age=0")
		next.ServeHTTP(w, r)
	})
}

func jsonError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// Recovery converts panics into 500 responses so one bad request cannot
// take down the listener.
type Recovery struct {
	logger logger.Logger
}

func NewRecovery(log logger.Logger) *Recovery {
	return &Recovery{logger: log}
}

func (m *Recovery) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				fields := map[string]interface{}{
					"panic":  fmt.Sprintf("%v", rec),
					"method": r.Method,
					"path":   r.URL.Path,
					"stack":  string(debug.Stack()),
				}
				if requestID, ok := RequestIDFromContext(r.Context()); ok {
					fields["request_id"] = requestID
				}
				m.logger.Error("Panic recovered", fields)
				jsonError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
