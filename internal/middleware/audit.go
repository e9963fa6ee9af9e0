package middleware

import (
	"context"
	"net/http"
	"time"

	"dlas/internal/domain"
	"dlas/pkg/logger"

	"github.com/google/uuid"
)

// AuditRepository defines the interface for persisting audit logs.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// AuditMiddleware records who did what against the licensing API. License
// decisions are challengeable, so every administrative request leaves a row.
type AuditMiddleware struct {
	repo   AuditRepository
	logger logger.Logger
}

// NewAuditMiddleware creates a new AuditMiddleware.
func NewAuditMiddleware(repo AuditRepository, log logger.Logger) *AuditMiddleware {
	return &AuditMiddleware{repo: repo, logger: log}
}

// Audit records the request in the audit log. The write happens off the
// request path; a failed audit write never fails the request.
func (m *AuditMiddleware) Audit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped, ok := w.(*responseWriter)
		if !ok {
			wrapped = &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		}

		next.ServeHTTP(wrapped, r)

		officerID, _ := OfficerIDFromContext(r.Context())
		requestID, _ := RequestIDFromContext(r.Context())

		go func(req *http.Request, status int, officerID uuid.UUID, requestID string) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			path := req.URL.Path
			if path == "/health" || path == "/ready" {
				return
			}

			ip := req.RemoteAddr
			ua := req.UserAgent()

			entry := &domain.AuditLog{
				ID:         uuid.New(),
				Action:     req.Method + " " + path,
				IPAddress:  &ip,
				UserAgent:  &ua,
				StatusCode: &status,
				CreatedAt:  time.Now(),
			}
			if officerID != uuid.Nil {
				entry.OfficerID = &officerID
			}
			if requestID != "" {
				entry.RequestID = &requestID
			}

			if err := m.repo.Create(ctx, entry); err != nil {
				m.logger.Error("Failed to create audit log", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}(r, wrapped.statusCode, officerID, requestID)
	})
}
