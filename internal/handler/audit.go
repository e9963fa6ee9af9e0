package handler

import (
	"context"
	"net/http"
	"strconv"

	"dlas/internal/domain"

	"github.com/google/uuid"
)

// AuditStore reads the request audit trail.
type AuditStore interface {
	FindAll(ctx context.Context, limit, offset int) ([]*domain.AuditLog, error)
	FindByOfficerID(ctx context.Context, officerID uuid.UUID, limit, offset int) ([]*domain.AuditLog, error)
	CountAll(ctx context.Context) (int, error)
}

// AuditHandler exposes the audit trail to supervisors reviewing what an
// officer did and when.
type AuditHandler struct {
	store  AuditStore
	logger Logger
}

func NewAuditHandler(store AuditStore, log Logger) *AuditHandler {
	return &AuditHandler{store: store, logger: log}
}

type listAuditLogsResponse struct {
	AuditLogs []*domain.AuditLog `json:"audit_logs"`
	Total     int                `json:"total"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
}

// List returns audit entries newest first, optionally filtered to one
// officer via the officer_id query parameter.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	if !supervisorOnly(w, r) {
		return
	}

	limit, offset := pagination(r, 50, 500)

	var (
		logs []*domain.AuditLog
		err  error
	)
	if raw := r.URL.Query().Get("officer_id"); raw != "" {
		officerID, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			respondError(w, http.StatusBadRequest, "Invalid officer_id")
			return
		}
		logs, err = h.store.FindByOfficerID(r.Context(), officerID, limit, offset)
	} else {
		logs, err = h.store.FindAll(r.Context(), limit, offset)
	}
	if err != nil {
		h.logger.Error("Audit listing failed", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	total, err := h.store.CountAll(r.Context())
	if err != nil {
		h.logger.Error("Audit count failed", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, listAuditLogsResponse{
		AuditLogs: logs,
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	})
}

// pagination reads limit/offset query parameters, clamping limit to max.
func pagination(r *http.Request, def, max int) (limit, offset int) {
	limit = def
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= max {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
