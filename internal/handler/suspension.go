package handler

import (
	"context"
	"net/http"
	"time"

	"dlas/internal/domain"
	"dlas/pkg/validator"

	"github.com/google/uuid"
)

// SuspensionStore maintains the suspension registry the eligibility engine
// consults.
type SuspensionStore interface {
	Create(ctx context.Context, suspension *domain.Suspension) error
	ByPerson(ctx context.Context, personID uuid.UUID) ([]*domain.Suspension, error)
}

type SuspensionsHandler struct {
	store     SuspensionStore
	validator *validator.Validator
	logger    Logger
}

func NewSuspensionsHandler(store SuspensionStore, val *validator.Validator, log Logger) *SuspensionsHandler {
	return &SuspensionsHandler{store: store, validator: val, logger: log}
}

type createSuspensionRequest struct {
	Reason    string     `json:"reason" validate:"required,max=255"`
	StartDate time.Time  `json:"start_date" validate:"required"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// Create registers a suspension against a person. An omitted end date
// means the suspension is open-ended.
func (h *SuspensionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !supervisorOnly(w, r) {
		return
	}
	personID, ok := pathID(w, r, "person_id")
	if !ok {
		return
	}
	var req createSuspensionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}
	if req.EndDate != nil && !req.EndDate.After(req.StartDate) {
		respondError(w, http.StatusBadRequest, "end_date must be after start_date")
		return
	}

	suspension := &domain.Suspension{
		ID:        uuid.New(),
		PersonID:  personID,
		Reason:    req.Reason,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}
	if err := h.store.Create(r.Context(), suspension); err != nil {
		h.logger.Error("Suspension create failed", map[string]interface{}{
			"error":     err.Error(),
			"person_id": personID,
		})
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.logger.Info("Suspension registered", map[string]interface{}{
		"suspension_id": suspension.ID,
		"person_id":     personID,
		"actor":         actorFromContext(r),
	})

	respondJSON(w, http.StatusCreated, suspension)
}

// ListByPerson returns a person's suspension history, newest first.
func (h *SuspensionsHandler) ListByPerson(w http.ResponseWriter, r *http.Request) {
	personID, ok := pathID(w, r, "person_id")
	if !ok {
		return
	}
	suspensions, err := h.store.ByPerson(r.Context(), personID)
	if err != nil {
		h.logger.Error("Suspension listing failed", map[string]interface{}{
			"error":     err.Error(),
			"person_id": personID,
		})
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"suspensions": suspensions})
}
