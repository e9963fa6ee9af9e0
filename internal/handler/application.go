package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dlas/internal/application"
	"dlas/internal/domain"
	"dlas/internal/middleware"
	pkgerrors "dlas/pkg/errors"
	"dlas/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

type ApplicationsHandler struct {
	service   *application.Service
	validator *validator.Validator
	logger    Logger
}

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

func NewApplicationsHandler(service *application.Service, val *validator.Validator, log Logger) *ApplicationsHandler {
	return &ApplicationsHandler{service: service, validator: val, logger: log}
}

func (h *ApplicationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req application.CreateApplicationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}
	req.CreatedBy = actorFromContext(r)

	app, result, err := h.service.CreateApplication(r.Context(), &req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"application": app,
		"validation":  result,
	})
}

// Validate runs the eligibility checks without creating anything. An
// ineligible applicant is a 200 here; the caller asked a question and got
// an answer.
func (h *ApplicationsHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req application.CreateApplicationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	result, err := h.service.ValidateApplication(r.Context(), &req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *ApplicationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	app, err := h.service.GetApplication(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, app)
}

func (h *ApplicationsHandler) GetByNumber(w http.ResponseWriter, r *http.Request) {
	number := mux.Vars(r)["number"]
	app, err := h.service.GetApplicationByNumber(r.Context(), number)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, app)
}

type listApplicationsResponse struct {
	Applications []*domain.LicenseApplication `json:"applications"`
	Total        int                          `json:"total"`
	Limit        int                          `json:"limit"`
	Offset       int                          `json:"offset"`
}

func (h *ApplicationsHandler) ListByStatus(w http.ResponseWriter, r *http.Request) {
	status := domain.ApplicationStatus(r.URL.Query().Get("status"))
	if status == "" {
		respondError(w, http.StatusBadRequest, "status query parameter required")
		return
	}

	limit := 50
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 && n <= 200 {
			limit = int(n)
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			offset = int(n)
		}
	}

	apps, err := h.service.ApplicationsByStatus(r.Context(), status, limit, offset)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	total, err := h.service.CountApplicationsByStatus(r.Context(), status)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, listApplicationsResponse{Applications: apps, Total: total, Limit: limit, Offset: offset})
}

func (h *ApplicationsHandler) ListByPerson(w http.ResponseWriter, r *http.Request) {
	personID, ok := pathID(w, r, "person_id")
	if !ok {
		return
	}
	apps, err := h.service.ApplicationsByPerson(r.Context(), personID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, listApplicationsResponse{Applications: apps, Total: len(apps)})
}

func (h *ApplicationsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	app, err := h.service.SubmitApplication(r.Context(), id, actorFromContext(r))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, app)
}

type transitionRequest struct {
	Action           application.Action `json:"action" validate:"required"`
	ApproverID       *uuid.UUID         `json:"approver_id,omitempty"`
	AmountPaid       *decimal.Decimal   `json:"amount_paid,omitempty"`
	PaymentReference string             `json:"payment_reference,omitempty"`
	RejectionReason  string             `json:"rejection_reason,omitempty"`
}

func (h *ApplicationsHandler) Transition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req transitionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	// Approvals and rejections are supervisor-only; clerks can do
	// everything else.
	if req.Action == application.ActionApprove || req.Action == application.ActionReject {
		if !supervisorOnly(w, r) {
			return
		}
	}

	tc := application.TransitionContext{
		Actor:            actorFromContext(r),
		ApproverID:       req.ApproverID,
		PaymentReference: req.PaymentReference,
		RejectionReason:  req.RejectionReason,
	}
	if req.AmountPaid != nil {
		tc.AmountPaid = *req.AmountPaid
	}

	app, err := h.service.Transition(r.Context(), id, req.Action, tc)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, app)
}

type testResultRequest struct {
	Result       domain.TestResult `json:"result" validate:"required,oneof=PASS FAIL PENDING"`
	Score        *int              `json:"score,omitempty" validate:"omitempty,min=0,max=100"`
	TestDate     time.Time         `json:"test_date" validate:"required"`
	TestCenterID *uuid.UUID        `json:"test_center_id,omitempty"`
}

func (h *ApplicationsHandler) RecordTestResult(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req testResultRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	app, err := h.service.RecordTestResult(r.Context(), id, application.TestResultUpdate{
		Result:       req.Result,
		Score:        req.Score,
		TestDate:     req.TestDate,
		TestCenterID: req.TestCenterID,
		UpdatedBy:    actorFromContext(r),
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, app)
}

type medicalCertificateRequest struct {
	CertificateDate   time.Time `json:"certificate_date" validate:"required"`
	CertificateNumber string    `json:"certificate_number" validate:"required,max=64"`
}

func (h *ApplicationsHandler) RecordMedicalCertificate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req medicalCertificateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	app, err := h.service.RecordMedicalCertificate(r.Context(), id, application.MedicalCertificateUpdate{
		CertificateDate:   req.CertificateDate,
		CertificateNumber: req.CertificateNumber,
		UpdatedBy:         actorFromContext(r),
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, app)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// supervisorOnly rejects the request unless the authenticated officer
// carries the SUPERVISOR role.
func supervisorOnly(w http.ResponseWriter, r *http.Request) bool {
	role, ok := middleware.RoleFromContext(r.Context())
	if !ok || !strings.EqualFold(role, "SUPERVISOR") {
		respondError(w, http.StatusForbidden, "Supervisor role required")
		return false
	}
	return true
}

// respondServiceError maps service errors onto HTTP statuses. Eligibility
// failures are 422 with the failed codes spelled out; conflicts and
// illegal transitions are 409; anything unexpected is logged and hidden
// behind a 500.
func (h *ApplicationsHandler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *pkgerrors.ValidationError
	if errors.As(err, &ve) {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":    "Application validation failed",
			"failures": ve.Failures,
		})
		return
	}

	switch {
	case pkgerrors.IsNotFound(err):
		respondError(w, http.StatusNotFound, err.Error())
	case pkgerrors.IsConflict(err), pkgerrors.IsIllegalTransition(err):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, pkgerrors.ErrFeesNotSettled),
		errors.Is(err, pkgerrors.ErrOverpayment),
		errors.Is(err, pkgerrors.ErrMissingRejectionReason),
		errors.Is(err, pkgerrors.ErrUnknownTransitionAction):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error("Request failed", map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
			"error":  err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func actorFromContext(r *http.Request) string {
	if username, ok := middleware.UsernameFromContext(r.Context()); ok {
		return username
	}
	if officerID, ok := middleware.OfficerIDFromContext(r.Context()); ok {
		return officerID.String()
	}
	return "system"
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondValidationErrors(w http.ResponseWriter, errors map[string]string) {
	respondJSON(w, http.StatusBadRequest, map[string]interface{}{
		"error":             "Validation failed",
		"validation_errors": errors,
	})
}
