package handler

import (
	"net/http"

	"dlas/internal/domain"
	"dlas/internal/fees"
)

// FeesHandler quotes fees without touching any application. Front desks
// use it to tell applicants what a transaction will cost before anything
// is opened.
type FeesHandler struct {
	calculator *fees.Calculator
}

func NewFeesHandler(calculator *fees.Calculator) *FeesHandler {
	return &FeesHandler{calculator: calculator}
}

func (h *FeesHandler) Quote(w http.ResponseWriter, r *http.Request) {
	licenseType := domain.LicenseType(r.URL.Query().Get("license_type"))
	applicationType := domain.ApplicationType(r.URL.Query().Get("application_type"))
	if licenseType == "" || applicationType == "" {
		respondError(w, http.StatusBadRequest, "license_type and application_type query parameters required")
		return
	}

	fee, err := h.calculator.Fee(licenseType, applicationType)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"license_type":     licenseType,
		"application_type": applicationType,
		"total_fees":       fee,
	})
}
