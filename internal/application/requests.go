package application

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"dlas/internal/domain"
)

// CreateApplicationRequest is the payload for opening a new application.
type CreateApplicationRequest struct {
	PersonID                 uuid.UUID              `json:"person_id" validate:"required"`
	LicenseType              domain.LicenseType     `json:"license_type" validate:"required,license_type"`
	ApplicationType          domain.ApplicationType `json:"application_type" validate:"required,application_type"`
	TestRequired             bool                   `json:"test_required"`
	MedicalCertificateDate   *time.Time             `json:"medical_certificate_date,omitempty"`
	MedicalCertificateNumber *string                `json:"medical_certificate_number,omitempty"`
	ProcessingLocationID     *uuid.UUID             `json:"processing_location_id,omitempty"`
	TestCenterID             *uuid.UUID             `json:"test_center_id,omitempty"`
	Notes                    *string                `json:"notes,omitempty"`
	CreatedBy                string                 `json:"-"`
}

// Action names a lifecycle transition invoked through Transition.
type Action string

const (
	ActionBeginReview    Action = "BEGIN_REVIEW"
	ActionRequestPayment Action = "REQUEST_PAYMENT"
	ActionConfirmPayment Action = "CONFIRM_PAYMENT"
	ActionApprove        Action = "APPROVE"
	ActionReject         Action = "REJECT"
	ActionCancel         Action = "CANCEL"
	ActionMarkProduced   Action = "MARK_PRODUCED"
	ActionMarkIssued     Action = "MARK_ISSUED"
)

// TransitionContext carries the action-specific inputs. Only the fields
// the requested action reads are consulted.
type TransitionContext struct {
	Actor            string          `json:"-"`
	ApproverID       *uuid.UUID      `json:"approver_id,omitempty"`
	AmountPaid       decimal.Decimal `json:"amount_paid"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	RejectionReason  string          `json:"rejection_reason,omitempty"`
}

// TestResultUpdate records a driving test outcome on an application
// without changing its lifecycle status.
type TestResultUpdate struct {
	Result       domain.TestResult `json:"result" validate:"required,oneof=PASS FAIL PENDING"`
	Score        *int              `json:"score,omitempty" validate:"omitempty,min=0,max=100"`
	TestDate     time.Time         `json:"test_date" validate:"required"`
	TestCenterID *uuid.UUID        `json:"test_center_id,omitempty"`
	UpdatedBy    string            `json:"-"`
}

// MedicalCertificateUpdate attaches medical evidence to an application
// without changing its lifecycle status.
type MedicalCertificateUpdate struct {
	CertificateDate   time.Time `json:"certificate_date" validate:"required"`
	CertificateNumber string    `json:"certificate_number" validate:"required,max=50"`
	UpdatedBy         string    `json:"-"`
}
