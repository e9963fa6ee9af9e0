// Package domain holds the licensing entities shared across services.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LicenseType classifies the driving privilege applied for.
type LicenseType string

const (
	LicenseTypeLearnerA LicenseType = "A1" // Learner - Motorcycle
	LicenseTypeLearnerB LicenseType = "B1" // Learner - Light Motor Vehicle
	LicenseTypeA        LicenseType = "A"  // Motorcycle
	LicenseTypeB        LicenseType = "B"  // Light Motor Vehicle
	LicenseTypeC1       LicenseType = "C1" // Heavy Motor Vehicle (3500-16000kg)
	LicenseTypeC        LicenseType = "C"  // Heavy Motor Vehicle (>16000kg)
	LicenseTypeD1       LicenseType = "D1" // Minibus (8-16 passengers)
	LicenseTypeD        LicenseType = "D"  // Bus (>16 passengers)
	LicenseTypeEB       LicenseType = "EB" // Articulated Heavy Motor Vehicle
	LicenseTypeEC1      LicenseType = "EC1" // Heavy Motor Vehicle with trailer
	LicenseTypeEC       LicenseType = "EC" // Heavy Motor Vehicle with heavy trailer
)

// ApplicationType affects the fee multiplier only, never eligibility.
type ApplicationType string

const (
	ApplicationTypeNew       ApplicationType = "NEW"
	ApplicationTypeRenewal   ApplicationType = "RENEWAL"
	ApplicationTypeUpgrade   ApplicationType = "UPGRADE"
	ApplicationTypeDuplicate ApplicationType = "DUPLICATE"
)

// TestResult records the outcome of a driving test.
type TestResult string

const (
	TestResultPass    TestResult = "PASS"
	TestResultFail    TestResult = "FAIL"
	TestResultPending TestResult = "PENDING"
)

// StringList stores an ordered list of strings as a JSON column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, l)
}

// Append adds entries not already present, preserving order. The evidence
// trail is append-only; nothing is ever removed from it.
func (l StringList) Append(entries ...string) StringList {
	seen := make(map[string]struct{}, len(l))
	for _, e := range l {
		seen[e] = struct{}{}
	}
	out := l
	for _, e := range entries {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}

// LicenseApplication is the aggregate root of the licensing engine. It is
// created in DRAFT and mutated only through lifecycle transitions or
// administrative field updates; terminal applications are kept forever.
type LicenseApplication struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	ApplicationNumber string          `json:"application_number" db:"application_number"`
	PersonID          uuid.UUID       `json:"person_id" db:"person_id"`
	LicenseType       LicenseType     `json:"license_type" db:"license_type"`
	ApplicationType   ApplicationType `json:"application_type" db:"application_type"`
	Status            ApplicationStatus `json:"status" db:"status"`

	ApplicationDate time.Time  `json:"application_date" db:"application_date"`
	SubmittedDate   *time.Time `json:"submitted_date,omitempty" db:"submitted_date"`
	ApprovedDate    *time.Time `json:"approved_date,omitempty" db:"approved_date"`
	ExpiryDate      *time.Time `json:"expiry_date,omitempty" db:"expiry_date"`

	TestRequired bool       `json:"test_required" db:"test_required"`
	TestDate     *time.Time `json:"test_date,omitempty" db:"test_date"`
	TestCenterID *uuid.UUID `json:"test_center_id,omitempty" db:"test_center_id"`
	TestResult   *TestResult `json:"test_result,omitempty" db:"test_result"`
	TestScore    *int       `json:"test_score,omitempty" db:"test_score"`

	MedicalRequired          bool       `json:"medical_required" db:"medical_required"`
	MedicalCertificateDate   *time.Time `json:"medical_certificate_date,omitempty" db:"medical_certificate_date"`
	MedicalCertificateNumber *string    `json:"medical_certificate_number,omitempty" db:"medical_certificate_number"`

	PrerequisiteLicenseID  *uuid.UUID `json:"prerequisite_license_id,omitempty" db:"prerequisite_license_id"`
	AgeVerified            bool       `json:"age_verified" db:"age_verified"`
	OutstandingFeesCleared bool       `json:"outstanding_fees_cleared" db:"outstanding_fees_cleared"`
	SuspensionCheckPassed  bool       `json:"suspension_check_passed" db:"suspension_check_passed"`

	TotalFees        decimal.Decimal `json:"total_fees" db:"total_fees"`
	FeesPaid         decimal.Decimal `json:"fees_paid" db:"fees_paid"`
	PaymentReference *string         `json:"payment_reference,omitempty" db:"payment_reference"`

	ValidationCodes      StringList `json:"validation_codes" db:"validation_codes"`
	BusinessRulesApplied StringList `json:"business_rules_applied" db:"business_rules_applied"`

	ProcessingLocationID *uuid.UUID `json:"processing_location_id,omitempty" db:"processing_location_id"`
	ExaminerID           *uuid.UUID `json:"examiner_id,omitempty" db:"examiner_id"`
	ApproverID           *uuid.UUID `json:"approver_id,omitempty" db:"approver_id"`

	Notes           *string `json:"notes,omitempty" db:"notes"`
	RejectionReason *string `json:"rejection_reason,omitempty" db:"rejection_reason"`

	CountryCode string `json:"country_code" db:"country_code"`

	// Version guards status transitions with optimistic concurrency.
	Version   int       `json:"version" db:"version"`
	CreatedBy string    `json:"created_by" db:"created_by"`
	UpdatedBy string    `json:"updated_by" db:"updated_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Person is the subset of the person registry the engine reads. The
// registry itself is maintained elsewhere.
type Person struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Surname     string     `json:"surname" db:"surname"`
	FirstNames  *string    `json:"first_names,omitempty" db:"first_names"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty" db:"date_of_birth"`
	CountryCode string     `json:"country_code" db:"country_code"`
}

// Age returns whole years elapsed between the birth date and now,
// accounting for whether the birthday has occurred this year.
func (p *Person) Age(now time.Time) (int, bool) {
	if p.DateOfBirth == nil {
		return 0, false
	}
	dob := *p.DateOfBirth
	years := now.Year() - dob.Year()
	anniversary := time.Date(now.Year(), dob.Month(), dob.Day(), 0, 0, 0, 0, now.Location())
	if now.Before(anniversary) {
		years--
	}
	return years, true
}

// Suspension is an entry in the suspension registry. A suspension with no
// end date, or an end date in the future, is active.
type Suspension struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	PersonID  uuid.UUID  `json:"person_id" db:"person_id"`
	Reason    string     `json:"reason" db:"reason"`
	StartDate time.Time  `json:"start_date" db:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty" db:"end_date"`
}

// Active reports whether the suspension is in force at the given instant.
func (s *Suspension) Active(now time.Time) bool {
	if now.Before(s.StartDate) {
		return false
	}
	return s.EndDate == nil || now.Before(*s.EndDate)
}

// SuspensionCheck is what the suspension registry reports for a person.
type SuspensionCheck struct {
	Suspended bool       `json:"suspended"`
	Reason    string     `json:"reason,omitempty"`
	Until     *time.Time `json:"until,omitempty"`
}
