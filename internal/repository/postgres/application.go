package postgres

import (
	"context"
	"database/sql"
	"strings"

	"dlas/internal/domain"
	"dlas/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const applicationColumns = `
	id, application_number, person_id, license_type, application_type, status,
	application_date, submitted_date, approved_date, expiry_date,
	test_required, test_date, test_center_id, test_result, test_score,
	medical_required, medical_certificate_date, medical_certificate_number,
	prerequisite_license_id, age_verified, outstanding_fees_cleared, suspension_check_passed,
	total_fees, fees_paid, payment_reference,
	validation_codes, business_rules_applied,
	processing_location_id, examiner_id, approver_id,
	notes, rejection_reason, country_code,
	version, created_by, updated_by, created_at, updated_at`

type ApplicationRepository struct {
	db *sqlx.DB
}

func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

func (r *ApplicationRepository) Create(ctx context.Context, app *domain.LicenseApplication) error {
	query := `
        INSERT INTO licensing_schema.license_applications (
            id, application_number, person_id, license_type, application_type, status,
            application_date, submitted_date, approved_date, expiry_date,
            test_required, test_date, test_center_id, test_result, test_score,
            medical_required, medical_certificate_date, medical_certificate_number,
            prerequisite_license_id, age_verified, outstanding_fees_cleared, suspension_check_passed,
            total_fees, fees_paid, payment_reference,
            validation_codes, business_rules_applied,
            processing_location_id, examiner_id, approver_id,
            notes, rejection_reason, country_code,
            version, created_by, updated_by, created_at, updated_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
            $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28,
            $29, $30, $31, $32, $33, $34, $35, $36, $37, $38
        )
    `

	_, err := r.db.ExecContext(ctx, query,
		app.ID, app.ApplicationNumber, app.PersonID, app.LicenseType, app.ApplicationType, app.Status,
		app.ApplicationDate, app.SubmittedDate, app.ApprovedDate, app.ExpiryDate,
		app.TestRequired, app.TestDate, app.TestCenterID, app.TestResult, app.TestScore,
		app.MedicalRequired, app.MedicalCertificateDate, app.MedicalCertificateNumber,
		app.PrerequisiteLicenseID, app.AgeVerified, app.OutstandingFeesCleared, app.SuspensionCheckPassed,
		app.TotalFees, app.FeesPaid, app.PaymentReference,
		app.ValidationCodes, app.BusinessRulesApplied,
		app.ProcessingLocationID, app.ExaminerID, app.ApproverID,
		app.Notes, app.RejectionReason, app.CountryCode,
		app.Version, app.CreatedBy, app.UpdatedBy, app.CreatedAt, app.UpdatedAt,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			if strings.Contains(pqErr.Constraint, "application_number") {
				return errors.ErrApplicationNumberTaken
			}
			if strings.Contains(pqErr.Constraint, "one_active") {
				return errors.ErrActiveApplicationExists
			}
		}
		return errors.Wrap(err, "failed to create application")
	}

	return nil
}

// Update writes the mutable lifecycle fields and bumps the version. The
// WHERE clause pins the version the caller loaded, so a concurrent writer
// that got there first leaves this write matching zero rows.
func (r *ApplicationRepository) Update(ctx context.Context, app *domain.LicenseApplication) error {
	query := `
		UPDATE licensing_schema.license_applications SET
			status = $1, submitted_date = $2, approved_date = $3, expiry_date = $4,
			test_date = $5, test_center_id = $6, test_result = $7, test_score = $8,
			medical_certificate_date = $9, medical_certificate_number = $10,
			fees_paid = $11, payment_reference = $12,
			validation_codes = $13, business_rules_applied = $14,
			examiner_id = $15, approver_id = $16,
			notes = $17, rejection_reason = $18,
			version = version + 1, updated_by = $19, updated_at = $20
		WHERE id = $21 AND version = $22
	`

	res, err := r.db.ExecContext(ctx, query,
		app.Status, app.SubmittedDate, app.ApprovedDate, app.ExpiryDate,
		app.TestDate, app.TestCenterID, app.TestResult, app.TestScore,
		app.MedicalCertificateDate, app.MedicalCertificateNumber,
		app.FeesPaid, app.PaymentReference,
		app.ValidationCodes, app.BusinessRulesApplied,
		app.ExaminerID, app.ApproverID,
		app.Notes, app.RejectionReason,
		app.UpdatedBy, app.UpdatedAt,
		app.ID, app.Version,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update application")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read update result")
	}
	if affected == 0 {
		return errors.ErrStaleApplication
	}

	app.Version++
	return nil
}

func (r *ApplicationRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.LicenseApplication, error) {
	var app domain.LicenseApplication
	query := `SELECT ` + applicationColumns + `
		FROM licensing_schema.license_applications WHERE id = $1`

	err := r.db.GetContext(ctx, &app, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrApplicationNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find application")
	}

	return &app, nil
}

func (r *ApplicationRepository) FindByNumber(ctx context.Context, number string) (*domain.LicenseApplication, error) {
	var app domain.LicenseApplication
	query := `SELECT ` + applicationColumns + `
		FROM licensing_schema.license_applications WHERE application_number = $1`

	err := r.db.GetContext(ctx, &app, query, number)
	if err == sql.ErrNoRows {
		return nil, errors.ErrApplicationNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find application by number")
	}

	return &app, nil
}

// FindActive returns the one in-flight application for this person and
// license type, if any.
func (r *ApplicationRepository) FindActive(ctx context.Context, personID uuid.UUID, licenseType domain.LicenseType) (*domain.LicenseApplication, error) {
	statuses := make([]string, len(domain.ActiveStatuses))
	for i, s := range domain.ActiveStatuses {
		statuses[i] = string(s)
	}

	query, args, err := sqlx.In(`SELECT `+applicationColumns+`
		FROM licensing_schema.license_applications
		WHERE person_id = ? AND license_type = ? AND status IN (?)
		ORDER BY created_at DESC
		LIMIT 1`, personID, licenseType, statuses)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build active application query")
	}

	var app domain.LicenseApplication
	err = r.db.GetContext(ctx, &app, r.db.Rebind(query), args...)
	if err == sql.ErrNoRows {
		return nil, errors.ErrApplicationNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find active application")
	}

	return &app, nil
}

// IssuedByPerson returns the person's issued licenses, the population the
// prerequisite check runs against.
func (r *ApplicationRepository) IssuedByPerson(ctx context.Context, personID uuid.UUID) ([]*domain.LicenseApplication, error) {
	var apps []*domain.LicenseApplication
	query := `SELECT ` + applicationColumns + `
		FROM licensing_schema.license_applications
		WHERE person_id = $1 AND status = $2
		ORDER BY approved_date DESC`

	err := r.db.SelectContext(ctx, &apps, query, personID, domain.StatusLicenseIssued)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find issued licenses")
	}

	return apps, nil
}

func (r *ApplicationRepository) ByPerson(ctx context.Context, personID uuid.UUID) ([]*domain.LicenseApplication, error) {
	var apps []*domain.LicenseApplication
	query := `SELECT ` + applicationColumns + `
		FROM licensing_schema.license_applications
		WHERE person_id = $1
		ORDER BY created_at DESC`

	err := r.db.SelectContext(ctx, &apps, query, personID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find applications by person")
	}

	return apps, nil
}

func (r *ApplicationRepository) ByStatus(ctx context.Context, status domain.ApplicationStatus, countryCode string, limit, offset int) ([]*domain.LicenseApplication, error) {
	var apps []*domain.LicenseApplication
	query := `SELECT ` + applicationColumns + `
		FROM licensing_schema.license_applications
		WHERE status = $1 AND country_code = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`

	err := r.db.SelectContext(ctx, &apps, query, status, countryCode, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find applications by status")
	}

	return apps, nil
}

func (r *ApplicationRepository) CountByStatus(ctx context.Context, status domain.ApplicationStatus, countryCode string) (int, error) {
	var total int
	query := `
        SELECT COUNT(*)
        FROM licensing_schema.license_applications
        WHERE status = $1 AND country_code = $2
    `
	err := r.db.GetContext(ctx, &total, query, status, countryCode)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count applications by status")
	}
	return total, nil
}
