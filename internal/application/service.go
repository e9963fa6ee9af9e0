// Package application owns the license application lifecycle: creation,
// eligibility validation, fees, numbering, and every status transition
// through to issuance.
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"dlas/internal/domain"
	"dlas/internal/fees"
	"dlas/internal/validation"
	pkgerrors "dlas/pkg/errors"
	"dlas/pkg/logger"
)

// Repository persists license applications. Update performs an
// optimistic-concurrency write: it only succeeds against the version the
// caller loaded and returns ErrStaleApplication otherwise.
type Repository interface {
	Create(ctx context.Context, app *domain.LicenseApplication) error
	Update(ctx context.Context, app *domain.LicenseApplication) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.LicenseApplication, error)
	FindByNumber(ctx context.Context, number string) (*domain.LicenseApplication, error)
	FindActive(ctx context.Context, personID uuid.UUID, licenseType domain.LicenseType) (*domain.LicenseApplication, error)
	IssuedByPerson(ctx context.Context, personID uuid.UUID) ([]*domain.LicenseApplication, error)
	ByPerson(ctx context.Context, personID uuid.UUID) ([]*domain.LicenseApplication, error)
	ByStatus(ctx context.Context, status domain.ApplicationStatus, countryCode string, limit, offset int) ([]*domain.LicenseApplication, error)
	CountByStatus(ctx context.Context, status domain.ApplicationStatus, countryCode string) (int, error)
}

// FeeLedger keeps the money side of the lifecycle: creation raises a
// charge, payment confirmation settles it. Open charges feed the
// outstanding-fees warning on later applications.
type FeeLedger interface {
	RecordCharge(ctx context.Context, entry *domain.FeeLedgerEntry) error
	SettleForApplication(ctx context.Context, applicationID uuid.UUID, settledAt time.Time) error
}

// Config carries the jurisdiction settings the lifecycle needs.
type Config struct {
	CountryCode string
	// ValidityYears maps license types to the validity period stamped on
	// issuance. Types not listed use DefaultValidityYears.
	ValidityYears        map[domain.LicenseType]int
	DefaultValidityYears int
}

// DefaultConfig returns the standard lifecycle configuration for a country:
// professional classes are issued for 5 years, everything else for 10.
func DefaultConfig(countryCode string) Config {
	return Config{
		CountryCode: countryCode,
		ValidityYears: map[domain.LicenseType]int{
			domain.LicenseTypeC:   5,
			domain.LicenseTypeC1:  5,
			domain.LicenseTypeD:   5,
			domain.LicenseTypeD1:  5,
			domain.LicenseTypeEB:  5,
			domain.LicenseTypeEC1: 5,
			domain.LicenseTypeEC:  5,
		},
		DefaultValidityYears: 10,
	}
}

// Service drives the application lifecycle state machine.
type Service struct {
	repo         Repository
	ledger       FeeLedger
	orchestrator *validation.Orchestrator
	feeCalc      *fees.Calculator
	numbers      *NumberGenerator
	logger       logger.Logger
	cfg          Config

	// Now supplies timestamps; tests pin it.
	Now func() time.Time
}

func NewService(
	repo Repository,
	ledger FeeLedger,
	orchestrator *validation.Orchestrator,
	feeCalc *fees.Calculator,
	numbers *NumberGenerator,
	log logger.Logger,
	cfg Config,
) *Service {
	return &Service{
		repo:         repo,
		ledger:       ledger,
		orchestrator: orchestrator,
		feeCalc:      feeCalc,
		numbers:      numbers,
		logger:       log,
		cfg:          cfg,
		Now:          time.Now,
	}
}

// ValidateApplication runs the full eligibility check without creating
// anything. Safe to call repeatedly.
func (s *Service) ValidateApplication(ctx context.Context, req *CreateApplicationRequest) (*validation.Result, error) {
	return s.orchestrator.Validate(ctx, validation.Request{
		PersonID:               req.PersonID,
		LicenseType:            req.LicenseType,
		ApplicationType:        req.ApplicationType,
		MedicalCertificateDate: req.MedicalCertificateDate,
	})
}

// CreateApplication validates the request and, if eligible, opens a new
// application in DRAFT with its number, fees and validation evidence
// stamped. The validation result is returned alongside the application so
// callers can surface warnings even on success.
func (s *Service) CreateApplication(ctx context.Context, req *CreateApplicationRequest) (*domain.LicenseApplication, *validation.Result, error) {
	// 1. Full eligibility run. Every failure is reported at once.
	result, err := s.ValidateApplication(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	if !result.Valid {
		return nil, result, result.ValidationError()
	}

	// 2. One active application per (person, license type).
	existing, err := s.repo.FindActive(ctx, req.PersonID, req.LicenseType)
	if err != nil && !errors.Is(err, pkgerrors.ErrApplicationNotFound) {
		return nil, nil, pkgerrors.Wrap(err, "failed to check for active applications")
	}
	if existing != nil {
		s.logger.Warn("Duplicate application blocked", map[string]interface{}{
			"person_id":    req.PersonID,
			"license_type": req.LicenseType,
			"existing":     existing.ApplicationNumber,
		})
		return nil, nil, pkgerrors.ErrActiveApplicationExists
	}

	// 3. Number allocation. Atomic; never read-max-plus-one.
	number, err := s.numbers.Next(ctx)
	if err != nil {
		return nil, nil, err
	}

	// 4. Fees are fixed at creation and immutable afterwards.
	totalFees, err := s.feeCalc.Fee(req.LicenseType, req.ApplicationType)
	if err != nil {
		return nil, nil, err
	}

	now := s.Now()
	app := &domain.LicenseApplication{
		ID:                uuid.New(),
		ApplicationNumber: number,
		PersonID:          req.PersonID,
		LicenseType:       req.LicenseType,
		ApplicationType:   req.ApplicationType,
		Status:            domain.StatusDraft,
		ApplicationDate:   now,

		TestRequired: req.TestRequired,
		TestCenterID: req.TestCenterID,

		MedicalRequired:          result.MedicalRequired,
		MedicalCertificateDate:   req.MedicalCertificateDate,
		MedicalCertificateNumber: req.MedicalCertificateNumber,

		PrerequisiteLicenseID:  result.PrerequisiteLicenseID,
		AgeVerified:            result.AgeEligible,
		OutstandingFeesCleared: result.OutstandingFeesCleared,
		SuspensionCheckPassed:  result.SuspensionCheckPassed,

		TotalFees: totalFees,
		FeesPaid:  decimal.Zero,

		ValidationCodes: domain.StringList{}.Append(result.Codes...),
		BusinessRulesApplied: domain.StringList{}.
			Append(validation.RuleStateManagement, validation.RuleDuplicate).
			Append(result.Rules...),

		ProcessingLocationID: req.ProcessingLocationID,
		Notes:                req.Notes,
		CountryCode:          s.cfg.CountryCode,

		Version:   1,
		CreatedBy: req.CreatedBy,
		UpdatedBy: req.CreatedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, app); err != nil {
		s.logger.Error("Application create failed", map[string]interface{}{
			"error":              err.Error(),
			"application_number": number,
			"person_id":          req.PersonID,
			"license_type":       req.LicenseType,
		})
		return nil, nil, err
	}

	// The charge stays open until the payment collector confirms; while it
	// is open, later applications for this person carry the
	// outstanding-fees warning.
	charge := &domain.FeeLedgerEntry{
		ID:            uuid.New(),
		PersonID:      app.PersonID,
		ApplicationID: &app.ID,
		Description:   fmt.Sprintf("%s %s application %s", app.LicenseType, app.ApplicationType, app.ApplicationNumber),
		Amount:        totalFees,
		CreatedAt:     now,
	}
	if err := s.ledger.RecordCharge(ctx, charge); err != nil {
		return nil, nil, pkgerrors.Wrap(err, "failed to record application fee charge")
	}

	s.logger.Info("Application created", map[string]interface{}{
		"application_id":     app.ID,
		"application_number": app.ApplicationNumber,
		"person_id":          app.PersonID,
		"license_type":       app.LicenseType,
		"total_fees":         app.TotalFees.String(),
	})

	return app, result, nil
}

// SubmitApplication moves a DRAFT application to SUBMITTED. Eligibility is
// re-validated from scratch; a stale pass at creation time is not trusted.
func (s *Service) SubmitApplication(ctx context.Context, id uuid.UUID, actor string) (*domain.LicenseApplication, error) {
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !app.Status.CanTransition(domain.StatusSubmitted) {
		return nil, &pkgerrors.IllegalTransitionError{Status: string(app.Status), Action: "SUBMIT"}
	}

	result, err := s.orchestrator.Validate(ctx, validation.Request{
		PersonID:               app.PersonID,
		LicenseType:            app.LicenseType,
		ApplicationType:        app.ApplicationType,
		MedicalCertificateDate: app.MedicalCertificateDate,
	})
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, result.ValidationError()
	}

	now := s.Now()
	app.Status = domain.StatusSubmitted
	app.SubmittedDate = &now
	app.ValidationCodes = app.ValidationCodes.Append(result.Codes...)
	app.BusinessRulesApplied = app.BusinessRulesApplied.Append(result.Rules...)
	app.UpdatedBy = actor
	app.UpdatedAt = now

	if err := s.repo.Update(ctx, app); err != nil {
		return nil, err
	}

	s.logger.Info("Application submitted", map[string]interface{}{
		"application_id":     app.ID,
		"application_number": app.ApplicationNumber,
	})

	return app, nil
}

// Transition applies one of the administrative lifecycle actions. Illegal
// transitions fail loudly; concurrent writers lose with a conflict, never
// a silent overwrite.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, action Action, tc TransitionContext) (*domain.LicenseApplication, error) {
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	target, ok := actionTargets[action]
	if !ok {
		return nil, pkgerrors.ErrUnknownTransitionAction
	}
	if !app.Status.CanTransition(target) {
		return nil, &pkgerrors.IllegalTransitionError{Status: string(app.Status), Action: string(action)}
	}

	now := s.Now()
	switch action {
	case ActionBeginReview, ActionRequestPayment:
		// Administrative moves, timestamp only.

	case ActionConfirmPayment:
		if err := s.applyPayment(app, tc); err != nil {
			return nil, err
		}

	case ActionApprove:
		if !app.FeesPaid.Equal(app.TotalFees) {
			return nil, pkgerrors.ErrFeesNotSettled
		}
		app.ApprovedDate = &now
		app.ApproverID = tc.ApproverID

	case ActionReject:
		if tc.RejectionReason == "" {
			return nil, pkgerrors.ErrMissingRejectionReason
		}
		reason := tc.RejectionReason
		app.RejectionReason = &reason

	case ActionCancel:
		// Withdrawal carries no side effects.

	case ActionMarkProduced:
		// Card production confirmed by the production collaborator.

	case ActionMarkIssued:
		expiry := now.AddDate(s.validityYears(app.LicenseType), 0, 0)
		app.ExpiryDate = &expiry
	}

	app.Status = target
	app.UpdatedBy = tc.Actor
	app.UpdatedAt = now

	if err := s.repo.Update(ctx, app); err != nil {
		return nil, err
	}

	if action == ActionConfirmPayment {
		if err := s.ledger.SettleForApplication(ctx, app.ID, now); err != nil {
			return nil, pkgerrors.Wrap(err, "failed to settle application fees")
		}
	}

	s.logger.Info("Application transitioned", map[string]interface{}{
		"application_id":     app.ID,
		"application_number": app.ApplicationNumber,
		"action":             action,
		"status":             app.Status,
	})

	return app, nil
}

var actionTargets = map[Action]domain.ApplicationStatus{
	ActionBeginReview:    domain.StatusUnderReview,
	ActionRequestPayment: domain.StatusPaymentPending,
	ActionConfirmPayment: domain.StatusPaymentConfirmed,
	ActionApprove:        domain.StatusApproved,
	ActionReject:         domain.StatusRejected,
	ActionCancel:         domain.StatusCancelled,
	ActionMarkProduced:   domain.StatusLicenseProduced,
	ActionMarkIssued:     domain.StatusLicenseIssued,
}

// applyPayment records the amount the payment collaborator reported.
// Payment must settle the fees exactly before confirmation.
func (s *Service) applyPayment(app *domain.LicenseApplication, tc TransitionContext) error {
	paid := app.FeesPaid.Add(tc.AmountPaid)
	if paid.GreaterThan(app.TotalFees) {
		return pkgerrors.ErrOverpayment
	}
	if !paid.Equal(app.TotalFees) {
		return pkgerrors.ErrFeesNotSettled
	}
	app.FeesPaid = paid
	if tc.PaymentReference != "" {
		ref := tc.PaymentReference
		app.PaymentReference = &ref
	}
	return nil
}

func (s *Service) validityYears(licenseType domain.LicenseType) int {
	if years, ok := s.cfg.ValidityYears[licenseType]; ok {
		return years
	}
	return s.cfg.DefaultValidityYears
}

// RecordTestResult attaches a driving test outcome. The lifecycle status
// is not changed; terminal applications cannot be amended.
func (s *Service) RecordTestResult(ctx context.Context, id uuid.UUID, update TestResultUpdate) (*domain.LicenseApplication, error) {
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.Status.Terminal() {
		return nil, &pkgerrors.IllegalTransitionError{Status: string(app.Status), Action: "RECORD_TEST_RESULT"}
	}

	result := update.Result
	testDate := update.TestDate
	app.TestResult = &result
	app.TestDate = &testDate
	app.TestScore = update.Score
	if update.TestCenterID != nil {
		app.TestCenterID = update.TestCenterID
	}
	app.UpdatedBy = update.UpdatedBy
	app.UpdatedAt = s.Now()

	if err := s.repo.Update(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

// RecordMedicalCertificate attaches medical evidence. The certificate is
// re-examined on the next validation run; recording it here does not make
// the application eligible by itself.
func (s *Service) RecordMedicalCertificate(ctx context.Context, id uuid.UUID, update MedicalCertificateUpdate) (*domain.LicenseApplication, error) {
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.Status.Terminal() {
		return nil, &pkgerrors.IllegalTransitionError{Status: string(app.Status), Action: "RECORD_MEDICAL_CERTIFICATE"}
	}

	certDate := update.CertificateDate
	certNumber := update.CertificateNumber
	app.MedicalCertificateDate = &certDate
	app.MedicalCertificateNumber = &certNumber
	app.UpdatedBy = update.UpdatedBy
	app.UpdatedAt = s.Now()

	if err := s.repo.Update(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

// GetApplication returns one application by id.
func (s *Service) GetApplication(ctx context.Context, id uuid.UUID) (*domain.LicenseApplication, error) {
	return s.repo.FindByID(ctx, id)
}

// GetApplicationByNumber returns one application by its human-facing number.
func (s *Service) GetApplicationByNumber(ctx context.Context, number string) (*domain.LicenseApplication, error) {
	return s.repo.FindByNumber(ctx, number)
}

// ApplicationsByPerson lists a person's applications, newest first.
func (s *Service) ApplicationsByPerson(ctx context.Context, personID uuid.UUID) ([]*domain.LicenseApplication, error) {
	return s.repo.ByPerson(ctx, personID)
}

// ApplicationsByStatus lists applications in one lifecycle state for this
// country, newest first.
func (s *Service) ApplicationsByStatus(ctx context.Context, status domain.ApplicationStatus, limit, offset int) ([]*domain.LicenseApplication, error) {
	return s.repo.ByStatus(ctx, status, s.cfg.CountryCode, limit, offset)
}

// CountApplicationsByStatus reports how many applications sit in one
// lifecycle state for this country, so callers can page through ByStatus.
func (s *Service) CountApplicationsByStatus(ctx context.Context, status domain.ApplicationStatus) (int, error) {
	return s.repo.CountByStatus(ctx, status, s.cfg.CountryCode)
}
