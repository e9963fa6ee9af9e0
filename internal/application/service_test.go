package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dlas/internal/domain"
	"dlas/internal/fees"
	"dlas/internal/validation"
	pkgerrors "dlas/pkg/errors"
	"dlas/pkg/logger"
)

var testNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

// --- Mocks ---

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, app *domain.LicenseApplication) error {
	args := m.Called(ctx, app)
	return args.Error(0)
}

func (m *MockRepository) Update(ctx context.Context, app *domain.LicenseApplication) error {
	args := m.Called(ctx, app)
	return args.Error(0)
}

func (m *MockRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.LicenseApplication, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LicenseApplication), args.Error(1)
}

func (m *MockRepository) FindByNumber(ctx context.Context, number string) (*domain.LicenseApplication, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LicenseApplication), args.Error(1)
}

func (m *MockRepository) FindActive(ctx context.Context, personID uuid.UUID, licenseType domain.LicenseType) (*domain.LicenseApplication, error) {
	args := m.Called(ctx, personID, licenseType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LicenseApplication), args.Error(1)
}

func (m *MockRepository) IssuedByPerson(ctx context.Context, personID uuid.UUID) ([]*domain.LicenseApplication, error) {
	args := m.Called(ctx, personID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.LicenseApplication), args.Error(1)
}

func (m *MockRepository) ByPerson(ctx context.Context, personID uuid.UUID) ([]*domain.LicenseApplication, error) {
	args := m.Called(ctx, personID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.LicenseApplication), args.Error(1)
}

func (m *MockRepository) ByStatus(ctx context.Context, status domain.ApplicationStatus, countryCode string, limit, offset int) ([]*domain.LicenseApplication, error) {
	args := m.Called(ctx, status, countryCode, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.LicenseApplication), args.Error(1)
}

func (m *MockRepository) CountByStatus(ctx context.Context, status domain.ApplicationStatus, countryCode string) (int, error) {
	args := m.Called(ctx, status, countryCode)
	return args.Int(0), args.Error(1)
}

type MockPersonLookup struct {
	mock.Mock
}

func (m *MockPersonLookup) Get(ctx context.Context, personID uuid.UUID) (*domain.Person, error) {
	args := m.Called(ctx, personID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Person), args.Error(1)
}

type MockPaymentLedger struct {
	mock.Mock
}

func (m *MockPaymentLedger) HasOutstandingFees(ctx context.Context, personID uuid.UUID) (bool, error) {
	args := m.Called(ctx, personID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentLedger) RecordCharge(ctx context.Context, entry *domain.FeeLedgerEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockPaymentLedger) SettleForApplication(ctx context.Context, applicationID uuid.UUID, settledAt time.Time) error {
	args := m.Called(ctx, applicationID, settledAt)
	return args.Error(0)
}

type MockSuspensionRegistry struct {
	mock.Mock
}

func (m *MockSuspensionRegistry) Check(ctx context.Context, personID uuid.UUID, asOf time.Time) (domain.SuspensionCheck, error) {
	args := m.Called(ctx, personID, asOf)
	return args.Get(0).(domain.SuspensionCheck), args.Error(1)
}

// --- Fixture ---

type serviceFixture struct {
	svc         *Service
	repo        *MockRepository
	persons     *MockPersonLookup
	ledger      *MockPaymentLedger
	suspensions *MockSuspensionRegistry
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		repo:        new(MockRepository),
		persons:     new(MockPersonLookup),
		ledger:      new(MockPaymentLedger),
		suspensions: new(MockSuspensionRegistry),
	}

	orch := validation.NewOrchestrator(validation.DefaultRules(), f.persons, f.repo, f.ledger, f.suspensions)
	orch.Now = func() time.Time { return testNow }

	gen := NewNumberGenerator(newMemoryAllocator(), "MW")
	gen.Now = func() time.Time { return testNow }

	f.svc = NewService(
		f.repo,
		f.ledger,
		orch,
		fees.NewCalculator(fees.DefaultSchedule()),
		gen,
		logger.NewNop(),
		DefaultConfig("MW"),
	)
	f.svc.Now = func() time.Time { return testNow }
	return f
}

func (f *serviceFixture) eligiblePerson(personID uuid.UUID, ageYears int) {
	dob := testNow.AddDate(-ageYears, 0, 0)
	f.persons.On("Get", mock.Anything, personID).Return(
		&domain.Person{ID: personID, Surname: "Banda", DateOfBirth: &dob, CountryCode: "MW"}, nil)
	f.repo.On("IssuedByPerson", mock.Anything, personID).Return([]*domain.LicenseApplication{}, nil)
	f.ledger.On("HasOutstandingFees", mock.Anything, personID).Return(false, nil)
	f.suspensions.On("Check", mock.Anything, personID, testNow).Return(domain.SuspensionCheck{}, nil)
}

func draftApplication(personID uuid.UUID) *domain.LicenseApplication {
	return &domain.LicenseApplication{
		ID:                uuid.New(),
		ApplicationNumber: "MW2026000042",
		PersonID:          personID,
		LicenseType:       domain.LicenseTypeB,
		ApplicationType:   domain.ApplicationTypeNew,
		Status:            domain.StatusDraft,
		ApplicationDate:   testNow.AddDate(0, 0, -1),
		TotalFees:         decimal.RequireFromString("200.00"),
		FeesPaid:          decimal.Zero,
		CountryCode:       "MW",
		Version:           1,
	}
}

// --- Create ---

func TestCreateApplication_Success(t *testing.T) {
	f := newServiceFixture()
	personID := uuid.New()
	f.eligiblePerson(personID, 30)
	f.repo.On("FindActive", mock.Anything, personID, domain.LicenseTypeB).Return(nil, pkgerrors.ErrApplicationNotFound)
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.LicenseApplication")).Return(nil)
	f.ledger.On("RecordCharge", mock.Anything, mock.AnythingOfType("*domain.FeeLedgerEntry")).Return(nil)

	app, result, err := f.svc.CreateApplication(context.Background(), &CreateApplicationRequest{
		PersonID:        personID,
		LicenseType:     domain.LicenseTypeB,
		ApplicationType: domain.ApplicationTypeNew,
		TestRequired:    true,
		CreatedBy:       "clerk-1",
	})
	require.NoError(t, err)
	require.NotNil(t, app)
	require.NotNil(t, result)

	assert.Equal(t, domain.StatusDraft, app.Status)
	assert.Equal(t, "MW2026000001", app.ApplicationNumber)
	assert.Equal(t, "200.00", app.TotalFees.StringFixed(2))
	assert.True(t, app.FeesPaid.IsZero())
	assert.True(t, app.AgeVerified)
	assert.True(t, app.SuspensionCheckPassed)
	assert.True(t, app.OutstandingFeesCleared)
	assert.False(t, app.MedicalRequired)
	assert.Contains(t, app.BusinessRulesApplied, validation.RuleAge)
	assert.Contains(t, app.ValidationCodes, validation.CodeAgeEligibility)
	f.repo.AssertCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateApplication_IneligibleNotPersisted(t *testing.T) {
	f := newServiceFixture()
	personID := uuid.New()
	f.eligiblePerson(personID, 16) // under 18 for type B

	app, result, err := f.svc.CreateApplication(context.Background(), &CreateApplicationRequest{
		PersonID:        personID,
		LicenseType:     domain.LicenseTypeB,
		ApplicationType: domain.ApplicationTypeNew,
	})
	require.Error(t, err)
	assert.Nil(t, app)
	require.NotNil(t, result)
	assert.False(t, result.Valid)
	assert.True(t, pkgerrors.IsValidation(err))
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateApplication_DuplicateActiveConflict(t *testing.T) {
	f := newServiceFixture()
	personID := uuid.New()
	f.eligiblePerson(personID, 30)
	f.repo.On("FindActive", mock.Anything, personID, domain.LicenseTypeB).Return(draftApplication(personID), nil)

	_, _, err := f.svc.CreateApplication(context.Background(), &CreateApplicationRequest{
		PersonID:        personID,
		LicenseType:     domain.LicenseTypeB,
		ApplicationType: domain.ApplicationTypeNew,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrActiveApplicationExists)
	assert.True(t, pkgerrors.IsConflict(err))
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateApplication_AllowedAfterCancellation(t *testing.T) {
	f := newServiceFixture()
	personID := uuid.New()
	f.eligiblePerson(personID, 30)
	// The previous application is CANCELLED, so the active query finds nothing.
	f.repo.On("FindActive", mock.Anything, personID, domain.LicenseTypeB).Return(nil, pkgerrors.ErrApplicationNotFound)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.ledger.On("RecordCharge", mock.Anything, mock.Anything).Return(nil)

	app, _, err := f.svc.CreateApplication(context.Background(), &CreateApplicationRequest{
		PersonID:        personID,
		LicenseType:     domain.LicenseTypeB,
		ApplicationType: domain.ApplicationTypeNew,
	})
	require.NoError(t, err)
	assert.NotNil(t, app)
}

// --- Submit ---

func TestSubmitApplication_Success(t *testing.T) {
	f := newServiceFixture()
	personID := uuid.New()
	f.eligiblePerson(personID, 30)

	app := draftApplication(personID)
	f.repo.On("FindByID", mock.Anything, app.ID).Return(app, nil)
	f.repo.On("Update", mock.Anything, app).Return(nil)

	submitted, err := f.svc.SubmitApplication(context.Background(), app.ID, "clerk-1")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusSubmitted, submitted.Status)
	require.NotNil(t, submitted.SubmittedDate)
	assert.Equal(t, testNow, *submitted.SubmittedDate)
}

func TestSubmitApplication_AlreadySubmitted(t *testing.T) {
	f := newServiceFixture()
	personID := uuid.New()

	app := draftApplication(personID)
	app.Status = domain.StatusSubmitted
	f.repo.On("FindByID", mock.Anything, app.ID).Return(app, nil)

	_, err := f.svc.SubmitApplication(context.Background(), app.ID, "clerk-1")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsIllegalTransition(err))
	f.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestSubmitApplication_RevalidationBlocksStaleEligibility(t *testing.T) {
	f := newServiceFixture()
	personID := uuid.New()

	// Eligible at creation time, suspended since.
	dob := testNow.AddDate(-30, 0, 0)
	f.persons.On("Get", mock.Anything, personID).Return(
		&domain.Person{ID: personID, Surname: "Banda", DateOfBirth: &dob, CountryCode: "MW"}, nil)
	f.repo.On("IssuedByPerson", mock.Anything, personID).Return([]*domain.LicenseApplication{}, nil)
	f.ledger.On("HasOutstandingFees", mock.Anything, personID).Return(false, nil)
	f.suspensions.On("Check", mock.Anything, personID, testNow).Return(
		domain.SuspensionCheck{Suspended: true, Reason: "dangerous driving"}, nil)

	app := draftApplication(personID)
	f.repo.On("FindByID", mock.Anything, app.ID).Return(app, nil)

	_, err := f.svc.SubmitApplication(context.Background(), app.ID, "clerk-1")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
	f.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

// --- Transition ---

func TestTransition_PaymentMustSettleExactly(t *testing.T) {
	f := newServiceFixture()
	personID := uuid.New()

	app := draftApplication(personID)
	app.Status = domain.StatusPaymentPending
	f.repo.On("FindByID", mock.Anything, app.ID).Return(app, nil)
	f.repo.On("Update", mock.Anything, app).Return(nil)
	f.ledger.On("SettleForApplication", mock.Anything, app.ID, testNow).Return(nil)

	// Partial payment is refused.
	_, err := f.svc.Transition(context.Background(), app.ID, ActionConfirmPayment, TransitionContext{
		Actor:      "payments",
		AmountPaid: decimal.RequireFromString("100.00"),
	})
	assert.ErrorIs(t, err, pkgerrors.ErrFeesNotSettled)

	// Overpayment is refused.
	_, err = f.svc.Transition(context.Background(), app.ID, ActionConfirmPayment, TransitionContext{
		Actor:      "payments",
		AmountPaid: decimal.RequireFromString("250.00"),
	})
	assert.ErrorIs(t, err, pkgerrors.ErrOverpayment)

	// Exact settlement confirms.
	confirmed, err := f.svc.Transition(context.Background(), app.ID, ActionConfirmPayment, TransitionContext{
		Actor:            "payments",
		AmountPaid:       decimal.RequireFromString("200.00"),
		PaymentReference: "PAY-123",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaymentConfirmed, confirmed.Status)
	assert.True(t, confirmed.FeesPaid.Equal(confirmed.TotalFees))
	require.NotNil(t, confirmed.PaymentReference)
	assert.Equal(t, "PAY-123", *confirmed.PaymentReference)
	f.ledger.AssertCalled(t, "SettleForApplication", mock.Anything, app.ID, testNow)
}

func TestTransition_ApproveRequiresSettledFees(t *testing.T) {
	f := newServiceFixture()
	personID := uuid.New()
	approverID := uuid.New()

	app := draftApplication(personID)
	app.Status = domain.StatusPaymentConfirmed
	f.repo.On("FindByID", mock.Anything, app.ID).Return(app, nil)
	f.repo.On("Update", mock.Anything, app).Return(nil)

	_, err := f.svc.Transition(context.Background(), app.ID, ActionApprove, TransitionContext{
		Actor:      "supervisor",
		ApproverID: &approverID,
	})
	assert.ErrorIs(t, err, pkgerrors.ErrFeesNotSettled)

	app.FeesPaid = app.TotalFees
	approved, err := f.svc.Transition(context.Background(), app.ID, ActionApprove, TransitionContext{
		Actor:      "supervisor",
		ApproverID: &approverID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedDate)
	require.NotNil(t, approved.ApproverID)
	assert.Equal(t, approverID, *approved.ApproverID)
}

func TestTransition_IssuanceStampsExpiry(t *testing.T) {
	f := newServiceFixture()
	personID := uuid.New()

	app := draftApplication(personID)
	app.Status = domain.StatusLicenseProduced
	f.repo.On("FindByID", mock.Anything, app.ID).Return(app, nil)
	f.repo.On("Update", mock.Anything, app).Return(nil)

	issued, err := f.svc.Transition(context.Background(), app.ID, ActionMarkIssued, TransitionContext{Actor: "card-desk"})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusLicenseIssued, issued.Status)
	require.NotNil(t, issued.ExpiryDate)
	assert.Equal(t, testNow.AddDate(10, 0, 0), *issued.ExpiryDate)
}

func TestTransition_ProfessionalValidityIsShorter(t *testing.T) {
	f := newServiceFixture()
	personID := uuid.New()

	app := draftApplication(personID)
	app.LicenseType = domain.LicenseTypeC
	app.Status = domain.StatusLicenseProduced
	f.repo.On("FindByID", mock.Anything, app.ID).Return(app, nil)
	f.repo.On("Update", mock.Anything, app).Return(nil)

	issued, err := f.svc.Transition(context.Background(), app.ID, ActionMarkIssued, TransitionContext{Actor: "card-desk"})
	require.NoError(t, err)
	require.NotNil(t, issued.ExpiryDate)
	assert.Equal(t, testNow.AddDate(5, 0, 0), *issued.ExpiryDate)
}

func TestTransition_RejectRequiresReason(t *testing.T) {
	f := newServiceFixture()
	personID := uuid.New()

	app := draftApplication(personID)
	app.Status = domain.StatusUnderReview
	f.repo.On("FindByID", mock.Anything, app.ID).Return(app, nil)
	f.repo.On("Update", mock.Anything, app).Return(nil)

	_, err := f.svc.Transition(context.Background(), app.ID, ActionReject, TransitionContext{Actor: "supervisor"})
	assert.ErrorIs(t, err, pkgerrors.ErrMissingRejectionReason)

	rejected, err := f.svc.Transition(context.Background(), app.ID, ActionReject, TransitionContext{
		Actor:           "supervisor",
		RejectionReason: "forged medical certificate",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
}

func TestTransition_TerminalStateIsFrozen(t *testing.T) {
	f := newServiceFixture()
	personID := uuid.New()

	for _, status := range []domain.ApplicationStatus{
		domain.StatusLicenseIssued, domain.StatusRejected, domain.StatusCancelled,
	} {
		app := draftApplication(personID)
		app.Status = status
		f.repo.On("FindByID", mock.Anything, app.ID).Return(app, nil).Once()

		_, err := f.svc.Transition(context.Background(), app.ID, ActionCancel, TransitionContext{Actor: "clerk-1"})
		require.Error(t, err, "cancel from %s must fail", status)
		assert.True(t, pkgerrors.IsIllegalTransition(err))
	}
	f.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestTransition_UnknownAction(t *testing.T) {
	f := newServiceFixture()
	app := draftApplication(uuid.New())
	f.repo.On("FindByID", mock.Anything, app.ID).Return(app, nil)

	_, err := f.svc.Transition(context.Background(), app.ID, Action("ARCHIVE"), TransitionContext{})
	assert.ErrorIs(t, err, pkgerrors.ErrUnknownTransitionAction)
}

func TestTransition_StaleVersionSurfacesConflict(t *testing.T) {
	f := newServiceFixture()
	app := draftApplication(uuid.New())
	app.Status = domain.StatusSubmitted
	f.repo.On("FindByID", mock.Anything, app.ID).Return(app, nil)
	f.repo.On("Update", mock.Anything, app).Return(pkgerrors.ErrStaleApplication)

	_, err := f.svc.Transition(context.Background(), app.ID, ActionBeginReview, TransitionContext{Actor: "clerk-1"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))
}

// --- Administrative field updates ---

func TestRecordTestResult(t *testing.T) {
	f := newServiceFixture()
	app := draftApplication(uuid.New())
	app.Status = domain.StatusUnderReview
	app.TestRequired = true
	f.repo.On("FindByID", mock.Anything, app.ID).Return(app, nil)
	f.repo.On("Update", mock.Anything, app).Return(nil)

	score := 86
	updated, err := f.svc.RecordTestResult(context.Background(), app.ID, TestResultUpdate{
		Result:    domain.TestResultPass,
		Score:     &score,
		TestDate:  testNow.AddDate(0, 0, -2),
		UpdatedBy: "examiner-7",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusUnderReview, updated.Status, "recording a test result never changes status")
	require.NotNil(t, updated.TestResult)
	assert.Equal(t, domain.TestResultPass, *updated.TestResult)
	require.NotNil(t, updated.TestScore)
	assert.Equal(t, 86, *updated.TestScore)
}

func TestRecordMedicalCertificate_TerminalRefused(t *testing.T) {
	f := newServiceFixture()
	app := draftApplication(uuid.New())
	app.Status = domain.StatusRejected
	f.repo.On("FindByID", mock.Anything, app.ID).Return(app, nil)

	_, err := f.svc.RecordMedicalCertificate(context.Background(), app.ID, MedicalCertificateUpdate{
		CertificateDate:   testNow.AddDate(0, 0, -10),
		CertificateNumber: "MED-9931",
		UpdatedBy:         "clerk-1",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsIllegalTransition(err))
}

func TestCreateApplication_MedicalRequiredStamped(t *testing.T) {
	f := newServiceFixture()
	personID := uuid.New()

	// 65-year-old with a fresh certificate applying for B.
	dob := testNow.AddDate(-65, 0, 0)
	f.persons.On("Get", mock.Anything, personID).Return(
		&domain.Person{ID: personID, Surname: "Phiri", DateOfBirth: &dob, CountryCode: "MW"}, nil)
	f.repo.On("IssuedByPerson", mock.Anything, personID).Return([]*domain.LicenseApplication{}, nil)
	f.ledger.On("HasOutstandingFees", mock.Anything, personID).Return(false, nil)
	f.suspensions.On("Check", mock.Anything, personID, testNow).Return(domain.SuspensionCheck{}, nil)
	f.repo.On("FindActive", mock.Anything, personID, domain.LicenseTypeB).Return(nil, pkgerrors.ErrApplicationNotFound)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.ledger.On("RecordCharge", mock.Anything, mock.Anything).Return(nil)

	certDate := testNow.AddDate(0, 0, -100)
	app, _, err := f.svc.CreateApplication(context.Background(), &CreateApplicationRequest{
		PersonID:               personID,
		LicenseType:            domain.LicenseTypeB,
		ApplicationType:        domain.ApplicationTypeRenewal,
		MedicalCertificateDate: &certDate,
	})
	require.NoError(t, err)

	assert.True(t, app.MedicalRequired)
	assert.Equal(t, "160.00", app.TotalFees.StringFixed(2), "renewal of B is 200.00 x 0.80")
}

// --- Fee ledger ---

func TestCreateApplication_RaisesFeeCharge(t *testing.T) {
	f := newServiceFixture()
	personID := uuid.New()
	f.eligiblePerson(personID, 30)
	f.repo.On("FindActive", mock.Anything, personID, domain.LicenseTypeB).Return(nil, pkgerrors.ErrApplicationNotFound)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	var charge *domain.FeeLedgerEntry
	f.ledger.On("RecordCharge", mock.Anything, mock.AnythingOfType("*domain.FeeLedgerEntry")).
		Run(func(args mock.Arguments) { charge = args.Get(1).(*domain.FeeLedgerEntry) }).
		Return(nil)

	app, _, err := f.svc.CreateApplication(context.Background(), &CreateApplicationRequest{
		PersonID:        personID,
		LicenseType:     domain.LicenseTypeB,
		ApplicationType: domain.ApplicationTypeNew,
	})
	require.NoError(t, err)

	require.NotNil(t, charge)
	assert.Equal(t, personID, charge.PersonID)
	require.NotNil(t, charge.ApplicationID)
	assert.Equal(t, app.ID, *charge.ApplicationID)
	assert.True(t, charge.Amount.Equal(app.TotalFees), "the charge covers the full application fee")
	assert.True(t, charge.Outstanding())
}

// memoryLedger backs both the charge-raising side of the lifecycle and the
// outstanding-fees question the eligibility engine asks, so tests can trace
// a charge from creation through settlement.
type memoryLedger struct {
	mu      sync.Mutex
	entries []*domain.FeeLedgerEntry
}

func (l *memoryLedger) RecordCharge(ctx context.Context, entry *domain.FeeLedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

func (l *memoryLedger) SettleForApplication(ctx context.Context, applicationID uuid.UUID, settledAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.ApplicationID != nil && *e.ApplicationID == applicationID && e.Outstanding() {
			at := settledAt
			e.SettledAt = &at
		}
	}
	return nil
}

func (l *memoryLedger) HasOutstandingFees(ctx context.Context, personID uuid.UUID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.PersonID == personID && e.Outstanding() {
			return true, nil
		}
	}
	return false, nil
}

func TestOutstandingFeesWarnedUntilSettled(t *testing.T) {
	repo := new(MockRepository)
	persons := new(MockPersonLookup)
	suspensions := new(MockSuspensionRegistry)
	ledger := &memoryLedger{}

	orch := validation.NewOrchestrator(validation.DefaultRules(), persons, repo, ledger, suspensions)
	orch.Now = func() time.Time { return testNow }
	gen := NewNumberGenerator(newMemoryAllocator(), "MW")
	gen.Now = func() time.Time { return testNow }
	svc := NewService(repo, ledger, orch, fees.NewCalculator(fees.DefaultSchedule()), gen, logger.NewNop(), DefaultConfig("MW"))
	svc.Now = func() time.Time { return testNow }

	personID := uuid.New()
	dob := testNow.AddDate(-30, 0, 0)
	persons.On("Get", mock.Anything, personID).Return(
		&domain.Person{ID: personID, Surname: "Banda", DateOfBirth: &dob, CountryCode: "MW"}, nil)
	repo.On("IssuedByPerson", mock.Anything, personID).Return([]*domain.LicenseApplication{}, nil)
	suspensions.On("Check", mock.Anything, personID, testNow).Return(domain.SuspensionCheck{}, nil)
	repo.On("FindActive", mock.Anything, personID, domain.LicenseTypeB).Return(nil, pkgerrors.ErrApplicationNotFound)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	app, created, err := svc.CreateApplication(context.Background(), &CreateApplicationRequest{
		PersonID:        personID,
		LicenseType:     domain.LicenseTypeB,
		ApplicationType: domain.ApplicationTypeNew,
	})
	require.NoError(t, err)
	assert.Empty(t, created.Warnings, "nothing was owed before the first application")

	// The unpaid application leaves its charge open, so the next
	// eligibility run warns without blocking.
	second, err := svc.ValidateApplication(context.Background(), &CreateApplicationRequest{
		PersonID:        personID,
		LicenseType:     domain.LicenseTypeA,
		ApplicationType: domain.ApplicationTypeNew,
	})
	require.NoError(t, err)
	assert.True(t, second.Valid, "unpaid fees warn, never block")
	assert.False(t, second.OutstandingFeesCleared)
	assert.Contains(t, second.Codes, validation.CodeOutstandingFees)
	assert.NotEmpty(t, second.Warnings)

	// Payment confirmation settles the charge and clears the warning.
	app.Status = domain.StatusPaymentPending
	repo.On("FindByID", mock.Anything, app.ID).Return(app, nil)
	repo.On("Update", mock.Anything, app).Return(nil)
	_, err = svc.Transition(context.Background(), app.ID, ActionConfirmPayment, TransitionContext{
		Actor:      "payments",
		AmountPaid: decimal.RequireFromString("200.00"),
	})
	require.NoError(t, err)

	third, err := svc.ValidateApplication(context.Background(), &CreateApplicationRequest{
		PersonID:        personID,
		LicenseType:     domain.LicenseTypeA,
		ApplicationType: domain.ApplicationTypeNew,
	})
	require.NoError(t, err)
	assert.True(t, third.OutstandingFeesCleared)
	assert.Empty(t, third.Warnings)
}

// --- Queries ---

func TestCountApplicationsByStatus(t *testing.T) {
	f := newServiceFixture()
	f.repo.On("CountByStatus", mock.Anything, domain.StatusSubmitted, "MW").Return(7, nil)

	total, err := f.svc.CountApplicationsByStatus(context.Background(), domain.StatusSubmitted)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
}
