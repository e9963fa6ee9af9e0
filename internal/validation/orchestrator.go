package validation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"dlas/internal/domain"
	pkgerrors "dlas/pkg/errors"
)

// PersonLookup reads the person registry. The engine only consumes birth
// dates from it.
type PersonLookup interface {
	Get(ctx context.Context, personID uuid.UUID) (*domain.Person, error)
}

// ApplicationReader answers the prerequisite query against the
// application store.
type ApplicationReader interface {
	IssuedByPerson(ctx context.Context, personID uuid.UUID) ([]*domain.LicenseApplication, error)
}

// PaymentLedger reports whether a person owes fees on other applications.
type PaymentLedger interface {
	HasOutstandingFees(ctx context.Context, personID uuid.UUID) (bool, error)
}

// SuspensionRegistry reports active suspensions.
type SuspensionRegistry interface {
	Check(ctx context.Context, personID uuid.UUID, asOf time.Time) (domain.SuspensionCheck, error)
}

// Request is the candidate application data the orchestrator validates.
type Request struct {
	PersonID               uuid.UUID
	LicenseType            domain.LicenseType
	ApplicationType        domain.ApplicationType
	MedicalCertificateDate *time.Time
}

// Result is the aggregated verdict plus the evidence that produced it.
// Codes and Rules record every rule executed, pass or fail.
type Result struct {
	Valid    bool     `json:"valid"`
	Codes    []string `json:"validation_codes"`
	Rules    []string `json:"business_rules_applied"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`

	AgeEligible            bool `json:"age_eligible"`
	PrerequisitesMet       bool `json:"prerequisites_met"`
	OutstandingFeesCleared bool `json:"outstanding_fees_cleared"`
	SuspensionCheckPassed  bool `json:"suspension_check_passed"`
	MedicalRequired        bool `json:"medical_required"`
	MedicalRequirementsMet bool `json:"medical_requirements_met"`

	PrerequisiteLicenseID *uuid.UUID `json:"prerequisite_license_id,omitempty"`

	failures []pkgerrors.RuleFailure
}

// ValidationError converts an invalid result into the error callers of
// the lifecycle service receive.
func (r *Result) ValidationError() *pkgerrors.ValidationError {
	return &pkgerrors.ValidationError{Failures: r.failures}
}

// Orchestrator runs every eligibility check against facts fetched from the
// read-only collaborators and aggregates a single verdict. Checks never
// short-circuit; the caller always sees every problem at once.
type Orchestrator struct {
	checker     *Checker
	persons     PersonLookup
	apps        ApplicationReader
	ledger      PaymentLedger
	suspensions SuspensionRegistry

	// Now supplies the validation instant; tests pin it.
	Now func() time.Time
}

func NewOrchestrator(
	rules Rules,
	persons PersonLookup,
	apps ApplicationReader,
	ledger PaymentLedger,
	suspensions SuspensionRegistry,
) *Orchestrator {
	return &Orchestrator{
		checker:     NewChecker(rules),
		persons:     persons,
		apps:        apps,
		ledger:      ledger,
		suspensions: suspensions,
		Now:         time.Now,
	}
}

// Validate evaluates the request. Infrastructure failures from
// collaborators propagate unchanged; an ineligible applicant is not an
// error here, it is a Result with Valid=false.
func (o *Orchestrator) Validate(ctx context.Context, req Request) (*Result, error) {
	now := o.Now()

	person, err := o.persons.Get(ctx, req.PersonID)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return &Result{
				Valid:  false,
				Codes:  []string{CodePersonNotFound},
				Rules:  []string{RulePersonExists},
				Errors: []string{"Person not found"},
				failures: []pkgerrors.RuleFailure{
					{Code: CodePersonNotFound, Message: "Person not found"},
				},
			}, nil
		}
		return nil, err
	}

	result := &Result{Valid: true}
	appendEvidence := func(rule string, check CheckResult) {
		result.Rules = appendUnique(result.Rules, rule)
		for _, code := range check.Codes {
			result.Codes = appendUnique(result.Codes, code)
		}
	}
	recordFailure := func(check CheckResult) {
		code := ""
		if len(check.Codes) > 0 {
			code = check.Codes[0]
		}
		for _, msg := range check.Messages {
			result.Errors = append(result.Errors, msg)
			result.failures = append(result.failures, pkgerrors.RuleFailure{Code: code, Message: msg})
		}
	}

	ageCheck := o.checker.CheckAge(person, req.LicenseType, now)
	appendEvidence(RuleAge, ageCheck)
	result.AgeEligible = ageCheck.Passed
	if !ageCheck.Passed {
		recordFailure(ageCheck)
	}

	issued, err := o.apps.IssuedByPerson(ctx, req.PersonID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to read issued licenses")
	}
	issuedTypes := make([]domain.LicenseType, 0, len(issued))
	for _, app := range issued {
		issuedTypes = append(issuedTypes, app.LicenseType)
	}

	prereqCheck := o.checker.CheckPrerequisites(req.LicenseType, issuedTypes)
	appendEvidence(RulePrerequisite, prereqCheck)
	result.PrerequisitesMet = prereqCheck.Passed
	if !prereqCheck.Passed {
		recordFailure(prereqCheck)
	} else {
		result.PrerequisiteLicenseID = pickPrerequisite(o.checker.rules.Prerequisites[req.LicenseType], issued)
	}

	hasOutstanding, err := o.ledger.HasOutstandingFees(ctx, req.PersonID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to check outstanding fees")
	}
	feesCheck := o.checker.CheckOutstandingFees(hasOutstanding)
	appendEvidence(RuleOutstandingFees, feesCheck)
	result.OutstandingFeesCleared = feesCheck.Passed
	if !feesCheck.Passed {
		result.Warnings = append(result.Warnings, feesCheck.Messages...)
	}

	suspension, err := o.suspensions.Check(ctx, req.PersonID, now)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to check suspension registry")
	}
	suspensionCheck := o.checker.CheckSuspension(suspension)
	appendEvidence(RuleSuspension, suspensionCheck)
	result.SuspensionCheckPassed = suspensionCheck.Passed
	if !suspensionCheck.Passed {
		recordFailure(suspensionCheck)
	}

	medicalCheck := o.checker.CheckMedical(person, req.LicenseType, req.MedicalCertificateDate, now)
	appendEvidence(RuleMedical, medicalCheck)
	result.MedicalRequired = medicalCheck.Required
	result.MedicalRequirementsMet = medicalCheck.Passed
	if !medicalCheck.Passed && medicalCheck.Required {
		recordFailure(medicalCheck)
	}

	// Outstanding fees are a warning only; everything else blocks.
	result.Valid = result.AgeEligible &&
		result.PrerequisitesMet &&
		result.SuspensionCheckPassed &&
		(result.MedicalRequirementsMet || !result.MedicalRequired)

	return result, nil
}

// pickPrerequisite returns the first issued application whose type matches
// the prerequisite chain, preferring the order the chain lists.
func pickPrerequisite(required []domain.LicenseType, issued []*domain.LicenseApplication) *uuid.UUID {
	for _, lt := range required {
		for _, app := range issued {
			if app.LicenseType == lt {
				id := app.ID
				return &id
			}
		}
	}
	return nil
}

func appendUnique(list []string, entry string) []string {
	for _, e := range list {
		if e == entry {
			return list
		}
	}
	return append(list, entry)
}
