// Package validation implements the eligibility rules for license
// applications and the orchestrator that runs them as one verdict.
package validation

import (
	"fmt"
	"strings"
	"time"

	"dlas/internal/domain"
)

// Stable validation codes recorded as evidence on every application.
const (
	CodePersonNotFound   = "V00014"
	CodeBirthDateMissing = "V00065"
	CodeAgeEligibility   = "V00874"
	CodePrerequisite     = "V00880"
	CodeSuspension       = "V00881"
	CodeOutstandingFees  = "V01882"
	CodeMedical          = "V00013"
)

// Business rule identifiers recorded alongside the codes.
const (
	RulePersonExists    = "R-ID-006"
	RuleStateManagement = "R-APP-001"
	RuleDuplicate       = "R-APP-002"
	RuleAge             = "R-APP-003"
	RuleMedical         = "R-APP-004"
	RulePrerequisite    = "R-APP-005"
	RuleOutstandingFees = "R-APP-006"
	RuleSuspension      = "R-APP-007"
)

// Rules is the per-jurisdiction rule configuration. Everything that varies
// by country lives here as data.
type Rules struct {
	MinimumAges         map[domain.LicenseType]int
	DefaultMinimumAge   int
	Prerequisites       map[domain.LicenseType][]domain.LicenseType
	ProfessionalTypes   []domain.LicenseType
	MedicalAgeThreshold int
	MedicalValidityDays int
}

// DefaultRules returns the standard rule set.
func DefaultRules() Rules {
	return Rules{
		MinimumAges: map[domain.LicenseType]int{
			domain.LicenseTypeLearnerA: 16,
			domain.LicenseTypeLearnerB: 16,
			domain.LicenseTypeA:        16,
			domain.LicenseTypeB:        18,
			domain.LicenseTypeC1:       18,
			domain.LicenseTypeC:        21,
			domain.LicenseTypeD1:       21,
			domain.LicenseTypeD:        24,
			domain.LicenseTypeEB:       21,
			domain.LicenseTypeEC1:      21,
			domain.LicenseTypeEC:       21,
		},
		DefaultMinimumAge: 18,
		Prerequisites: map[domain.LicenseType][]domain.LicenseType{
			domain.LicenseTypeC:   {domain.LicenseTypeB},
			domain.LicenseTypeD:   {domain.LicenseTypeC, domain.LicenseTypeB},
			domain.LicenseTypeEB:  {domain.LicenseTypeC, domain.LicenseTypeB},
			domain.LicenseTypeEC1: {domain.LicenseTypeC1, domain.LicenseTypeB},
			domain.LicenseTypeEC:  {domain.LicenseTypeC, domain.LicenseTypeB},
		},
		ProfessionalTypes: []domain.LicenseType{
			domain.LicenseTypeC, domain.LicenseTypeC1,
			domain.LicenseTypeD, domain.LicenseTypeD1,
			domain.LicenseTypeEB, domain.LicenseTypeEC, domain.LicenseTypeEC1,
		},
		MedicalAgeThreshold: 60,
		MedicalValidityDays: 180,
	}
}

// CheckResult is the outcome of a single eligibility rule.
type CheckResult struct {
	Passed   bool     `json:"passed"`
	Required bool     `json:"required"`
	Codes    []string `json:"codes,omitempty"`
	Messages []string `json:"messages,omitempty"`
}

// Checker holds the rule configuration; every check is a pure function of
// its inputs and performs no I/O.
type Checker struct {
	rules Rules
}

func NewChecker(rules Rules) *Checker {
	return &Checker{rules: rules}
}

// CheckAge verifies the applicant meets the minimum age for the license
// type. A missing birth date fails closed.
func (c *Checker) CheckAge(person *domain.Person, licenseType domain.LicenseType, now time.Time) CheckResult {
	age, known := person.Age(now)
	if !known {
		return CheckResult{
			Passed:   false,
			Codes:    []string{CodeBirthDateMissing},
			Messages: []string{"Date of birth is required for age verification"},
		}
	}

	required, ok := c.rules.MinimumAges[licenseType]
	if !ok {
		required = c.rules.DefaultMinimumAge
	}

	if age < required {
		return CheckResult{
			Passed: false,
			Codes:  []string{CodeAgeEligibility},
			Messages: []string{fmt.Sprintf(
				"Applicant must be at least %d years old for %s license", required, licenseType)},
		}
	}

	return CheckResult{Passed: true, Codes: []string{CodeAgeEligibility}}
}

// CheckPrerequisites verifies that at least one of the required
// previously-issued license types is held. Absence is a hard failure.
func (c *Checker) CheckPrerequisites(licenseType domain.LicenseType, issued []domain.LicenseType) CheckResult {
	required := c.rules.Prerequisites[licenseType]
	if len(required) == 0 {
		return CheckResult{Passed: true}
	}

	held := make(map[domain.LicenseType]struct{}, len(issued))
	for _, lt := range issued {
		held[lt] = struct{}{}
	}

	for _, lt := range required {
		if _, ok := held[lt]; ok {
			return CheckResult{Passed: true, Codes: []string{CodePrerequisite}}
		}
	}

	names := make([]string, len(required))
	for i, lt := range required {
		names[i] = string(lt)
	}
	return CheckResult{
		Passed: false,
		Codes:  []string{CodePrerequisite},
		Messages: []string{
			"Prerequisite license required: " + strings.Join(names, " or "),
		},
	}
}

// CheckOutstandingFees flags unpaid balances on other applications. This
// is a warning, not a blocker.
func (c *Checker) CheckOutstandingFees(hasOutstanding bool) CheckResult {
	if hasOutstanding {
		return CheckResult{
			Passed:   false,
			Codes:    []string{CodeOutstandingFees},
			Messages: []string{"Outstanding fees must be paid before new application"},
		}
	}
	return CheckResult{Passed: true}
}

// CheckSuspension fails hard when the registry reports an active
// suspension as of now.
func (c *Checker) CheckSuspension(check domain.SuspensionCheck) CheckResult {
	if check.Suspended {
		msg := "Applicant has an active license suspension"
		if check.Reason != "" {
			msg = fmt.Sprintf("Applicant has an active license suspension: %s", check.Reason)
		}
		return CheckResult{
			Passed:   false,
			Codes:    []string{CodeSuspension},
			Messages: []string{msg},
		}
	}
	return CheckResult{Passed: true}
}

// CheckMedical enforces the medical certificate requirement: applicants
// over the age threshold and all professional license types need a
// certificate no older than the validity window.
func (c *Checker) CheckMedical(person *domain.Person, licenseType domain.LicenseType, certDate *time.Time, now time.Time) CheckResult {
	age, _ := person.Age(now)

	required := age > c.rules.MedicalAgeThreshold
	if !required {
		for _, lt := range c.rules.ProfessionalTypes {
			if lt == licenseType {
				required = true
				break
			}
		}
	}

	if !required {
		return CheckResult{Passed: true, Required: false}
	}

	if certDate == nil {
		return CheckResult{
			Passed:   false,
			Required: true,
			Codes:    []string{CodeMedical},
			Messages: []string{"Medical certificate is required"},
		}
	}

	cutoff := now.AddDate(0, 0, -c.rules.MedicalValidityDays)
	if certDate.Before(cutoff) {
		return CheckResult{
			Passed:   false,
			Required: true,
			Codes:    []string{CodeMedical},
			Messages: []string{fmt.Sprintf(
				"Medical certificate has expired (must be within %d days)", c.rules.MedicalValidityDays)},
		}
	}

	return CheckResult{Passed: true, Required: true}
}
