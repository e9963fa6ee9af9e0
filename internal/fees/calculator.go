// Package fees computes license application fees from the jurisdiction's
// fee schedule. All arithmetic is fixed-point decimal.
package fees

import (
	"fmt"

	"github.com/shopspring/decimal"

	"dlas/internal/domain"
)

// Schedule is the fee configuration for one jurisdiction. Both tables are
// plain data so a country can swap them without code changes.
type Schedule struct {
	BaseFees    map[domain.LicenseType]decimal.Decimal
	Multipliers map[domain.ApplicationType]decimal.Decimal
}

// DefaultSchedule returns the standard fee schedule.
func DefaultSchedule() Schedule {
	return Schedule{
		BaseFees: map[domain.LicenseType]decimal.Decimal{
			domain.LicenseTypeLearnerA: decimal.RequireFromString("50.00"),
			domain.LicenseTypeLearnerB: decimal.RequireFromString("50.00"),
			domain.LicenseTypeA:        decimal.RequireFromString("150.00"),
			domain.LicenseTypeB:        decimal.RequireFromString("200.00"),
			domain.LicenseTypeC1:       decimal.RequireFromString("300.00"),
			domain.LicenseTypeC:        decimal.RequireFromString("400.00"),
			domain.LicenseTypeD1:       decimal.RequireFromString("350.00"),
			domain.LicenseTypeD:        decimal.RequireFromString("450.00"),
			domain.LicenseTypeEB:       decimal.RequireFromString("500.00"),
			domain.LicenseTypeEC1:      decimal.RequireFromString("400.00"),
			domain.LicenseTypeEC:       decimal.RequireFromString("500.00"),
		},
		Multipliers: map[domain.ApplicationType]decimal.Decimal{
			domain.ApplicationTypeNew:       decimal.RequireFromString("1.00"),
			domain.ApplicationTypeRenewal:   decimal.RequireFromString("0.80"),
			domain.ApplicationTypeUpgrade:   decimal.RequireFromString("1.20"),
			domain.ApplicationTypeDuplicate: decimal.RequireFromString("0.50"),
		},
	}
}

// Calculator maps (license type, application type) to a fee amount.
type Calculator struct {
	schedule Schedule
}

func NewCalculator(schedule Schedule) *Calculator {
	return &Calculator{schedule: schedule}
}

// Fee returns the application fee rounded to 2 decimal places, half up.
// Unknown license or application types are rejected rather than priced
// with a fallback.
func (c *Calculator) Fee(licenseType domain.LicenseType, applicationType domain.ApplicationType) (decimal.Decimal, error) {
	base, ok := c.schedule.BaseFees[licenseType]
	if !ok {
		return decimal.Zero, fmt.Errorf("no base fee configured for license type %s", licenseType)
	}
	multiplier, ok := c.schedule.Multipliers[applicationType]
	if !ok {
		return decimal.Zero, fmt.Errorf("no multiplier configured for application type %s", applicationType)
	}
	return base.Mul(multiplier).Round(2), nil
}
