package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FeeLedgerEntry is one charge against a person. Settled entries keep
// their settled_at timestamp; nothing is ever deleted.
type FeeLedgerEntry struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	PersonID      uuid.UUID       `json:"person_id" db:"person_id"`
	ApplicationID *uuid.UUID      `json:"application_id,omitempty" db:"application_id"`
	Description   string          `json:"description" db:"description"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	SettledAt     *time.Time      `json:"settled_at,omitempty" db:"settled_at"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// Outstanding reports whether the charge is still owed.
func (e *FeeLedgerEntry) Outstanding() bool {
	return e.SettledAt == nil
}
