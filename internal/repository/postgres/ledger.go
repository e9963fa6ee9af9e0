package postgres

import (
	"context"
	"time"

	"dlas/internal/domain"
	"dlas/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// FeeLedgerRepository tracks fee charges against persons. Application
// creation raises a charge here and payment confirmation settles it; the
// eligibility engine asks one question of it: does this person owe anything.
type FeeLedgerRepository struct {
	db *sqlx.DB
}

func NewFeeLedgerRepository(db *sqlx.DB) *FeeLedgerRepository {
	return &FeeLedgerRepository{db: db}
}

func (r *FeeLedgerRepository) HasOutstandingFees(ctx context.Context, personID uuid.UUID) (bool, error) {
	var count int
	query := `
        SELECT COUNT(*)
        FROM licensing_schema.fee_ledger
        WHERE person_id = $1 AND settled_at IS NULL
    `
	err := r.db.GetContext(ctx, &count, query, personID)
	if err != nil {
		return false, errors.Wrap(err, "failed to check outstanding fees")
	}
	return count > 0, nil
}

func (r *FeeLedgerRepository) OutstandingTotal(ctx context.Context, personID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	query := `
        SELECT SUM(amount)
        FROM licensing_schema.fee_ledger
        WHERE person_id = $1 AND settled_at IS NULL
    `
	err := r.db.GetContext(ctx, &total, query, personID)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to sum outstanding fees")
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func (r *FeeLedgerRepository) RecordCharge(ctx context.Context, entry *domain.FeeLedgerEntry) error {
	query := `
        INSERT INTO licensing_schema.fee_ledger (
            id, person_id, application_id, description, amount, settled_at, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.PersonID, entry.ApplicationID, entry.Description,
		entry.Amount, entry.SettledAt, entry.CreatedAt,
	)
	return errors.Wrap(err, "failed to record fee charge")
}

func (r *FeeLedgerRepository) Settle(ctx context.Context, entryID uuid.UUID, settledAt time.Time) error {
	query := `
        UPDATE licensing_schema.fee_ledger
        SET settled_at = $1
        WHERE id = $2 AND settled_at IS NULL
    `
	_, err := r.db.ExecContext(ctx, query, settledAt, entryID)
	return errors.Wrap(err, "failed to settle fee charge")
}

// SettleForApplication marks every open charge attached to the application
// as settled. Called when payment confirmation lands.
func (r *FeeLedgerRepository) SettleForApplication(ctx context.Context, applicationID uuid.UUID, settledAt time.Time) error {
	query := `
        UPDATE licensing_schema.fee_ledger
        SET settled_at = $1
        WHERE application_id = $2 AND settled_at IS NULL
    `
	_, err := r.db.ExecContext(ctx, query, settledAt, applicationID)
	return errors.Wrap(err, "failed to settle application fees")
}
