package postgres

import (
	"context"
	"database/sql"
	"time"

	"dlas/internal/domain"
	"dlas/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type SuspensionRepository struct {
	db *sqlx.DB
}

func NewSuspensionRepository(db *sqlx.DB) *SuspensionRepository {
	return &SuspensionRepository{db: db}
}

// Check reports whether the person is under an active suspension at the
// given instant. With several overlapping suspensions the one that runs
// longest wins; an open-ended suspension sorts last.
func (r *SuspensionRepository) Check(ctx context.Context, personID uuid.UUID, asOf time.Time) (domain.SuspensionCheck, error) {
	var suspension domain.Suspension
	query := `
		SELECT id, person_id, reason, start_date, end_date
		FROM licensing_schema.suspensions
		WHERE person_id = $1
		  AND start_date <= $2
		  AND (end_date IS NULL OR end_date > $2)
		ORDER BY end_date DESC NULLS FIRST
		LIMIT 1
	`

	err := r.db.GetContext(ctx, &suspension, query, personID, asOf)
	if err == sql.ErrNoRows {
		return domain.SuspensionCheck{}, nil
	}
	if err != nil {
		return domain.SuspensionCheck{}, errors.Wrap(err, "failed to check suspensions")
	}

	return domain.SuspensionCheck{
		Suspended: true,
		Reason:    suspension.Reason,
		Until:     suspension.EndDate,
	}, nil
}

func (r *SuspensionRepository) Create(ctx context.Context, suspension *domain.Suspension) error {
	query := `
        INSERT INTO licensing_schema.suspensions (id, person_id, reason, start_date, end_date)
        VALUES ($1, $2, $3, $4, $5)
    `

	_, err := r.db.ExecContext(ctx, query,
		suspension.ID, suspension.PersonID, suspension.Reason, suspension.StartDate, suspension.EndDate,
	)
	return errors.Wrap(err, "failed to create suspension")
}

func (r *SuspensionRepository) ByPerson(ctx context.Context, personID uuid.UUID) ([]*domain.Suspension, error) {
	var suspensions []*domain.Suspension
	query := `
		SELECT id, person_id, reason, start_date, end_date
		FROM licensing_schema.suspensions
		WHERE person_id = $1
		ORDER BY start_date DESC
	`

	err := r.db.SelectContext(ctx, &suspensions, query, personID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find suspensions")
	}

	return suspensions, nil
}
