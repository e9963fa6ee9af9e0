package postgres

import (
	"context"
	"fmt"

	"dlas/pkg/errors"

	"github.com/jmoiron/sqlx"
)

// SequenceRepository hands out application numbers from a per-country,
// per-year counter row. The upsert increments and returns in one
// statement, so two clerks allocating at the same instant get distinct
// values and the sequence never gaps backwards.
type SequenceRepository struct {
	db *sqlx.DB
}

func NewSequenceRepository(db *sqlx.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

func (r *SequenceRepository) Next(ctx context.Context, countryCode string, year int) (int64, error) {
	var value int64
	query := `
        INSERT INTO licensing_schema.application_sequences (country_code, year, value)
        VALUES ($1, $2, 1)
        ON CONFLICT (country_code, year)
        DO UPDATE SET value = application_sequences.value + 1
        RETURNING value
    `

	err := r.db.GetContext(ctx, &value, query, countryCode, year)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errors.ErrSequenceUnavailable, err)
	}

	return value, nil
}
