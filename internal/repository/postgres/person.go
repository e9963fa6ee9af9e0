package postgres

import (
	"context"
	"database/sql"

	"dlas/internal/domain"
	"dlas/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// PersonRepository reads the person registry. The registry is owned by the
// civil identity system; this side never writes it.
type PersonRepository struct {
	db *sqlx.DB
}

func NewPersonRepository(db *sqlx.DB) *PersonRepository {
	return &PersonRepository{db: db}
}

func (r *PersonRepository) Get(ctx context.Context, personID uuid.UUID) (*domain.Person, error) {
	var person domain.Person
	query := `
		SELECT id, surname, first_names, date_of_birth, country_code
		FROM licensing_schema.persons WHERE id = $1
	`

	err := r.db.GetContext(ctx, &person, query, personID)
	if err == sql.ErrNoRows {
		return nil, errors.ErrPersonNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find person")
	}

	return &person, nil
}
