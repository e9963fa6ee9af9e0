package application

import (
	"context"
	"fmt"
	"time"

	pkgerrors "dlas/pkg/errors"
)

// SequenceAllocator hands out the next application sequence number for a
// (country, year) scope. Implementations must be atomic: two concurrent
// calls may never observe the same value.
type SequenceAllocator interface {
	Next(ctx context.Context, countryCode string, year int) (int64, error)
}

// NumberGenerator formats application numbers as
// {country}{4-digit year}{6-digit zero-padded sequence}. Numbers are
// assigned exactly once and never reused, even for applications that end
// up rejected or cancelled.
type NumberGenerator struct {
	alloc       SequenceAllocator
	countryCode string

	// Now supplies the year scope; tests pin it.
	Now func() time.Time
}

func NewNumberGenerator(alloc SequenceAllocator, countryCode string) *NumberGenerator {
	return &NumberGenerator{
		alloc:       alloc,
		countryCode: countryCode,
		Now:         time.Now,
	}
}

// Next allocates and formats the next application number.
func (g *NumberGenerator) Next(ctx context.Context) (string, error) {
	year := g.Now().Year()
	seq, err := g.alloc.Next(ctx, g.countryCode, year)
	if err != nil {
		return "", pkgerrors.Wrap(err, "failed to allocate application sequence")
	}
	return fmt.Sprintf("%s%04d%06d", g.countryCode, year, seq), nil
}
