// Package redisstore provides Redis-backed counters for deployments that
// keep the application number sequence out of the primary database.
package redisstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"dlas/pkg/errors"
)

// SequenceAllocator allocates application numbers with INCR on a
// per-country, per-year key. INCR is atomic on the server, so concurrent
// allocations never collide. Keys are never expired; the year in the key
// rolls the sequence over naturally.
type SequenceAllocator struct {
	client *redis.Client
}

func NewSequenceAllocator(client *redis.Client) *SequenceAllocator {
	return &SequenceAllocator{client: client}
}

func (a *SequenceAllocator) Next(ctx context.Context, countryCode string, year int) (int64, error) {
	key := fmt.Sprintf("licensing:application_seq:%s:%d", countryCode, year)

	value, err := a.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errors.ErrSequenceUnavailable, err)
	}

	return value, nil
}
