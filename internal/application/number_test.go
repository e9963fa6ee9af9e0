package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryAllocator is an atomic in-memory SequenceAllocator, keyed like the
// production implementations.
type memoryAllocator struct {
	mu   sync.Mutex
	seqs map[string]int64
}

func newMemoryAllocator() *memoryAllocator {
	return &memoryAllocator{seqs: make(map[string]int64)}
}

func (a *memoryAllocator) Next(ctx context.Context, countryCode string, year int) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := fmt.Sprintf("%s-%d", countryCode, year)
	a.seqs[key]++
	return a.seqs[key], nil
}

func TestNumberGenerator_Format(t *testing.T) {
	gen := NewNumberGenerator(newMemoryAllocator(), "MW")
	gen.Now = func() time.Time { return time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC) }

	number, err := gen.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "MW2026000001", number)

	number, err = gen.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "MW2026000002", number)
}

func TestNumberGenerator_ScopedByYear(t *testing.T) {
	alloc := newMemoryAllocator()
	gen := NewNumberGenerator(alloc, "MW")

	gen.Now = func() time.Time { return time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC) }
	first, err := gen.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "MW2025000001", first)

	// The sequence restarts when the year rolls over.
	gen.Now = func() time.Time { return time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC) }
	second, err := gen.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "MW2026000001", second)
}

func TestNumberGenerator_ConcurrentUniqueness(t *testing.T) {
	const workers = 200

	gen := NewNumberGenerator(newMemoryAllocator(), "MW")
	gen.Now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }

	var wg sync.WaitGroup
	results := make(chan string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			number, err := gen.Next(context.Background())
			assert.NoError(t, err)
			results <- number
		}()
	}
	wg.Wait()
	close(results)

	numbers := make([]string, 0, workers)
	seen := make(map[string]struct{}, workers)
	for number := range results {
		_, dup := seen[number]
		assert.False(t, dup, "duplicate application number %s", number)
		seen[number] = struct{}{}
		numbers = append(numbers, number)
	}
	require.Len(t, numbers, workers)

	// Fixed-width zero padding makes lexicographic order numeric order:
	// sorted, the allocations are gapless from 000001 to the worker count.
	sort.Strings(numbers)
	assert.Equal(t, "MW2026000001", numbers[0])
	assert.Equal(t, "MW2026000200", numbers[len(numbers)-1])
}
