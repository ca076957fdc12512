package jobs

import (
	"context"
	"errors"

	"github.com/MrWong99/wavscribe/internal/resilience"
)

// GuardedStore wraps a [Store] with a circuit breaker. While the backing
// database keeps failing, calls return [resilience.ErrOpen] at once.
type GuardedStore struct {
	store   Store
	breaker *resilience.Breaker
}

var _ Store = (*GuardedStore)(nil)

// Guard wraps s with b. Build b with [IsStoreFailure] as its classifier so
// lookups of unknown jobs do not count as outages.
func Guard(s Store, b *resilience.Breaker) *GuardedStore {
	return &GuardedStore{store: s, breaker: b}
}

// IsStoreFailure reports whether err indicates an unhealthy store rather
// than a caller mistake or a cancelled request.
func IsStoreFailure(err error) bool {
	if err == nil {
		return false
	}
	var dup *duplicateError
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, context.Canceled),
		errors.As(err, &dup):
		return false
	}
	return true
}

// Create implements Store.
func (g *GuardedStore) Create(ctx context.Context, job *Job) error {
	return g.breaker.Do(func() error { return g.store.Create(ctx, job) })
}

// Get implements Store.
func (g *GuardedStore) Get(ctx context.Context, id string) (*Job, error) {
	var job *Job
	err := g.breaker.Do(func() error {
		var err error
		job, err = g.store.Get(ctx, id)
		return err
	})
	return job, err
}

// Update implements Store.
func (g *GuardedStore) Update(ctx context.Context, job *Job) error {
	return g.breaker.Do(func() error { return g.store.Update(ctx, job) })
}

// List implements Store.
func (g *GuardedStore) List(ctx context.Context, limit int) ([]Job, error) {
	var out []Job
	err := g.breaker.Do(func() error {
		var err error
		out, err = g.store.List(ctx, limit)
		return err
	})
	return out, err
}
