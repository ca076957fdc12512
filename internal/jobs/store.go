package jobs

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

// Store persists jobs. Implementations must be safe for concurrent use.
type Store interface {
	// Create inserts a new job. Returns an error if the ID already exists.
	Create(ctx context.Context, job *Job) error

	// Get returns the job with id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Job, error)

	// Update replaces the stored job with the same ID, or returns ErrNotFound.
	Update(ctx context.Context, job *Job) error

	// List returns up to limit jobs, newest first. limit <= 0 means no limit.
	List(ctx context.Context, limit int) ([]Job, error)
}

// MemStore is an in-memory [Store]. Jobs are lost when the process exits.
type MemStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	now  func() time.Time
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{jobs: make(map[string]*Job), now: time.Now}
}

// Create implements Store.
func (s *MemStore) Create(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return &duplicateError{id: job.ID}
	}
	now := s.now()
	job.CreatedAt = now
	job.UpdatedAt = now
	s.jobs[job.ID] = job.clone()
	return nil
}

// Get implements Store.
func (s *MemStore) Get(_ context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return j.clone(), nil
}

// Update implements Store.
func (s *MemStore) Update(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.jobs[job.ID]
	if !ok {
		return ErrNotFound
	}
	job.CreatedAt = old.CreatedAt
	job.UpdatedAt = s.now()
	s.jobs[job.ID] = job.clone()
	return nil
}

// List implements Store.
func (s *MemStore) List(_ context.Context, limit int) ([]Job, error) {
	s.mu.RLock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j.clone())
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b Job) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type duplicateError struct{ id string }

func (e *duplicateError) Error() string { return "jobs: job with id " + e.id + " already exists" }
