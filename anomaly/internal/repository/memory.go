package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/telhawk-systems/anomaly-stack/anomaly/pkg/model"
)

// InMemoryRepository is a Repository for tests and local development.
// Failures can be injected with SetError.
type InMemoryRepository struct {
	mu        sync.RWMutex
	anomalies []*model.Anomaly
	nextID    int64
	err       error
	now       func() time.Time
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{nextID: 1, now: time.Now}
}

// SetError makes every subsequent call fail with err until it is cleared
// with nil.
func (r *InMemoryRepository) SetError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *InMemoryRepository) Create(ctx context.Context, a *model.Anomaly) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}

	now := r.now().UTC()
	a.ID = r.nextID
	a.CreatedAt = now
	a.UpdatedAt = now
	r.nextID++

	stored := *a
	r.anomalies = append(r.anomalies, &stored)
	return nil
}

func (r *InMemoryRepository) Recent(ctx context.Context, limit int) ([]*model.Anomaly, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.err != nil {
		return nil, r.err
	}

	sorted := make([]*model.Anomaly, len(r.anomalies))
	copy(sorted, r.anomalies)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].ID > sorted[j].ID
	})

	limit = ClampLimit(limit)
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	out := make([]*model.Anomaly, len(sorted))
	for i, a := range sorted {
		c := *a
		out[i] = &c
	}
	return out, nil
}

func (r *InMemoryRepository) Stats(ctx context.Context) (*model.Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.err != nil {
		return nil, r.err
	}

	stats := newStats()
	for _, a := range r.anomalies {
		stats.BySeverity[a.Severity]++
		stats.Total++
	}
	stats.Critical = stats.BySeverity[model.SeverityCritical]
	return stats, nil
}

func (r *InMemoryRepository) Ping(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

func (r *InMemoryRepository) Close() {}

// Len returns the number of stored anomalies.
func (r *InMemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.anomalies)
}
