package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/anomaly-stack/anomaly/pkg/model"
)

func newAnomaly(severity model.Severity) *model.Anomaly {
	return &model.Anomaly{
		SourceIP:    "10.0.0.5",
		Severity:    severity,
		Score:       0.5,
		Description: "test",
	}
}

func TestInMemoryRepository_Create(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	a := newAnomaly(model.SeverityHigh)
	require.NoError(t, repo.Create(ctx, a))
	assert.Equal(t, int64(1), a.ID)
	assert.False(t, a.CreatedAt.IsZero())
	assert.Equal(t, a.CreatedAt, a.UpdatedAt)

	b := newAnomaly(model.SeverityLow)
	require.NoError(t, repo.Create(ctx, b))
	assert.Equal(t, int64(2), b.ID)
	assert.Equal(t, 2, repo.Len())
}

func TestInMemoryRepository_RecentNewestFirst(t *testing.T) {
	repo := NewInMemoryRepository()
	base := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	for i := 0; i < 120; i++ {
		a := newAnomaly(model.SeverityMedium)
		a.Description = fmt.Sprintf("anomaly %d", i)
		require.NoError(t, repo.Create(context.Background(), a))
	}

	recent, err := repo.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, recent, MaxRecent)
	assert.Equal(t, int64(120), recent[0].ID)
	assert.Equal(t, int64(21), recent[MaxRecent-1].ID)

	few, err := repo.Recent(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, few, 3)
}

func TestInMemoryRepository_Stats(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	for _, s := range []model.Severity{model.SeverityCritical, model.SeverityCritical, model.SeverityLow} {
		require.NoError(t, repo.Create(ctx, newAnomaly(s)))
	}

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.Critical)
	assert.Equal(t, int64(1), stats.BySeverity[model.SeverityLow])
	assert.Equal(t, int64(0), stats.BySeverity[model.SeverityHigh])
}

func TestInMemoryRepository_InjectedError(t *testing.T) {
	repo := NewInMemoryRepository()
	repo.SetError(ErrUnavailable)

	err := repo.Create(context.Background(), newAnomaly(model.SeverityLow))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 0, repo.Len())
	assert.ErrorIs(t, repo.Ping(context.Background()), ErrUnavailable)

	repo.SetError(nil)
	assert.NoError(t, repo.Create(context.Background(), newAnomaly(model.SeverityLow)))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, MaxRecent, ClampLimit(0))
	assert.Equal(t, MaxRecent, ClampLimit(-5))
	assert.Equal(t, MaxRecent, ClampLimit(1000))
	assert.Equal(t, 10, ClampLimit(10))
}
