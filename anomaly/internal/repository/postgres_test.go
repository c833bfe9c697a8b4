package repository

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/telhawk-systems/anomaly-stack/anomaly/internal/config"
	"github.com/telhawk-systems/anomaly-stack/anomaly/pkg/model"
	"github.com/telhawk-systems/anomaly-stack/common/database"
)

// setupTestDatabase starts a PostgreSQL testcontainer and applies migrations.
func setupTestDatabase(t *testing.T) *PostgresRepository {
	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("anomaly_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migrations, err := filepath.Abs(filepath.Join("..", "..", "migrations"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(database.SourceURL(migrations), connStr, database.Up))

	repo, err := NewPostgresRepository(ctx, config.DatabaseConfig{
		URL:            connStr,
		MaxConns:       4,
		AcquireTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(repo.Close)

	return repo
}

func TestPostgresRepository_CreateAndRecent(t *testing.T) {
	repo := setupTestDatabase(t)
	ctx := context.Background()

	proto := "tcp"
	detected := time.Date(2026, 10, 17, 7, 59, 0, 0, time.UTC)
	a := &model.Anomaly{
		SourceIP:    "10.0.0.5",
		Protocol:    &proto,
		Severity:    model.SeverityHigh,
		Score:       0.87,
		Description: "Port scan detected",
		DetectedAt:  &detected,
	}
	require.NoError(t, repo.Create(ctx, a))
	assert.Positive(t, a.ID)
	assert.False(t, a.CreatedAt.IsZero())

	b := &model.Anomaly{SourceIP: "10.0.0.6", Severity: model.SeverityCritical, Score: 1, Description: "beacon"}
	require.NoError(t, repo.Create(ctx, b))
	assert.Greater(t, b.ID, a.ID)

	recent, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, b.ID, recent[0].ID)

	got := recent[1]
	assert.Equal(t, "10.0.0.5", got.SourceIP)
	require.NotNil(t, got.Protocol)
	assert.Equal(t, "tcp", *got.Protocol)
	assert.Nil(t, got.DestinationIP)
	assert.Nil(t, got.RawPayload)
	assert.InDelta(t, 0.87, got.Score, 1e-9)
	require.NotNil(t, got.DetectedAt)
	assert.True(t, detected.Equal(*got.DetectedAt))
}

func TestPostgresRepository_Stats(t *testing.T) {
	repo := setupTestDatabase(t)
	ctx := context.Background()

	for _, s := range []model.Severity{model.SeverityCritical, model.SeverityLow, model.SeverityCritical} {
		require.NoError(t, repo.Create(ctx, &model.Anomaly{SourceIP: "10.0.0.1", Severity: s, Score: 0.1, Description: "d"}))
	}

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.Critical)
	assert.Equal(t, int64(0), stats.BySeverity[model.SeverityMedium])
}

func TestPostgresRepository_UnboundedAddresses(t *testing.T) {
	repo := setupTestDatabase(t)
	ctx := context.Background()

	source := strings.Repeat("s", 1024)
	dest := strings.Repeat("d", 512)
	require.NoError(t, repo.Create(ctx, &model.Anomaly{
		SourceIP: source, DestinationIP: &dest, Severity: model.SeverityMedium, Score: 0.5, Description: "d",
	}))

	recent, err := repo.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, source, recent[0].SourceIP)
	require.NotNil(t, recent[0].DestinationIP)
	assert.Equal(t, dest, *recent[0].DestinationIP)
}

func TestPostgresRepository_CheckConstraints(t *testing.T) {
	repo := setupTestDatabase(t)

	err := repo.Create(context.Background(), &model.Anomaly{
		SourceIP: "10.0.0.1", Severity: "urgent", Score: 0.1, Description: "d",
	})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnavailable))

	recent, err := repo.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestPostgresRepository_UnavailableAfterClose(t *testing.T) {
	repo := setupTestDatabase(t)
	repo.Close()

	err := repo.Create(context.Background(), &model.Anomaly{
		SourceIP: "10.0.0.1", Severity: model.SeverityLow, Score: 0.1, Description: "d",
	})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClassify(t *testing.T) {
	assert.ErrorIs(t, classify("x", context.DeadlineExceeded), ErrUnavailable)
	assert.NotErrorIs(t, classify("x", errors.New("syntax")), ErrUnavailable)
}
