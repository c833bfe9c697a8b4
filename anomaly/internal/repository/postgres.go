package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telhawk-systems/anomaly-stack/anomaly/internal/config"
	"github.com/telhawk-systems/anomaly-stack/anomaly/pkg/model"
	"github.com/telhawk-systems/anomaly-stack/common/database"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	pool           *pgxpool.Pool
	acquireTimeout time.Duration
	timeouts       database.Timeouts
}

// NewPostgresRepository creates a bounded connection pool and verifies it.
func NewPostgresRepository(ctx context.Context, cfg config.DatabaseConfig) (*PostgresRepository, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	timeouts := database.Timeouts{Query: cfg.QueryTimeout, Write: cfg.WriteTimeout}
	pingCtx, cancel := timeouts.QueryContext(ctx)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	acquireTimeout := cfg.AcquireTimeout
	if acquireTimeout <= 0 {
		acquireTimeout = 3 * time.Second
	}
	return &PostgresRepository{pool: pool, acquireTimeout: acquireTimeout, timeouts: timeouts}, nil
}

// Ping checks database connectivity.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return classify("ping", err)
	}
	return nil
}

// Close closes the connection pool.
func (r *PostgresRepository) Close() {
	r.pool.Close()
}

func (r *PostgresRepository) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	acqCtx, cancel := context.WithTimeout(ctx, r.acquireTimeout)
	defer cancel()

	conn, err := r.pool.Acquire(acqCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire connection: %w", ErrUnavailable, err)
	}
	return conn, nil
}

const insertAnomaly = `
	INSERT INTO anomalies (source_ip, destination_ip, protocol, severity, score,
	                       description, raw_payload, detected_at, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	RETURNING id, score::float8, created_at, updated_at
`

// Create inserts a inside a transaction.
func (r *PostgresRepository) Create(ctx context.Context, a *model.Anomaly) error {
	conn, err := r.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	ctx, cancel := r.timeouts.WriteContext(ctx)
	defer cancel()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return classify("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, insertAnomaly,
		a.SourceIP, a.DestinationIP, a.Protocol, string(a.Severity), a.Score,
		a.Description, a.RawPayload, a.DetectedAt,
	).Scan(&a.ID, &a.Score, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return classify("insert anomaly", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classify("commit anomaly", err)
	}
	return nil
}

const selectRecent = `
	SELECT id, source_ip, destination_ip, protocol, severity, score::float8,
	       description, raw_payload, detected_at, created_at, updated_at
	FROM anomalies
	ORDER BY created_at DESC, id DESC
	LIMIT $1
`

// Recent returns the newest anomalies.
func (r *PostgresRepository) Recent(ctx context.Context, limit int) ([]*model.Anomaly, error) {
	conn, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	ctx, cancel := r.timeouts.QueryContext(ctx)
	defer cancel()

	rows, err := conn.Query(ctx, selectRecent, ClampLimit(limit))
	if err != nil {
		return nil, classify("query recent anomalies", err)
	}
	defer rows.Close()

	anomalies := make([]*model.Anomaly, 0, ClampLimit(limit))
	for rows.Next() {
		var a model.Anomaly
		var severity string
		if err := rows.Scan(
			&a.ID, &a.SourceIP, &a.DestinationIP, &a.Protocol, &severity, &a.Score,
			&a.Description, &a.RawPayload, &a.DetectedAt, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan anomaly: %w", err)
		}
		a.Severity = model.Severity(severity)
		anomalies = append(anomalies, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate recent anomalies", err)
	}
	return anomalies, nil
}

// Stats counts anomalies per severity.
func (r *PostgresRepository) Stats(ctx context.Context) (*model.Stats, error) {
	conn, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	ctx, cancel := r.timeouts.QueryContext(ctx)
	defer cancel()

	rows, err := conn.Query(ctx, `SELECT severity, COUNT(*) FROM anomalies GROUP BY severity`)
	if err != nil {
		return nil, classify("query anomaly stats", err)
	}

	stats := newStats()
	var severity string
	var count int64
	_, err = pgx.ForEachRow(rows, []any{&severity, &count}, func() error {
		stats.BySeverity[model.Severity(severity)] = count
		stats.Total += count
		return nil
	})
	if err != nil {
		return nil, classify("scan anomaly stats", err)
	}
	stats.Critical = stats.BySeverity[model.SeverityCritical]
	return stats, nil
}

// classify wraps connectivity failures in ErrUnavailable. Statement errors
// reported by the server are returned as ordinary errors.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	var connectErr *pgconn.ConnectError
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.As(err, &connectErr) ||
		errors.As(err, &netErr) ||
		pgconn.Timeout(err) ||
		pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
