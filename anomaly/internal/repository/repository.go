// Package repository persists validated anomalies.
package repository

import (
	"context"
	"errors"

	"github.com/telhawk-systems/anomaly-stack/anomaly/pkg/model"
)

// MaxRecent caps how many anomalies Recent returns.
const MaxRecent = 100

var (
	// ErrUnavailable means the store could not be reached or no connection
	// could be acquired in time. Nothing was written.
	ErrUnavailable = errors.New("anomaly store unavailable")
)

// Repository is the authoritative store for anomalies.
type Repository interface {
	// Create inserts a and fills in ID, CreatedAt and UpdatedAt. The row is
	// committed when Create returns nil.
	Create(ctx context.Context, a *model.Anomaly) error
	// Recent returns up to limit anomalies, newest first.
	Recent(ctx context.Context, limit int) ([]*model.Anomaly, error)
	Stats(ctx context.Context) (*model.Stats, error)
	Ping(ctx context.Context) error
	Close()
}

// ClampLimit maps a requested page size into [1, MaxRecent].
func ClampLimit(limit int) int {
	if limit <= 0 || limit > MaxRecent {
		return MaxRecent
	}
	return limit
}

func newStats() *model.Stats {
	stats := &model.Stats{BySeverity: make(map[model.Severity]int64)}
	for _, s := range model.Severities() {
		stats.BySeverity[s] = 0
	}
	return stats
}
