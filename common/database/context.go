// Package database holds helpers shared by the PostgreSQL-backed components.
package database

import (
	"context"
	"time"
)

const (
	// DefaultQueryTimeout bounds reads such as the recent listing and stats.
	DefaultQueryTimeout = 5 * time.Second

	// DefaultWriteTimeout bounds the insert transaction of one anomaly.
	DefaultWriteTimeout = 10 * time.Second
)

// Timeouts bounds statements issued against the anomaly store. Zero fields
// fall back to the defaults above.
type Timeouts struct {
	Query time.Duration
	Write time.Duration
}

// QueryContext derives a context bounded by the query timeout.
func (t Timeouts) QueryContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, orDefault(t.Query, DefaultQueryTimeout))
}

// WriteContext derives a context bounded by the write timeout.
func (t Timeouts) WriteContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, orDefault(t.Write, DefaultWriteTimeout))
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
