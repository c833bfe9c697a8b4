// Package queue implements the bounded durable queue that buffers raw
// ingested payloads until a worker drains them.
package queue

import (
	"context"
	"errors"

	"github.com/telhawk-systems/anomaly-stack/anomaly/pkg/model"
)

// ErrUnavailable is returned when the backend cannot be reached, a pooled
// connection cannot be acquired in time, or the append itself fails.
// Nothing is appended when it is returned.
var ErrUnavailable = errors.New("queue unavailable")

// Queue is an append-only, size-capped log of raw envelopes.
type Queue interface {
	// Append stores the envelope and returns the backend-assigned entry id.
	Append(ctx context.Context, env *model.Envelope) (string, error)
	// Len returns the number of retained entries.
	Len(ctx context.Context) (int64, error)
	// Name identifies the underlying stream in logs.
	Name() string
}

// Entry is a retained envelope with its id.
type Entry struct {
	ID       string
	Envelope *model.Envelope
}
