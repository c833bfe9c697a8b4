package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/telhawk-systems/anomaly-stack/anomaly/pkg/model"
)

// RedisStream is a Queue backed by a Redis Stream. Appends use XADD with an
// auto-generated id and MAXLEN ~ trimming, so the stream may briefly hold
// more than MaxLen entries.
type RedisStream struct {
	client redis.UniversalClient
	stream string
	maxLen int64
}

// NewRedisStream creates a queue on the given stream key.
func NewRedisStream(client redis.UniversalClient, stream string, maxLen int64) *RedisStream {
	return &RedisStream{client: client, stream: stream, maxLen: maxLen}
}

// Name returns the stream key.
func (q *RedisStream) Name() string {
	return q.stream
}

// MaxLen returns the approximate cap on retained entries.
func (q *RedisStream) MaxLen() int64 {
	return q.maxLen
}

// Append adds env to the stream.
func (q *RedisStream) Append(ctx context.Context, env *model.Envelope) (string, error) {
	id, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		ID:     "*",
		Values: env.Fields(),
	}).Result()
	if err != nil {
		return "", fmt.Errorf("%w: xadd %s: %w", ErrUnavailable, q.stream, err)
	}
	return id, nil
}

// Len returns XLEN of the stream.
func (q *RedisStream) Len(ctx context.Context) (int64, error) {
	n, err := q.client.XLen(ctx, q.stream).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: xlen %s: %w", ErrUnavailable, q.stream, err)
	}
	return n, nil
}

// Recent returns up to n of the newest entries, newest first. Entries that
// do not decode as envelopes are skipped.
func (q *RedisStream) Recent(ctx context.Context, n int64) ([]Entry, error) {
	msgs, err := q.client.XRevRangeN(ctx, q.stream, "+", "-", n).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: xrevrange %s: %w", ErrUnavailable, q.stream, err)
	}

	entries := make([]Entry, 0, len(msgs))
	for _, msg := range msgs {
		env, err := model.ParseEnvelope(msg.Values)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{ID: msg.ID, Envelope: env})
	}
	return entries, nil
}
