// Package redis implements the messaging interfaces on Redis Pub/Sub.
// It borrows connections from a caller-owned go-redis client so the fan-out
// channel shares the service's bounded Redis pool.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/telhawk-systems/anomaly-stack/common/messaging"
)

// Client implements messaging.Client. Closing it ends its subscriptions but
// leaves the underlying Redis client open.
type Client struct {
	rdb    goredis.UniversalClient
	logger *slog.Logger

	mu   sync.Mutex
	subs []*subscription
}

// NewClient wraps an existing Redis client.
func NewClient(rdb goredis.UniversalClient, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{rdb: rdb, logger: logger}
}

// Publish sends data to every subscriber of subject.
func (c *Client) Publish(ctx context.Context, subject string, data []byte) error {
	if err := c.rdb.Publish(ctx, subject, data).Err(); err != nil {
		return fmt.Errorf("redis publish to %s: %w", subject, err)
	}
	return nil
}

// Subscribe waits for Redis to confirm the subscription, then delivers
// messages to handler one at a time from a single goroutine.
func (c *Client) Subscribe(subject string, handler messaging.MessageHandler) (messaging.Subscription, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ps := c.rdb.Subscribe(ctx, subject)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe to %s: %w", subject, err)
	}

	s := &subscription{
		subject: subject,
		ps:      ps,
		done:    make(chan struct{}),
	}
	go s.run(c.logger, handler)

	c.mu.Lock()
	c.subs = append(c.subs, s)
	c.mu.Unlock()
	return s, nil
}

// Ping round-trips to Redis.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close ends all subscriptions created by this client.
func (c *Client) Close() error {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, s := range subs {
		_ = s.Unsubscribe()
	}
	return nil
}

type subscription struct {
	subject string
	ps      *goredis.PubSub
	done    chan struct{}
	once    sync.Once
}

func (s *subscription) run(logger *slog.Logger, handler messaging.MessageHandler) {
	defer close(s.done)
	for msg := range s.ps.Channel() {
		m := &messaging.Message{
			Subject:   msg.Channel,
			Data:      []byte(msg.Payload),
			Timestamp: time.Now(),
		}
		if err := handler(context.Background(), m); err != nil {
			logger.Warn("message handler failed",
				slog.String("subject", s.subject),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (s *subscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		err = s.ps.Close()
		<-s.done
	})
	return err
}

func (s *subscription) Subject() string {
	return s.subject
}
