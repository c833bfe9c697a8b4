// Package messaging defines broker-agnostic publish/subscribe interfaces.
// The anomaly fan-out channel is built on these so the broker (Redis Pub/Sub
// or NATS) is a deployment choice.
package messaging

import (
	"context"
	"time"
)

// Message is a message received from a broker.
type Message struct {
	// Subject is the channel the message was published to.
	Subject string

	// Data is the raw payload.
	Data []byte

	// Timestamp is when the message was received locally.
	Timestamp time.Time
}

// MessageHandler processes one received message. Handlers for a single
// subscription are invoked sequentially in delivery order.
type MessageHandler func(ctx context.Context, msg *Message) error

// Subscription is an active subscription to a subject.
type Subscription interface {
	Unsubscribe() error
	Subject() string
}

// Publisher publishes fire-and-forget messages.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Close() error
}

// Subscriber creates fan-out subscriptions: every subscriber receives every
// message published after its subscription became active.
type Subscriber interface {
	// Subscribe returns once the subscription is active on the broker.
	Subscribe(subject string, handler MessageHandler) (Subscription, error)
	Close() error
}

// Client combines Publisher and Subscriber.
type Client interface {
	Publisher
	Subscriber

	// Ping round-trips to the broker.
	Ping(ctx context.Context) error
}
