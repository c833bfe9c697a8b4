package nats

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// JetStreamClient adds JetStream persistence to Client.
type JetStreamClient struct {
	*Client
	js jetstream.JetStream
}

// BoundedStreamConfig describes a size-capped, append-only stream: once
// MaxMsgs is reached the oldest messages are discarded.
type BoundedStreamConfig struct {
	Name    string
	Subject string
	MaxMsgs int64
	Storage jetstream.StorageType
}

// NewJetStreamClient connects to NATS and opens a JetStream context.
func NewJetStreamClient(cfg Config) (*JetStreamClient, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(client.conn)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &JetStreamClient{Client: client, js: js}, nil
}

// EnsureBoundedStream creates or updates a limits-retention stream.
func (c *JetStreamClient) EnsureBoundedStream(ctx context.Context, cfg BoundedStreamConfig) (jetstream.Stream, error) {
	stream, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Name,
		Subjects:  []string{cfg.Subject},
		MaxMsgs:   cfg.MaxMsgs,
		Retention: jetstream.LimitsPolicy,
		Discard:   jetstream.DiscardOld,
		Storage:   cfg.Storage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update stream %s: %w", cfg.Name, err)
	}
	return stream, nil
}

// PublishSync appends msg to its stream and waits for the server ack.
func (c *JetStreamClient) PublishSync(ctx context.Context, msg *nats.Msg) (*jetstream.PubAck, error) {
	return c.js.PublishMsg(ctx, msg)
}

// StreamLength returns the number of messages currently retained by a stream.
func (c *JetStreamClient) StreamLength(ctx context.Context, name string) (int64, error) {
	stream, err := c.js.Stream(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("failed to get stream %s: %w", name, err)
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get stream info %s: %w", name, err)
	}
	return int64(info.State.Msgs), nil
}
