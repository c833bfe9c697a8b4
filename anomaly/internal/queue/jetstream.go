package queue

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/telhawk-systems/anomaly-stack/anomaly/pkg/model"
)

// JetStreamPublisher is the subset of the JetStream client the queue needs.
type JetStreamPublisher interface {
	PublishSync(ctx context.Context, msg *nats.Msg) (*jetstream.PubAck, error)
	StreamLength(ctx context.Context, name string) (int64, error)
}

// JetStreamQueue is a Queue backed by a NATS JetStream stream with
// limits retention. Envelope metadata travels in message headers and the
// payload is the message body. Trimming is exact (DiscardOld at MaxMsgs).
type JetStreamQueue struct {
	js      JetStreamPublisher
	stream  string
	subject string
}

var streamNameReplacer = strings.NewReplacer(":", "_", ".", "_", " ", "_", "*", "_", ">", "_")

// JetStreamNames derives a valid JetStream stream name and subject from a
// queue name such as "anomaly:raw".
func JetStreamNames(queueName string) (stream, subject string) {
	stream = strings.ToUpper(streamNameReplacer.Replace(queueName))
	subject = "queue." + strings.ReplaceAll(queueName, ":", ".")
	return stream, subject
}

// NewJetStreamQueue creates a queue that appends to subject, which must be
// bound to stream.
func NewJetStreamQueue(js JetStreamPublisher, stream, subject string) *JetStreamQueue {
	return &JetStreamQueue{js: js, stream: stream, subject: subject}
}

// Name returns the stream name.
func (q *JetStreamQueue) Name() string {
	return q.stream
}

// Append publishes env and waits for the stream ack. The returned id is the
// stream sequence number.
func (q *JetStreamQueue) Append(ctx context.Context, env *model.Envelope) (string, error) {
	msg := nats.NewMsg(q.subject)
	msg.Header.Set(model.FieldIP, env.IP)
	msg.Header.Set(model.FieldReceivedAt, model.FormatReceivedAt(env.ReceivedAt))
	msg.Header.Set(model.FieldContentType, env.ContentType)
	msg.Data = env.Payload()

	ack, err := q.js.PublishSync(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("%w: publish %s: %w", ErrUnavailable, q.subject, err)
	}
	return strconv.FormatUint(ack.Sequence, 10), nil
}

// Len returns the number of messages retained by the stream.
func (q *JetStreamQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.js.StreamLength(ctx, q.stream)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return n, nil
}
