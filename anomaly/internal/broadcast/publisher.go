// Package broadcast propagates newly persisted anomalies to live observers.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/telhawk-systems/anomaly-stack/anomaly/pkg/model"
	"github.com/telhawk-systems/anomaly-stack/common/messaging"
)

// Publisher publishes anomaly.created events on one subject.
type Publisher struct {
	pub     messaging.Publisher
	subject string
	timeout time.Duration
	now     func() time.Time
}

// NewPublisher creates a publisher. A positive timeout bounds each publish.
func NewPublisher(pub messaging.Publisher, subject string, timeout time.Duration) *Publisher {
	return &Publisher{pub: pub, subject: subject, timeout: timeout, now: time.Now}
}

// Subject returns the channel events are published on.
func (p *Publisher) Subject() string {
	return p.subject
}

// PublishCreated publishes a after it has been committed.
func (p *Publisher) PublishCreated(ctx context.Context, a *model.Anomaly) error {
	data, err := json.Marshal(model.NewCreatedEvent(a, p.now()))
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return p.pub.Publish(ctx, p.subject, data)
}
