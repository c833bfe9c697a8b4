package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type pingClient struct {
	err error
}

func (p *pingClient) Publish(ctx context.Context, subject string, data []byte) error { return nil }
func (p *pingClient) Subscribe(subject string, handler MessageHandler) (Subscription, error) {
	return nil, nil
}
func (p *pingClient) Close() error                   { return nil }
func (p *pingClient) Ping(ctx context.Context) error { return p.err }

func TestCheckClientHealth(t *testing.T) {
	t.Run("nil client", func(t *testing.T) {
		status := CheckClientHealth(context.Background(), nil)
		assert.False(t, status.Connected)
		assert.Equal(t, "client is nil", status.Error)
	})

	t.Run("healthy", func(t *testing.T) {
		status := CheckClientHealth(context.Background(), &pingClient{})
		assert.True(t, status.Connected)
		assert.Empty(t, status.Error)
	})

	t.Run("ping fails", func(t *testing.T) {
		status := CheckClientHealth(context.Background(), &pingClient{err: errors.New("connection refused")})
		assert.False(t, status.Connected)
		assert.Equal(t, "connection refused", status.Error)
	})
}
