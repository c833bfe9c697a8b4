package messaging

import (
	"context"
	"time"
)

// HealthStatus is the result of a broker health probe.
type HealthStatus struct {
	Connected bool          `json:"connected"`
	Latency   time.Duration `json:"latency_ms"`
	Error     string        `json:"error,omitempty"`
}

// CheckClientHealth pings the broker and reports latency.
func CheckClientHealth(ctx context.Context, client Client) HealthStatus {
	if client == nil {
		return HealthStatus{Error: "client is nil"}
	}

	start := time.Now()
	err := client.Ping(ctx)
	status := HealthStatus{Latency: time.Since(start)}
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Connected = true
	return status
}
