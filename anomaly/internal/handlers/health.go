package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/telhawk-systems/anomaly-stack/common/httputil"
)

// Checker reports whether a dependency is reachable.
type Checker func(ctx context.Context) error

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	checks  map[string]Checker
	timeout time.Duration
}

// NewHealthHandler creates a handler. Each named check must pass for /readyz
// to report ready.
func NewHealthHandler(checks map[string]Checker) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: 2 * time.Second}
}

// Health always reports healthy while the process is serving.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready runs every dependency check.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := "ready"
	code := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			status = "not_ready"
			code = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	httputil.WriteJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": results,
	})
}
