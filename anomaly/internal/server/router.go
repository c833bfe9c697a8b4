package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telhawk-systems/anomaly-stack/anomaly/internal/handlers"
	"github.com/telhawk-systems/anomaly-stack/common/logging"
	"github.com/telhawk-systems/anomaly-stack/common/middleware"
)

// Handlers are the components mounted by NewRouter. Stream is optional.
type Handlers struct {
	Gateway   *handlers.IngestGateway
	Anomalies *handlers.AnomalyHandler
	Stream    *handlers.StreamHandler
	Health    *handlers.HealthHandler
	Logger    *logging.Logger
}

// NewRouter constructs the service handler. The ingestion gateway sits in
// front of the mux and claims only POSTs to its configured path.
func NewRouter(h Handlers) http.Handler {
	mux := http.NewServeMux()

	// Anomaly API
	mux.HandleFunc("POST /api/v1/anomalies", h.Anomalies.Create)
	mux.HandleFunc("GET /api/v1/anomalies", h.Anomalies.List)
	mux.HandleFunc("GET /api/v1/anomalies/stats", h.Anomalies.Stats)
	if h.Stream != nil {
		mux.HandleFunc("GET /api/v1/anomalies/stream", h.Stream.Stream)
	}

	// Health endpoints
	mux.HandleFunc("/healthz", h.Health.Health)
	mux.HandleFunc("/readyz", h.Health.Ready)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	logger := h.Logger
	if logger == nil {
		logger = logging.Default()
	}

	handler := h.Gateway.Middleware(mux)
	handler = middleware.Recover(logger.Logger)(handler)
	return middleware.RequestID(handler)
}
