package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/telhawk-systems/anomaly-stack/anomaly/internal/broadcast"
	"github.com/telhawk-systems/anomaly-stack/anomaly/pkg/model"
	"github.com/telhawk-systems/anomaly-stack/common/httputil"
	"github.com/telhawk-systems/anomaly-stack/common/logging"
)

const streamHeartbeat = 15 * time.Second

// StreamHandler pushes newly created anomalies to browsers as server-sent
// events. Clients only receive anomalies created after they connect.
type StreamHandler struct {
	hub       *broadcast.Hub
	logger    *logging.Logger
	heartbeat time.Duration
}

func NewStreamHandler(hub *broadcast.Hub, logger *logging.Logger) *StreamHandler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &StreamHandler{hub: hub, logger: logger.Component("stream"), heartbeat: streamHeartbeat}
}

// Stream handles GET /api/v1/anomalies/stream.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	observer, err := h.hub.Attach()
	if err != nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "stream unavailable")
		return
	}
	defer observer.Close()

	// The server write timeout would otherwise cut long-lived streams.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.WithContext(r.Context()).Warn("streaming not supported", logging.Error(err))
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-observer.Events():
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", model.EventAnomalyCreated, data); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
