package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/telhawk-systems/anomaly-stack/anomaly/internal/auth"
	"github.com/telhawk-systems/anomaly-stack/anomaly/internal/metrics"
	"github.com/telhawk-systems/anomaly-stack/anomaly/internal/repository"
	"github.com/telhawk-systems/anomaly-stack/anomaly/internal/service"
	"github.com/telhawk-systems/anomaly-stack/anomaly/internal/validator"
	"github.com/telhawk-systems/anomaly-stack/anomaly/pkg/model"
	"github.com/telhawk-systems/anomaly-stack/common/httputil"
	"github.com/telhawk-systems/anomaly-stack/common/logging"
)

const defaultMaxCreateBody = 1 << 20

// AnomalyHandlerConfig configures AnomalyHandler.
type AnomalyHandlerConfig struct {
	WorkerToken       string
	MaxBodySize       int64
	TrustProxyHeaders bool
}

// AnomalyHandler serves the anomaly API.
type AnomalyHandler struct {
	cfg     AnomalyHandlerConfig
	service *service.AnomalyService
	logger  *logging.Logger
}

func NewAnomalyHandler(cfg AnomalyHandlerConfig, svc *service.AnomalyService, logger *logging.Logger) *AnomalyHandler {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = defaultMaxCreateBody
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &AnomalyHandler{cfg: cfg, service: svc, logger: logger.Component("anomaly_handler")}
}

// Create handles POST /api/v1/anomalies from trusted workers.
func (h *AnomalyHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logger.WithContext(r.Context())
	ip := clientIP(r, h.cfg.TrustProxyHeaders)

	if !auth.WorkerAuthorized(r, h.cfg.WorkerToken) {
		log.Warn("rejected create with bad worker token", logging.IP(ip))
		h.count("unauthorized")
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodySize))
	if err != nil {
		log.Warn("failed to read create body", logging.IP(ip), logging.Error(err))
		h.count("bad_request")
		writeErrors(w, http.StatusBadRequest, "Request body could not be read")
		return
	}

	req, err := model.DecodeCreateAnomalyRequest(body)
	if err != nil {
		log.Warn("malformed create body", logging.IP(ip), logging.Error(err))
		h.count("bad_request")
		writeErrors(w, http.StatusBadRequest, "Request body is not valid JSON")
		return
	}

	anomaly, err := h.service.Create(r.Context(), req)
	if err != nil {
		var verr *validator.ValidationError
		switch {
		case errors.As(err, &verr):
			log.Warn("anomaly rejected", logging.IP(ip), logging.Validations(verr.Messages))
			h.count("invalid")
			writeErrors(w, http.StatusUnprocessableEntity, verr.Messages...)
		case errors.Is(err, repository.ErrUnavailable):
			log.Error("anomaly store unavailable", logging.Error(err))
			h.count("unavailable")
			httputil.WriteError(w, http.StatusServiceUnavailable, "service unavailable")
		default:
			log.Error("failed to create anomaly", logging.Error(err))
			h.count("error")
			httputil.WriteError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	h.count("created")
	httputil.WriteJSON(w, http.StatusCreated, model.CreatedResponse{Status: "created", ID: anomaly.ID})
}

// List handles GET /api/v1/anomalies?limit=N, newest first.
func (h *AnomalyHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := repository.MaxRecent
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httputil.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	anomalies, err := h.service.Recent(r.Context(), limit)
	if err != nil {
		h.writeReadError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"anomalies": anomalies,
		"count":     len(anomalies),
	})
}

// Stats handles GET /api/v1/anomalies/stats.
func (h *AnomalyHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.writeReadError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *AnomalyHandler) writeReadError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.WithContext(r.Context()).Error("failed to read anomalies", logging.Error(err))
	if errors.Is(err, repository.ErrUnavailable) {
		httputil.WriteError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}
	httputil.WriteError(w, http.StatusInternalServerError, "internal server error")
}

func (h *AnomalyHandler) count(outcome string) {
	metrics.CreateRequestsTotal.WithLabelValues(outcome).Inc()
}

func writeErrors(w http.ResponseWriter, status int, messages ...string) {
	httputil.WriteJSON(w, status, model.ErrorResponse{Status: "error", Errors: messages})
}
