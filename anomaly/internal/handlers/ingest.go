package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/telhawk-systems/anomaly-stack/anomaly/internal/auth"
	"github.com/telhawk-systems/anomaly-stack/anomaly/internal/metrics"
	"github.com/telhawk-systems/anomaly-stack/anomaly/internal/queue"
	"github.com/telhawk-systems/anomaly-stack/anomaly/pkg/model"
	"github.com/telhawk-systems/anomaly-stack/common/httputil"
	"github.com/telhawk-systems/anomaly-stack/common/logging"
)

// IngestOutcome is the result of one ingestion call.
type IngestOutcome int

const (
	IngestAccepted IngestOutcome = iota
	IngestUnauthorized
	IngestBadRequest
	IngestUnavailable
)

func (o IngestOutcome) String() string {
	switch o {
	case IngestAccepted:
		return "accepted"
	case IngestUnauthorized:
		return "unauthorized"
	case IngestBadRequest:
		return "bad_request"
	case IngestUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// StatusCode maps the outcome to its HTTP status.
func (o IngestOutcome) StatusCode() int {
	switch o {
	case IngestAccepted:
		return http.StatusOK
	case IngestUnauthorized:
		return http.StatusUnauthorized
	case IngestBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusServiceUnavailable
	}
}

// Body is the fixed plain-text response for the outcome.
func (o IngestOutcome) Body() string {
	switch o {
	case IngestAccepted:
		return "OK"
	case IngestUnauthorized:
		return "Unauthorized"
	case IngestBadRequest:
		return "Bad Request"
	default:
		return "Service Unavailable"
	}
}

// IngestGatewayConfig configures IngestGateway.
type IngestGatewayConfig struct {
	Path              string
	Token             string
	MaxBodySize       int64
	TrustProxyHeaders bool
}

// IngestGateway accepts opaque sensor payloads on one path and appends them
// to the raw queue. It wraps the rest of the service: anything that is not a
// POST to Path is passed to the next handler untouched.
type IngestGateway struct {
	cfg    IngestGatewayConfig
	queue  queue.Queue
	logger *logging.Logger
	now    func() time.Time
}

// NewIngestGateway creates a gateway appending to q.
func NewIngestGateway(cfg IngestGatewayConfig, q queue.Queue, logger *logging.Logger) *IngestGateway {
	if logger == nil {
		logger = logging.Discard()
	}
	return &IngestGateway{
		cfg:    cfg,
		queue:  q,
		logger: logger.Component("ingestion_gateway"),
		now:    time.Now,
	}
}

// Middleware intercepts ingestion requests in front of next.
func (g *IngestGateway) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != g.cfg.Path {
			next.ServeHTTP(w, r)
			return
		}
		g.ServeHTTP(w, r)
	})
}

// ServeHTTP handles one ingestion request regardless of path.
func (g *IngestGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	outcome := g.Ingest(w, r)
	metrics.IngestRequestsTotal.WithLabelValues(outcome.String()).Inc()
	httputil.WriteText(w, outcome.StatusCode(), outcome.Body())
}

// Ingest authenticates r, reads its body and appends it to the queue.
// Nothing is appended unless the outcome is IngestAccepted.
func (g *IngestGateway) Ingest(w http.ResponseWriter, r *http.Request) IngestOutcome {
	ctx := r.Context()
	ip := clientIP(r, g.cfg.TrustProxyHeaders)
	log := g.logger.WithContext(ctx)

	if !auth.BearerAuthorized(r, g.cfg.Token) {
		log.Warn("rejected unauthenticated ingestion attempt", logging.IP(ip))
		return IngestUnauthorized
	}

	body := r.Body
	if g.cfg.MaxBodySize > 0 {
		body = http.MaxBytesReader(w, r.Body, g.cfg.MaxBodySize)
	}
	payload, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn("ingestion payload too large", logging.IP(ip), "limit", tooLarge.Limit)
		} else {
			log.Warn("failed to read ingestion payload", logging.IP(ip), logging.Error(err))
		}
		return IngestBadRequest
	}

	env, err := model.NewEnvelope(ip, g.now(), r.Header.Get("Content-Type"), payload)
	if err != nil {
		log.Warn("received empty payload", logging.IP(ip))
		return IngestBadRequest
	}

	start := time.Now()
	id, err := g.queue.Append(ctx, env)
	metrics.QueueAppendDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		log.Error("queue append failed",
			logging.IP(ip),
			logging.Stream(g.queue.Name()),
			logging.Error(err),
		)
		return IngestUnavailable
	}

	metrics.IngestBytesTotal.Add(float64(env.Len()))
	log.Debug("payload queued",
		logging.IP(ip),
		logging.Stream(g.queue.Name()),
		logging.EntryID(id),
		logging.Bytes(env.Len()),
	)
	return IngestAccepted
}
