// Package service implements the validated-create pipeline: validate,
// persist, then fan out.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/telhawk-systems/anomaly-stack/anomaly/internal/metrics"
	"github.com/telhawk-systems/anomaly-stack/anomaly/internal/repository"
	"github.com/telhawk-systems/anomaly-stack/anomaly/internal/validator"
	"github.com/telhawk-systems/anomaly-stack/anomaly/pkg/model"
	"github.com/telhawk-systems/anomaly-stack/common/logging"
)

// DefaultOrderWait bounds how long a create waits for its turn to commit.
const DefaultOrderWait = 3 * time.Second

// EventPublisher announces committed anomalies to observers.
type EventPublisher interface {
	PublishCreated(ctx context.Context, a *model.Anomaly) error
}

// AnomalyService is the only write path for anomalies.
type AnomalyService struct {
	repo      repository.Repository
	validator *validator.Chain
	publisher EventPublisher
	logger    *logging.Logger

	// order serialises commit+publish so observers see records in commit order.
	order     chan struct{}
	orderWait time.Duration
}

// NewAnomalyService creates the service. publisher may be nil, in which case
// nothing is fanned out. orderWait caps the time a create queues behind
// other creates; zero means DefaultOrderWait.
func NewAnomalyService(repo repository.Repository, v *validator.Chain, publisher EventPublisher, orderWait time.Duration, logger *logging.Logger) *AnomalyService {
	if orderWait <= 0 {
		orderWait = DefaultOrderWait
	}
	if v == nil {
		v = validator.Default()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &AnomalyService{
		repo:      repo,
		validator: v,
		publisher: publisher,
		logger:    logger.Component("anomaly_service"),
		order:     make(chan struct{}, 1),
		orderWait: orderWait,
	}
}

// Create validates req, persists it and publishes the stored record.
//
// A *validator.ValidationError means nothing was written. An error wrapping
// repository.ErrUnavailable means the store could not be reached. Once the
// record is committed Create succeeds: publish failures are logged and
// counted but never returned.
func (s *AnomalyService) Create(ctx context.Context, req *model.CreateAnomalyRequest) (*model.Anomaly, error) {
	if err := s.validator.Validate(ctx, req); err != nil {
		return nil, err
	}

	a, err := req.ToAnomaly()
	if err != nil {
		return nil, fmt.Errorf("failed to build anomaly: %w", err)
	}

	if err := s.acquireOrder(ctx); err != nil {
		return nil, err
	}
	defer func() { <-s.order }()

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	ctx = logging.ContextWith(ctx, logging.AnomalyID(a.ID), logging.Severity(string(a.Severity)))
	s.logger.InfoContext(ctx, "anomaly created")

	s.publish(ctx, a)
	return a, nil
}

// acquireOrder takes the commit slot, giving up after orderWait or when ctx
// ends. A create that cannot get its turn is reported as unavailable.
func (s *AnomalyService) acquireOrder(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, s.orderWait)
	defer cancel()

	select {
	case s.order <- struct{}{}:
		return nil
	case <-waitCtx.Done():
		s.logger.WarnContext(ctx, "timed out waiting to commit anomaly", logging.Error(waitCtx.Err()))
		return fmt.Errorf("%w: waiting for commit slot: %w", repository.ErrUnavailable, waitCtx.Err())
	}
}

func (s *AnomalyService) publish(ctx context.Context, a *model.Anomaly) {
	if s.publisher == nil {
		return
	}
	// The record is committed; a cancelled request must not suppress the event.
	if err := s.publisher.PublishCreated(context.WithoutCancel(ctx), a); err != nil {
		metrics.FanoutPublishErrors.Inc()
		s.logger.WarnContext(ctx, "failed to publish anomaly", logging.Error(err))
	}
}

// Recent returns up to limit of the newest anomalies.
func (s *AnomalyService) Recent(ctx context.Context, limit int) ([]*model.Anomaly, error) {
	return s.repo.Recent(ctx, repository.ClampLimit(limit))
}

// Stats returns counts per severity.
func (s *AnomalyService) Stats(ctx context.Context) (*model.Stats, error) {
	return s.repo.Stats(ctx)
}
