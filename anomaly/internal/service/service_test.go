package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/anomaly-stack/anomaly/internal/repository"
	"github.com/telhawk-systems/anomaly-stack/anomaly/internal/validator"
	"github.com/telhawk-systems/anomaly-stack/anomaly/pkg/model"
	"github.com/telhawk-systems/anomaly-stack/common/logging"
	"github.com/telhawk-systems/anomaly-stack/common/middleware"
)

type recordingPublisher struct {
	mu  sync.Mutex
	ids []int64
	err error
}

func (p *recordingPublisher) PublishCreated(ctx context.Context, a *model.Anomaly) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.ids = append(p.ids, a.ID)
	return nil
}

func (p *recordingPublisher) published() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int64(nil), p.ids...)
}

func validRequest() *model.CreateAnomalyRequest {
	return &model.CreateAnomalyRequest{
		SourceIP:    "10.0.0.5",
		Protocol:    "tcp",
		Severity:    "high",
		Score:       model.NewScore(0.87),
		Description: "Port scan detected",
		DetectedAt:  "2026-10-17T07:59:00Z",
	}
}

func TestAnomalyService_Create(t *testing.T) {
	repo := repository.NewInMemoryRepository()
	pub := &recordingPublisher{}
	svc := NewAnomalyService(repo, nil, pub, 0, nil)

	a, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, model.SeverityHigh, a.Severity)
	require.NotNil(t, a.Protocol)
	assert.Equal(t, "tcp", *a.Protocol)
	require.NotNil(t, a.DetectedAt)
	assert.Equal(t, 1, repo.Len())
	assert.Equal(t, []int64{1}, pub.published())
}

func TestAnomalyService_CreateInvalid(t *testing.T) {
	repo := repository.NewInMemoryRepository()
	pub := &recordingPublisher{}
	svc := NewAnomalyService(repo, nil, pub, 0, nil)

	req := validRequest()
	req.Score = model.NewScore(1.5)

	_, err := svc.Create(context.Background(), req)
	var verr *validator.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"Score must be less than or equal to 1.0"}, verr.Messages)

	assert.Equal(t, 0, repo.Len())
	assert.Empty(t, pub.published())
}

func TestAnomalyService_CreateStoreUnavailable(t *testing.T) {
	repo := repository.NewInMemoryRepository()
	repo.SetError(fmt.Errorf("%w: acquire connection: timeout", repository.ErrUnavailable))
	pub := &recordingPublisher{}
	svc := NewAnomalyService(repo, nil, pub, 0, nil)

	_, err := svc.Create(context.Background(), validRequest())
	assert.ErrorIs(t, err, repository.ErrUnavailable)
	assert.Empty(t, pub.published())
}

func TestAnomalyService_PublishFailureIsNotFatal(t *testing.T) {
	repo := repository.NewInMemoryRepository()
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewAnomalyService(repo, nil, pub, 0, nil)

	a, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, 1, repo.Len())
}

func TestAnomalyService_PublishFailureLogsAnomaly(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, slog.LevelWarn, "json")
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewAnomalyService(repository.NewInMemoryRepository(), nil, pub, 0, logger)

	ctx := middleware.WithRequestID(context.Background(), "req-77")
	a, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	assert.Equal(t, "failed to publish anomaly", entry["msg"])
	assert.Equal(t, "req-77", entry[logging.FieldRequestID])
	assert.Equal(t, float64(a.ID), entry[logging.FieldAnomalyID])
	assert.Equal(t, string(a.Severity), entry[logging.FieldSeverity])
	assert.Equal(t, "broker down", entry[logging.FieldError])
}

func TestAnomalyService_NilPublisher(t *testing.T) {
	svc := NewAnomalyService(repository.NewInMemoryRepository(), nil, nil, 0, nil)
	_, err := svc.Create(context.Background(), validRequest())
	assert.NoError(t, err)
}

func TestAnomalyService_PublishOrderMatchesCommitOrder(t *testing.T) {
	repo := repository.NewInMemoryRepository()
	pub := &recordingPublisher{}
	svc := NewAnomalyService(repo, nil, pub, 0, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), validRequest())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	ids := pub.published()
	require.Len(t, ids, 50)
	for i, id := range ids {
		assert.Equal(t, int64(i+1), id)
	}
}

func TestAnomalyService_CancelledWhileWaiting(t *testing.T) {
	svc := NewAnomalyService(repository.NewInMemoryRepository(), nil, nil, 0, nil)
	svc.order <- struct{}{}
	defer func() { <-svc.order }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Create(ctx, validRequest())
	assert.ErrorIs(t, err, repository.ErrUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

// slowRepository holds every write for delay and reports when one starts.
type slowRepository struct {
	*repository.InMemoryRepository
	delay   time.Duration
	started chan struct{}
}

func (r *slowRepository) Create(ctx context.Context, a *model.Anomaly) error {
	r.started <- struct{}{}
	time.Sleep(r.delay)
	return r.InMemoryRepository.Create(ctx, a)
}

func TestAnomalyService_WaitForCommitSlotIsBounded(t *testing.T) {
	repo := &slowRepository{
		InMemoryRepository: repository.NewInMemoryRepository(),
		delay:              time.Second,
		started:            make(chan struct{}, 2),
	}
	svc := NewAnomalyService(repo, nil, nil, 100*time.Millisecond, nil)

	firstDone := make(chan error, 1)
	go func() {
		_, err := svc.Create(context.Background(), validRequest())
		firstDone <- err
	}()
	<-repo.started

	start := time.Now()
	_, err := svc.Create(context.Background(), validRequest())
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, elapsed, 500*time.Millisecond)

	require.NoError(t, <-firstDone)
	assert.Equal(t, 1, repo.Len())
}

func TestAnomalyService_DefaultOrderWait(t *testing.T) {
	svc := NewAnomalyService(repository.NewInMemoryRepository(), nil, nil, 0, nil)
	assert.Equal(t, DefaultOrderWait, svc.orderWait)
}

func TestAnomalyService_RecentAndStats(t *testing.T) {
	repo := repository.NewInMemoryRepository()
	svc := NewAnomalyService(repo, nil, nil, 0, nil)
	ctx := context.Background()

	for _, sev := range []string{"critical", "low", "critical"} {
		req := validRequest()
		req.Severity = sev
		_, err := svc.Create(ctx, req)
		require.NoError(t, err)
	}

	recent, err := svc.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.Critical)
}
