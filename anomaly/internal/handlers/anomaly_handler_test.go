package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/anomaly-stack/anomaly/internal/broadcast"
	"github.com/telhawk-systems/anomaly-stack/anomaly/internal/repository"
	"github.com/telhawk-systems/anomaly-stack/anomaly/internal/service"
	"github.com/telhawk-systems/anomaly-stack/anomaly/pkg/model"
	redismsg "github.com/telhawk-systems/anomaly-stack/common/messaging/redis"
)

type apiFixture struct {
	repo    *repository.InMemoryRepository
	hub     *broadcast.Hub
	handler *AnomalyHandler
	stream  *StreamHandler
}

func setupAPI(t *testing.T) *apiFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	fanout := redismsg.NewClient(rdb, nil)
	t.Cleanup(func() { fanout.Close() })

	hub := broadcast.NewHub(fanout, "anomalies", 16, nil)
	require.NoError(t, hub.Start())
	t.Cleanup(func() { hub.Stop() })

	repo := repository.NewInMemoryRepository()
	svc := service.NewAnomalyService(repo, nil, broadcast.NewPublisher(fanout, "anomalies", time.Second), 0, nil)

	return &apiFixture{
		repo:    repo,
		hub:     hub,
		handler: NewAnomalyHandler(AnomalyHandlerConfig{WorkerToken: testWorkerToken}, svc, nil),
		stream:  NewStreamHandler(hub, nil),
	}
}

func postAnomaly(h *AnomalyHandler, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/anomalies", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Worker-Token", token)
	}
	w := httptest.NewRecorder()
	h.Create(w, req)
	return w
}

func nextEvent(t *testing.T, o *broadcast.Observer) *model.CreatedEvent {
	t.Helper()
	select {
	case data, ok := <-o.Events():
		require.True(t, ok)
		var event model.CreatedEvent
		require.NoError(t, json.Unmarshal(data, &event))
		return &event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fan-out event")
		return nil
	}
}

func TestAnomalyHandler_CreateAndFanOut(t *testing.T) {
	f := setupAPI(t)
	observer, err := f.hub.Attach()
	require.NoError(t, err)

	w := postAnomaly(f.handler, testWorkerToken,
		`{"anomaly":{"source_ip":"10.0.0.5","severity":"critical","score":0.93,"description":"port scan"}}`)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp model.CreatedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "created", resp.Status)
	assert.Equal(t, int64(1), resp.ID)
	assert.Equal(t, 1, f.repo.Len())

	event := nextEvent(t, observer)
	assert.Equal(t, resp.ID, event.Anomaly.ID)
	assert.Equal(t, model.SeverityCritical, event.Anomaly.Severity)
	assert.Equal(t, "port scan", event.Anomaly.Description)
}

func TestAnomalyHandler_CreateFlatBodyIgnoresUnknownFields(t *testing.T) {
	f := setupAPI(t)

	w := postAnomaly(f.handler, testWorkerToken,
		`{"source_ip":"10.0.0.5","severity":"low","score":"0.25","description":"beacon","sensor":"edge-7"}`)

	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestAnomalyHandler_CreateLongAddresses(t *testing.T) {
	f := setupAPI(t)
	source := strings.Repeat("a", 300)
	dest := "fe80::1%" + strings.Repeat("eth", 100)

	w := postAnomaly(f.handler, testWorkerToken,
		fmt.Sprintf(`{"source_ip":%q,"destination_ip":%q,"severity":"low","score":0.2,"description":"d"}`, source, dest))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	recent, err := f.repo.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, source, recent[0].SourceIP)
	require.NotNil(t, recent[0].DestinationIP)
	assert.Equal(t, dest, *recent[0].DestinationIP)
}

func TestAnomalyHandler_CreateInvalidSeverity(t *testing.T) {
	f := setupAPI(t)

	w := postAnomaly(f.handler, testWorkerToken,
		`{"anomaly":{"source_ip":"10.0.0.5","severity":"extreme","score":0.93,"description":"x"}}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var resp model.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0], "Severity")
	assert.Equal(t, 0, f.repo.Len())
}

func TestAnomalyHandler_CreateRejectionIsRepeatable(t *testing.T) {
	f := setupAPI(t)
	body := `{"source_ip":"","severity":"high","score":7,"description":"x"}`

	first := postAnomaly(f.handler, testWorkerToken, body)
	for i := 0; i < 5; i++ {
		w := postAnomaly(f.handler, testWorkerToken, body)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.JSONEq(t, first.Body.String(), w.Body.String())
	}
	assert.JSONEq(t,
		`{"status":"error","errors":["Source ip can't be blank","Score must be less than or equal to 1.0"]}`,
		first.Body.String())
	assert.Equal(t, 0, f.repo.Len())
}

func TestAnomalyHandler_CreateScoreBoundaries(t *testing.T) {
	f := setupAPI(t)

	for _, score := range []string{"0.0", "1.0", "0", "1"} {
		w := postAnomaly(f.handler, testWorkerToken,
			fmt.Sprintf(`{"source_ip":"10.0.0.5","severity":"medium","score":%s,"description":"d"}`, score))
		assert.Equal(t, http.StatusCreated, w.Code, "score %s", score)
	}
	for _, score := range []string{"-0.0001", "1.0001"} {
		w := postAnomaly(f.handler, testWorkerToken,
			fmt.Sprintf(`{"source_ip":"10.0.0.5","severity":"medium","score":%s,"description":"d"}`, score))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "score %s", score)
	}
	assert.Equal(t, 4, f.repo.Len())
}

func TestAnomalyHandler_CreateUnauthorized(t *testing.T) {
	f := setupAPI(t)
	body := `{"source_ip":"10.0.0.5","severity":"high","score":0.5,"description":"d"}`

	for _, token := range []string{"", "wrong", testIngestToken} {
		w := postAnomaly(f.handler, token, body)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"error":"unauthorized"}`, w.Body.String())
	}
	assert.Equal(t, 0, f.repo.Len())
}

func TestAnomalyHandler_CreateMalformedJSON(t *testing.T) {
	f := setupAPI(t)

	w := postAnomaly(f.handler, testWorkerToken, `{"source_ip":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp model.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.NotEmpty(t, resp.Errors)
}

func TestAnomalyHandler_CreateStoreUnavailable(t *testing.T) {
	f := setupAPI(t)
	f.repo.SetError(fmt.Errorf("%w: acquire connection: context deadline exceeded", repository.ErrUnavailable))

	w := postAnomaly(f.handler, testWorkerToken,
		`{"source_ip":"10.0.0.5","severity":"high","score":0.5,"description":"d"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"error":"service unavailable"}`, w.Body.String())
}

func TestAnomalyHandler_CreateStoreError(t *testing.T) {
	f := setupAPI(t)
	f.repo.SetError(fmt.Errorf("failed to insert anomaly: check constraint"))

	w := postAnomaly(f.handler, testWorkerToken,
		`{"source_ip":"10.0.0.5","severity":"high","score":0.5,"description":"d"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAnomalyHandler_SequentialCreatesObservedInOrder(t *testing.T) {
	f := setupAPI(t)
	observer, err := f.hub.Attach()
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		w := postAnomaly(f.handler, testWorkerToken,
			fmt.Sprintf(`{"source_ip":"10.0.0.%d","severity":"high","score":0.5,"description":"n%d"}`, i, i))
		require.Equal(t, http.StatusCreated, w.Code)
	}
	for i := 0; i < 10; i++ {
		assert.Equal(t, fmt.Sprintf("n%d", i), nextEvent(t, observer).Anomaly.Description)
	}
}

func TestAnomalyHandler_ListAndStats(t *testing.T) {
	f := setupAPI(t)
	for _, sev := range []string{"critical", "low", "critical"} {
		w := postAnomaly(f.handler, testWorkerToken,
			fmt.Sprintf(`{"source_ip":"10.0.0.5","severity":%q,"score":0.5,"description":"d"}`, sev))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := httptest.NewRecorder()
	f.handler.List(w, httptest.NewRequest(http.MethodGet, "/api/v1/anomalies?limit=2", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Anomalies []model.Anomaly `json:"anomalies"`
		Count     int             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Count)
	assert.Len(t, list.Anomalies, 2)

	w = httptest.NewRecorder()
	f.handler.List(w, httptest.NewRequest(http.MethodGet, "/api/v1/anomalies?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	f.handler.Stats(w, httptest.NewRequest(http.MethodGet, "/api/v1/anomalies/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var stats model.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.Critical)
}

func TestStreamHandler_DeliversNewAnomalies(t *testing.T) {
	f := setupAPI(t)
	srv := httptest.NewServer(http.HandlerFunc(f.stream.Stream))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return f.hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	w := postAnomaly(f.handler, testWorkerToken,
		`{"source_ip":"10.0.0.5","severity":"high","score":0.5,"description":"streamed"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	reader := bufio.NewReader(resp.Body)
	var eventLine, dataLine string
	for dataLine == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		switch {
		case strings.HasPrefix(line, "event: "):
			eventLine = strings.TrimSpace(strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			dataLine = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}

	assert.Equal(t, model.EventAnomalyCreated, eventLine)
	var event model.CreatedEvent
	require.NoError(t, json.Unmarshal([]byte(dataLine), &event))
	assert.Equal(t, "streamed", event.Anomaly.Description)

	cancel()
	assert.Eventually(t, func() bool { return f.hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}
