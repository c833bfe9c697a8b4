package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCreateAnomalyRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantIP  string
		wantErr bool
	}{
		{
			name:   "flat body",
			body:   `{"source_ip":"10.0.0.5","severity":"critical","score":0.93,"description":"port scan"}`,
			wantIP: "10.0.0.5",
		},
		{
			name:   "nested under anomaly",
			body:   `{"anomaly":{"source_ip":"10.0.0.6","severity":"low","score":0.1,"description":"x"}}`,
			wantIP: "10.0.0.6",
		},
		{
			name:   "unknown fields ignored",
			body:   `{"source_ip":"10.0.0.7","id":99,"created_at":"2020-01-01T00:00:00Z","admin":true}`,
			wantIP: "10.0.0.7",
		},
		{
			name:   "null anomaly key falls back to flat",
			body:   `{"anomaly":null,"source_ip":"10.0.0.8"}`,
			wantIP: "10.0.0.8",
		},
		{name: "not JSON", body: `source_ip=1`, wantErr: true},
		{name: "array", body: `[1,2]`, wantErr: true},
		{name: "wrong field type", body: `{"source_ip":123}`, wantErr: true},
		{name: "anomaly not an object", body: `{"anomaly":"x"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := DecodeCreateAnomalyRequest([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantIP, req.SourceIP)
		})
	}
}

func TestParseDetectedAt(t *testing.T) {
	ts, err := ParseDetectedAt("2026-03-01T12:30:00+02:00")
	require.NoError(t, err)
	require.NotNil(t, ts)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC), *ts)

	ts, err = ParseDetectedAt("  ")
	require.NoError(t, err)
	assert.Nil(t, ts)

	_, err = ParseDetectedAt("yesterday")
	assert.Error(t, err)
}

func TestCreateAnomalyRequest_ToAnomaly(t *testing.T) {
	req := &CreateAnomalyRequest{
		SourceIP:      " 10.0.0.5 ",
		DestinationIP: "",
		Protocol:      "tcp",
		Severity:      "critical",
		Score:         NewScore(0.93),
		Description:   "port scan",
		RawPayload:    "  raw bytes  ",
		DetectedAt:    "2026-03-01T10:30:00Z",
	}

	a, err := req.ToAnomaly()
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", a.SourceIP)
	assert.Nil(t, a.DestinationIP)
	require.NotNil(t, a.Protocol)
	assert.Equal(t, "tcp", *a.Protocol)
	assert.Equal(t, SeverityCritical, a.Severity)
	assert.InDelta(t, 0.93, a.Score, 1e-12)
	require.NotNil(t, a.RawPayload)
	assert.Equal(t, "  raw bytes  ", *a.RawPayload)
	require.NotNil(t, a.DetectedAt)
	assert.Zero(t, a.ID)
}

func TestAnomaly_JSONShape(t *testing.T) {
	a := &Anomaly{ID: 3, SourceIP: "10.0.0.5", Severity: SeverityHigh, Score: 0.5, Description: "d"}
	b, err := json.Marshal(a)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))
	for _, key := range []string{"id", "source_ip", "destination_ip", "protocol", "severity", "score",
		"description", "raw_payload", "detected_at", "created_at", "updated_at"} {
		assert.Contains(t, m, key)
	}
	assert.Nil(t, m["destination_ip"])
}

func TestNewCreatedEvent(t *testing.T) {
	a := &Anomaly{ID: 1}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.FixedZone("x", 3600))
	ev := NewCreatedEvent(a, now)
	assert.Equal(t, EventAnomalyCreated, ev.Type)
	assert.Same(t, a, ev.Anomaly)
	assert.Equal(t, time.UTC, ev.PublishedAt.Location())
}
