package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Anomaly is a persisted, validated anomaly record. Optional columns are
// pointers and render as null when unset.
type Anomaly struct {
	ID            int64      `json:"id"`
	SourceIP      string     `json:"source_ip"`
	DestinationIP *string    `json:"destination_ip"`
	Protocol      *string    `json:"protocol"`
	Severity      Severity   `json:"severity"`
	Score         float64    `json:"score"`
	Description   string     `json:"description"`
	RawPayload    *string    `json:"raw_payload"`
	DetectedAt    *time.Time `json:"detected_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// MaxProtocolLength is the storage limit of the protocol column.
const MaxProtocolLength = 16

// CreateAnomalyRequest is a candidate anomaly submitted by a trusted worker.
// Fields other than these are ignored.
type CreateAnomalyRequest struct {
	SourceIP      string `json:"source_ip"`
	DestinationIP string `json:"destination_ip,omitempty"`
	Protocol      string `json:"protocol,omitempty"`
	Severity      string `json:"severity"`
	Score         *Score `json:"score"`
	Description   string `json:"description"`
	RawPayload    string `json:"raw_payload,omitempty"`
	DetectedAt    string `json:"detected_at,omitempty"`
}

// DecodeCreateAnomalyRequest accepts both the flat body and the form nested
// under an "anomaly" key that queue workers send.
func DecodeCreateAnomalyRequest(body []byte) (*CreateAnomalyRequest, error) {
	var envelope struct {
		Anomaly json.RawMessage `json:"anomaly"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}

	target := body
	if len(envelope.Anomaly) > 0 && string(envelope.Anomaly) != "null" {
		target = envelope.Anomaly
	}

	var req CreateAnomalyRequest
	if err := json.Unmarshal(target, &req); err != nil {
		return nil, fmt.Errorf("invalid anomaly fields: %w", err)
	}
	return &req, nil
}

// ParseDetectedAt parses an RFC 3339 timestamp. Blank input yields nil.
func ParseDetectedAt(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

// ToAnomaly converts a request that already passed validation into an
// unsaved Anomaly. Blank optional strings become nil.
func (r *CreateAnomalyRequest) ToAnomaly() (*Anomaly, error) {
	detectedAt, err := ParseDetectedAt(r.DetectedAt)
	if err != nil {
		return nil, fmt.Errorf("detected_at: %w", err)
	}
	return &Anomaly{
		SourceIP:      strings.TrimSpace(r.SourceIP),
		DestinationIP: optional(r.DestinationIP),
		Protocol:      optional(r.Protocol),
		Severity:      Severity(r.Severity),
		Score:         r.Score.Value(),
		Description:   r.Description,
		RawPayload:    optionalRaw(r.RawPayload),
		DetectedAt:    detectedAt,
	}, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// raw payloads keep their whitespace.
func optionalRaw(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// CreatedResponse is the body of a successful create.
type CreatedResponse struct {
	Status string `json:"status"`
	ID     int64  `json:"id"`
}

// ErrorResponse is the body of a rejected create.
type ErrorResponse struct {
	Status string   `json:"status"`
	Errors []string `json:"errors"`
}

// Stats summarises stored anomalies for dashboards.
type Stats struct {
	Total      int64              `json:"total"`
	Critical   int64              `json:"critical"`
	BySeverity map[Severity]int64 `json:"by_severity"`
}
