package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultContentType is recorded when a producer does not declare one.
const DefaultContentType = "application/octet-stream"

// Field names of an envelope inside a queue entry.
const (
	FieldIP          = "ip"
	FieldReceivedAt  = "rcv_at"
	FieldContentType = "content_type"
	FieldPayload     = "payload"
)

// ErrEmptyPayload is returned when an envelope would carry no bytes.
var ErrEmptyPayload = errors.New("payload is empty")

// Envelope is a raw ingested payload plus receipt metadata, as stored in the
// queue. The payload is never empty and is never modified after creation.
type Envelope struct {
	IP          string
	ReceivedAt  time.Time
	ContentType string
	payload     []byte
}

// NewEnvelope copies payload into a new Envelope. An empty content type
// becomes DefaultContentType.
func NewEnvelope(ip string, receivedAt time.Time, contentType string, payload []byte) (*Envelope, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	if strings.TrimSpace(contentType) == "" {
		contentType = DefaultContentType
	}
	p := make([]byte, len(payload))
	copy(p, payload)
	return &Envelope{
		IP:          ip,
		ReceivedAt:  receivedAt.UTC(),
		ContentType: contentType,
		payload:     p,
	}, nil
}

// Payload returns a copy of the payload bytes.
func (e *Envelope) Payload() []byte {
	p := make([]byte, len(e.payload))
	copy(p, e.payload)
	return p
}

// Len returns the payload size in bytes.
func (e *Envelope) Len() int {
	return len(e.payload)
}

// Fields returns the queue entry fields as alternating key/value pairs in a
// stable order.
func (e *Envelope) Fields() []interface{} {
	return []interface{}{
		FieldIP, e.IP,
		FieldReceivedAt, FormatReceivedAt(e.ReceivedAt),
		FieldContentType, e.ContentType,
		FieldPayload, e.payload,
	}
}

// FormatReceivedAt renders t as fractional seconds since the epoch with
// microsecond precision, e.g. "1718000000.123456".
func FormatReceivedAt(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/int(time.Microsecond))
}

// ParseReceivedAt parses fractional epoch seconds of any precision.
func ParseReceivedAt(s string) (time.Time, error) {
	intPart, fracPart, _ := strings.Cut(strings.TrimSpace(s), ".")
	sec, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid receipt timestamp %q: %w", s, err)
	}

	var nsec int64
	if fracPart != "" {
		if len(fracPart) > 9 {
			fracPart = fracPart[:9]
		}
		fracPart += strings.Repeat("0", 9-len(fracPart))
		nsec, err = strconv.ParseInt(fracPart, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid receipt timestamp %q: %w", s, err)
		}
	}
	return time.Unix(sec, nsec).UTC(), nil
}

// ParseEnvelope decodes the fields of a queue entry. Values may be strings
// or byte slices, as returned by the queue backends.
func ParseEnvelope(values map[string]interface{}) (*Envelope, error) {
	get := func(key string) (string, bool) {
		switch v := values[key].(type) {
		case string:
			return v, true
		case []byte:
			return string(v), true
		default:
			return "", false
		}
	}

	payload, ok := get(FieldPayload)
	if !ok {
		return nil, fmt.Errorf("queue entry has no %s field", FieldPayload)
	}
	rcvAt, ok := get(FieldReceivedAt)
	if !ok {
		return nil, fmt.Errorf("queue entry has no %s field", FieldReceivedAt)
	}
	receivedAt, err := ParseReceivedAt(rcvAt)
	if err != nil {
		return nil, err
	}
	ip, _ := get(FieldIP)
	contentType, _ := get(FieldContentType)

	return NewEnvelope(ip, receivedAt, contentType, []byte(payload))
}
