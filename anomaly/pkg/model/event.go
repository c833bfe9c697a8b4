package model

import "time"

// EventAnomalyCreated is the type of the fan-out message for a new record.
const EventAnomalyCreated = "anomaly.created"

// CreatedEvent is the rendered form of a newly persisted anomaly pushed to
// live observers.
type CreatedEvent struct {
	Type        string    `json:"type"`
	Anomaly     *Anomaly  `json:"anomaly"`
	PublishedAt time.Time `json:"published_at"`
}

// NewCreatedEvent wraps a persisted anomaly for fan-out.
func NewCreatedEvent(a *Anomaly, now time.Time) *CreatedEvent {
	return &CreatedEvent{
		Type:        EventAnomalyCreated,
		Anomaly:     a,
		PublishedAt: now.UTC(),
	}
}
