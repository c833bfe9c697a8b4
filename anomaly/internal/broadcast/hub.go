package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/telhawk-systems/anomaly-stack/anomaly/internal/metrics"
	"github.com/telhawk-systems/anomaly-stack/anomaly/pkg/model"
	"github.com/telhawk-systems/anomaly-stack/common/logging"
	"github.com/telhawk-systems/anomaly-stack/common/messaging"
)

// ErrHubStopped is returned by Attach after Stop.
var ErrHubStopped = errors.New("broadcast hub stopped")

// Hub relays anomaly.created events from the fan-out channel to in-process
// observers (SSE streams). Observers only see events published while they
// are attached. An observer whose buffer is full is detached and its
// channel closed, so the events it did receive are always in order.
type Hub struct {
	sub     messaging.Subscriber
	subject string
	buffer  int
	logger  *logging.Logger

	mu        sync.Mutex
	observers map[uint64]*Observer
	nextID    uint64
	active    messaging.Subscription
	stopped   bool
}

// Observer receives raw event JSON.
type Observer struct {
	id     uint64
	hub    *Hub
	events chan []byte
	closed bool
}

// NewHub creates a hub. buffer is the per-observer backlog.
func NewHub(sub messaging.Subscriber, subject string, buffer int, logger *logging.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Hub{
		sub:       sub,
		subject:   subject,
		buffer:    buffer,
		logger:    logger.Component("broadcast"),
		observers: make(map[uint64]*Observer),
	}
}

// Start subscribes to the fan-out subject.
func (h *Hub) Start() error {
	s, err := h.sub.Subscribe(h.subject, h.handle)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.active = s
	h.mu.Unlock()

	h.logger.Info("subscribed to fan-out channel", logging.Subject(h.subject))
	return nil
}

// Stop unsubscribes and closes every observer.
func (h *Hub) Stop() error {
	h.mu.Lock()
	s := h.active
	h.active = nil
	h.stopped = true
	for _, o := range h.observers {
		h.detachLocked(o)
	}
	h.mu.Unlock()

	if s != nil {
		return s.Unsubscribe()
	}
	return nil
}

// Attach registers a new observer.
func (h *Hub) Attach() (*Observer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return nil, ErrHubStopped
	}

	h.nextID++
	o := &Observer{id: h.nextID, hub: h, events: make(chan []byte, h.buffer)}
	h.observers[o.id] = o
	metrics.Observers.Set(float64(len(h.observers)))
	return o, nil
}

// Count returns the number of attached observers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

func (h *Hub) handle(_ context.Context, msg *messaging.Message) error {
	var event model.CreatedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil || event.Type != model.EventAnomalyCreated {
		h.logger.Warn("dropping unrecognised fan-out message", logging.Subject(msg.Subject), logging.Error(err))
		return nil
	}
	h.deliver(msg.Data)
	return nil
}

func (h *Hub) deliver(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, o := range h.observers {
		select {
		case o.events <- data:
		default:
			h.detachLocked(o)
			metrics.ObserversEvicted.Inc()
			h.logger.Warn("observer fell behind, disconnecting", "observer", o.id)
		}
	}
}

func (h *Hub) detachLocked(o *Observer) {
	if o.closed {
		return
	}
	o.closed = true
	close(o.events)
	delete(h.observers, o.id)
	metrics.Observers.Set(float64(len(h.observers)))
}

// Events yields raw anomaly.created JSON. It is closed when the observer is
// detached.
func (o *Observer) Events() <-chan []byte {
	return o.events
}

// Close detaches the observer. It is safe to call more than once.
func (o *Observer) Close() {
	o.hub.mu.Lock()
	defer o.hub.mu.Unlock()
	o.hub.detachLocked(o)
}
