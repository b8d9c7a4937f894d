// Package progress broadcasts pipeline progress to subscribers. Each run
// gets its own broadcaster keyed by run ID; subscribers receive events over
// buffered channels. Non-critical events are dropped when a subscriber lags,
// critical ones (complete, error) get a short delivery grace period.
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventType classifies a progress event.
type EventType string

const (
	// EventTypeStage marks entry into a pipeline stage.
	EventTypeStage EventType = "stage"
	// EventTypeFile reports per-file status.
	EventTypeFile EventType = "file"
	// EventTypeTransactions reports how many transactions a file yielded.
	EventTypeTransactions EventType = "transactions"
	// EventTypeComplete marks the end of a run.
	EventTypeComplete EventType = "complete"
	// EventTypeError reports a run-level failure.
	EventTypeError EventType = "error"
)

// Event is one progress notification.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// StageEvent announces a pipeline stage.
type StageEvent struct {
	Stage string `json:"stage"`
	Step  int    `json:"step"`
	Total int    `json:"total"`
}

// FileEvent reports one file's status as it moves through the pipeline.
type FileEvent struct {
	Path   string `json:"path"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// TransactionsEvent reports extraction counts for a file.
type TransactionsEvent struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// criticalGrace is how long delivery of a complete or error event is
// retried before giving up on a stuck subscriber.
const criticalGrace = 100 * time.Millisecond

// Subscriber receives a run's events.
type Subscriber struct {
	Events chan Event
}

// NewSubscriber creates a subscriber with a small event buffer.
func NewSubscriber() *Subscriber {
	return &Subscriber{Events: make(chan Event, 16)}
}

// broadcaster fans one run's events out to its subscribers.
type broadcaster struct {
	mu      sync.RWMutex
	subs    map[*Subscriber]bool
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
	once    sync.Once
	logger  zerolog.Logger
}

func newBroadcaster(ctx context.Context, logger zerolog.Logger) *broadcaster {
	ctx, cancel := context.WithCancel(ctx)
	return &broadcaster{
		subs:   make(map[*Subscriber]bool),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

func (b *broadcaster) register(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[sub] = true
}

func (b *broadcaster) unregister(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		if !b.stopped {
			close(sub.Events)
		}
	}
}

func (b *broadcaster) count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *broadcaster) broadcast(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stopped {
		return
	}

	critical := event.Type == EventTypeComplete || event.Type == EventTypeError
	for sub := range b.subs {
		if critical {
			select {
			case sub.Events <- event:
			case <-time.After(criticalGrace):
				b.logger.Error().
					Str("event", string(event.Type)).
					Msg("subscriber stuck, critical event dropped")
			}
			continue
		}

		select {
		case sub.Events <- event:
		default:
			b.logger.Debug().
				Str("event", string(event.Type)).
				Msg("subscriber buffer full, event dropped")
		}
	}
}

func (b *broadcaster) stop() {
	b.once.Do(func() {
		b.mu.Lock()
		b.stopped = true
		for sub := range b.subs {
			close(sub.Events)
			delete(b.subs, sub)
		}
		b.mu.Unlock()
		b.cancel()
	})
}

// Hub manages broadcasters for concurrent runs.
type Hub struct {
	mu     sync.RWMutex
	runs   map[string]*broadcaster
	logger zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		runs:   make(map[string]*broadcaster),
		logger: logger,
	}
}

// Subscribe attaches a new subscriber to a run, creating the run's
// broadcaster on first use.
func (h *Hub) Subscribe(ctx context.Context, runID string) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok := h.runs[runID]
	if !ok {
		b = newBroadcaster(ctx, h.logger)
		h.runs[runID] = b
	}

	sub := NewSubscriber()
	b.register(sub)
	return sub
}

// Unsubscribe detaches a subscriber; the last one out tears the run's
// broadcaster down.
func (h *Hub) Unsubscribe(runID string, sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok := h.runs[runID]
	if !ok {
		return
	}
	b.unregister(sub)

	if b.count() == 0 {
		b.stop()
		delete(h.runs, runID)
	}
}

// Publish sends an event to a run's subscribers. Publishing to a run with
// no subscribers is a no-op, so the pipeline never pays for unobserved
// progress.
func (h *Hub) Publish(runID string, eventType EventType, data interface{}) {
	h.mu.RLock()
	b, ok := h.runs[runID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	b.broadcast(Event{Type: eventType, Timestamp: time.Now(), Data: data})
}

// Close tears down a run's broadcaster, closing subscriber channels.
func (h *Hub) Close(runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if b, ok := h.runs[runID]; ok {
		b.stop()
		delete(h.runs, runID)
	}
}

// Active reports whether a run has a live broadcaster.
func (h *Hub) Active(runID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.runs[runID]
	return ok
}
