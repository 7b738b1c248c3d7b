package events

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/arvetta/berkas/internal/interfaces"
	"github.com/arvetta/berkas/internal/models"
)

// Service implements the topic-based progress event fabric. Sequence
// assignment and handler delivery happen under one per-topic lock, so each
// subscriber observes a strictly increasing, contiguous sequence per topic
// even with concurrent publishers. Handlers must not block; the notification
// layer enqueues onto bounded per-session queues.
type Service struct {
	topics map[string]*topicState
	mu     sync.RWMutex
	logger arbor.ILogger
	closed bool
}

type topicState struct {
	// mu serializes sequence assignment and delivery for this topic
	mu       sync.Mutex
	seq      uint64
	last     models.ProgressEvent
	hasLast  bool
	handlers map[int]interfaces.EventHandler
	nextID   int
}

var _ interfaces.EventService = (*Service)(nil)

// NewService creates a new event service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		topics: make(map[string]*topicState),
		logger: logger,
	}
}

func (s *Service) topic(name string) *topicState {
	t, ok := s.topics[name]
	if !ok {
		t = &topicState{handlers: make(map[int]interfaces.EventHandler)}
		s.topics[name] = t
	}
	return t
}

// Publish assigns the next sequence number for the event's topic and delivers
// the event to all topic subscribers in order.
func (s *Service) Publish(ctx context.Context, event models.ProgressEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	t := s.topic(event.Topic)
	s.mu.Unlock()

	// Numbering and hand-off stay under t.mu so a concurrent publisher
	// cannot deliver a later sequence before an earlier one.
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	event.Seq = t.seq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	t.last = event
	t.hasLast = true

	s.mu.RLock()
	handlers := make([]interfaces.EventHandler, 0, len(t.handlers))
	for _, h := range t.handlers {
		handlers = append(handlers, h)
	}
	s.mu.RUnlock()

	s.logger.Debug().
		Str("topic", event.Topic).
		Int64("seq", int64(event.Seq)).
		Str("phase", event.Phase).
		Int("subscriber_count", len(handlers)).
		Msg("Publishing progress event")

	for _, handler := range handlers {
		handler(event)
	}
}

// Subscribe registers a handler for a topic and returns its unsubscribe
// function. Events published before the subscription are not replayed; use
// Snapshot to resync.
func (s *Service) Subscribe(topic string, handler interfaces.EventHandler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.topic(topic)
	id := t.nextID
	t.nextID++
	t.handlers[id] = handler

	s.logger.Debug().
		Str("topic", topic).
		Int("subscriber_count", len(t.handlers)).
		Msg("Event handler subscribed")

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if t, ok := s.topics[topic]; ok {
			delete(t.handlers, id)
		}
	}
}

// Snapshot returns the last event published on a topic
func (s *Service) Snapshot(topic string) (models.ProgressEvent, bool) {
	s.mu.RLock()
	t, ok := s.topics[topic]
	s.mu.RUnlock()
	if !ok {
		return models.ProgressEvent{}, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.hasLast {
		return models.ProgressEvent{}, false
	}
	return t.last, true
}

// Close drops all subscriptions and rejects further publishes
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.topics = make(map[string]*topicState)
	s.logger.Info().Msg("Event service closed")
	return nil
}
