// Package bridgeevents is a small generic, typed publish/subscribe bus
// used for bridge lifecycle notifications (worker connected, worker
// disconnected, worker error, bridge reconfigured). It exists so an
// external REST layer can observe state changes without polling the
// Supervisor, the same role events.Subject plays for MCP lifecycle
// events in the upstream project this bridge's plumbing is modeled on.
package bridgeevents

import (
	"context"
	"log/slog"
	"sync"
)

// Handler processes one published event of type T.
type Handler[T any] func(ctx context.Context, event T) error

// Subscription is returned by Subscribe; call Unsubscribe to stop
// receiving events on that topic.
type Subscription struct {
	unsubscribe func()
}

// Unsubscribe removes the subscription. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s != nil && s.unsubscribe != nil {
		s.unsubscribe()
	}
}

type subscriber struct {
	id      int
	deliver func(ctx context.Context, payload any) error
}

// Subject is the event bus itself: a topic-keyed set of subscribers. The
// zero value is not usable; construct with NewSubject.
type Subject struct {
	mu        sync.RWMutex
	subs      map[string][]subscriber
	nextID    int
	logger    *slog.Logger
	completed bool
}

// Option configures a Subject.
type Option func(*Subject)

// WithLogger sets the logger used to report handler errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Subject) { s.logger = logger }
}

// NewSubject constructs an empty Subject.
func NewSubject(opts ...Option) *Subject {
	s := &Subject{subs: make(map[string][]subscriber)}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Subscribe registers handler for events of type T published on topic.
// Type mismatches between Publish[T] and Subscribe[U] on the same topic
// are silently ignored for that subscriber — topics are not type-checked
// across calls, matching the flexibility of the upstream event bus this
// is modeled on.
func Subscribe[T any](s *Subject, topicName string, handler Handler[T]) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++

	sub := subscriber{
		id: id,
		deliver: func(ctx context.Context, payload any) error {
			event, ok := payload.(T)
			if !ok {
				return nil
			}
			return handler(ctx, event)
		},
	}
	s.subs[topicName] = append(s.subs[topicName], sub)

	return &Subscription{unsubscribe: func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		subs := s.subs[topicName]
		for i, sb := range subs {
			if sb.id == id {
				s.subs[topicName] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}}
}

// Publish delivers event to every subscriber of topicName whose handler
// was registered for type T. Handlers run synchronously, in registration
// order; a handler error is logged and does not stop delivery to the
// remaining subscribers.
func Publish[T any](s *Subject, topicName string, event T) error {
	s.mu.RLock()
	if s.completed {
		s.mu.RUnlock()
		return nil
	}
	subs := append([]subscriber(nil), s.subs[topicName]...)
	s.mu.RUnlock()

	ctx := context.Background()
	for _, sub := range subs {
		if err := sub.deliver(ctx, event); err != nil {
			s.logger.Warn("bridgeevents: handler error", "topic", topicName, "error", err)
		}
	}
	return nil
}

// Complete marks the subject as done; further Publish calls become no-ops.
// Existing subscriptions are left registered but will never fire again.
func Complete(s *Subject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = true
}
