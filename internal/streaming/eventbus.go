package streaming

import (
	"context"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"beacon/pkg/logger"
)

// EventBus fans events out to NATS and to in-process subscribers
type EventBus struct {
	nats   *NATSPublisher
	origin string
	logger *logger.Logger

	mu          sync.RWMutex
	subscribers map[string]*subscriber
	nextID      int
}

type subscriber struct {
	ch  chan *Event
	sub *Subscription
}

// NewEventBus creates a new event bus. nats may be nil.
func NewEventBus(nats *NATSPublisher, log *logger.Logger) *EventBus {
	return &EventBus{
		nats:        nats,
		origin:      uuid.NewString(),
		logger:      log.WithComponent("event-bus"),
		subscribers: make(map[string]*subscriber),
	}
}

// Publish sends an event to NATS when connected and to all local subscribers.
// A NATS failure is logged and the local broadcast still happens.
func (eb *EventBus) Publish(ctx context.Context, event *Event) error {
	if event.Origin == "" {
		event.Origin = eb.origin
	}
	if eb.nats != nil && eb.nats.IsConnected() {
		if err := eb.nats.PublishEvent(ctx, event); err != nil {
			eb.logger.Warn().Err(err).Msg("failed to publish to NATS, using local broadcast only")
		}
	}

	eb.deliver(event)
	return nil
}

// ListenRemote hands events published by other instances to the local
// subscribers until ctx is done. Without NATS it returns immediately.
func (eb *EventBus) ListenRemote(ctx context.Context) error {
	if eb.nats == nil {
		return nil
	}
	events, err := eb.nats.Subscribe(ctx, nil)
	if err != nil {
		return err
	}
	eb.logger.Info().Msg("listening for events from other instances")
	eb.consumeRemote(events)
	return nil
}

func (eb *EventBus) consumeRemote(events <-chan *Event) {
	for event := range events {
		if event.Origin == eb.origin {
			continue
		}
		eb.deliver(event)
	}
}

func (eb *EventBus) deliver(event *Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for id, s := range eb.subscribers {
		if s.sub != nil && !s.sub.Matches(event) {
			continue
		}
		select {
		case s.ch <- event:
		default:
			eb.logger.Debug().Str("subscriber", id).Msg("subscriber channel full, dropping event")
		}
	}
}

// Subscribe registers a local subscriber and returns its channel and an
// unsubscribe function
func (eb *EventBus) Subscribe(sub *Subscription) (<-chan *Event, func()) {
	eb.mu.Lock()
	eb.nextID++
	id := strconv.Itoa(eb.nextID)
	ch := make(chan *Event, 100)
	eb.subscribers[id] = &subscriber{ch: ch, sub: sub}
	eb.mu.Unlock()

	eb.logger.Debug().Str("subscriber_id", id).Msg("new subscriber")

	unsubscribe := func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		if _, ok := eb.subscribers[id]; ok {
			close(ch)
			delete(eb.subscribers, id)
			eb.logger.Debug().Str("subscriber_id", id).Msg("subscriber removed")
		}
	}

	return ch, unsubscribe
}

// SubscriberCount returns the number of active subscribers
func (eb *EventBus) SubscriberCount() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}

// Close closes every subscriber channel and the NATS connection
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for id, s := range eb.subscribers {
		close(s.ch)
		delete(eb.subscribers, id)
	}

	if eb.nats != nil {
		eb.nats.Close()
	}
}
