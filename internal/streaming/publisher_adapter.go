package streaming

import (
	"context"

	"beacon/internal/domain/models"
)

// EventBusPublisher implements the complaint and SOS publishers of the
// services package on top of the EventBus
type EventBusPublisher struct {
	eventBus *EventBus
}

// NewEventBusPublisher creates a new publisher adapter
func NewEventBusPublisher(eventBus *EventBus) *EventBusPublisher {
	return &EventBusPublisher{eventBus: eventBus}
}

// PublishComplaint announces a stored complaint
func (p *EventBusPublisher) PublishComplaint(ctx context.Context, c *models.Complaint) error {
	return p.eventBus.Publish(ctx, NewComplaintEvent(c))
}

// PublishSOS announces a triggered SOS alert
func (p *EventBusPublisher) PublishSOS(ctx context.Context, alert *models.SOSAlert) error {
	return p.eventBus.Publish(ctx, NewSOSEvent(alert))
}

// ForwardToHub pushes every bus event to the WebSocket hub until the bus is
// closed or ctx is done
func ForwardToHub(ctx context.Context, bus *EventBus, hub *WebSocketHub) {
	events, unsubscribe := bus.Subscribe(nil)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			hub.BroadcastEvent(event)
		}
	}
}
