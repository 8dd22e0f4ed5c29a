package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/segmentio/kafka-go"

	"sales-service/internal/models"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderLifecycle publishes a lifecycle event for an order or budget.
func (ep *EventPublisher) PublishOrderLifecycle(ctx context.Context, event *models.OrderLifecycleEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishClientCreated publishes a ClientCreated event.
func (ep *EventPublisher) PublishClientCreated(ctx context.Context, event *models.ClientCreatedEvent) error {
	key := fmt.Sprintf("client-%d", event.ClientID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventDispatcher routes consumed events to registered hooks.
type EventDispatcher struct {
	onOrderLifecycle func(context.Context, *models.OrderLifecycleEvent) error
	onClientCreated  func(context.Context, *models.ClientCreatedEvent) error
}

// NewEventDispatcher creates a new event dispatcher
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{}
}

// OnOrderLifecycle registers a hook for order lifecycle events.
func (ed *EventDispatcher) OnOrderLifecycle(hook func(context.Context, *models.OrderLifecycleEvent) error) {
	ed.onOrderLifecycle = hook
}

// OnClientCreated registers a hook for ClientCreated events.
func (ed *EventDispatcher) OnClientCreated(hook func(context.Context, *models.ClientCreatedEvent) error) {
	ed.onClientCreated = hook
}

// HandleMessage routes messages to the appropriate hook.
func (ed *EventDispatcher) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeClientCreated:
		if ed.onClientCreated != nil {
			var event models.ClientCreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ClientCreated event: %w", err)
			}
			return ed.onClientCreated(ctx, &event)
		}

	case models.EventTypeBudgetCreated,
		models.EventTypeProposalSent,
		models.EventTypeProposalAccepted,
		models.EventTypeProposalRejected,
		models.EventTypeOrderInProduction,
		models.EventTypeOrderDispatched,
		models.EventTypeOrderCompleted,
		models.EventTypeOrderCancelled:
		if ed.onOrderLifecycle != nil {
			var event models.OrderLifecycleEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal lifecycle event: %w", err)
			}
			return ed.onOrderLifecycle(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
