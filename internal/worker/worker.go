package worker

import (
	"context"
	"log"

	"sales-service/internal/broker"
	"sales-service/internal/models"
	"sales-service/internal/notify"
)

// NotificationWorker consumes lifecycle events and forwards them to the
// webhook notifier. Delivery is at-most-once: the notifier swallows
// failures and messages are committed regardless.
type NotificationWorker struct {
	consumer   *broker.Consumer
	dispatcher *broker.EventDispatcher
	notifier   *notify.Notifier
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, notifier *notify.Notifier) *NotificationWorker {
	dispatcher := broker.NewEventDispatcher()

	w := &NotificationWorker{
		consumer:   consumer,
		dispatcher: dispatcher,
		notifier:   notifier,
	}

	dispatcher.OnOrderLifecycle(w.handleOrderLifecycle)
	dispatcher.OnClientCreated(w.handleClientCreated)

	return w
}

func (w *NotificationWorker) handleOrderLifecycle(ctx context.Context, event *models.OrderLifecycleEvent) error {
	w.notifier.Dispatch(ctx, event.EventType, map[string]interface{}{
		"order_id":    event.OrderID,
		"client_id":   event.ClientID,
		"client_name": event.ClientName,
		"status":      event.Status.String(),
		"total_value": event.TotalValue,
	})
	return nil
}

func (w *NotificationWorker) handleClientCreated(ctx context.Context, event *models.ClientCreatedEvent) error {
	w.notifier.Dispatch(ctx, event.EventType, map[string]interface{}{
		"client_id": event.ClientID,
		"name":      event.Name,
		"email":     event.Email,
		"phone":     event.Phone,
	})
	return nil
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	log.Println("Starting notification worker...")
	return w.consumer.StartConsuming(ctx, w.dispatcher.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	log.Println("Stopping notification worker...")
	return w.consumer.Close()
}
