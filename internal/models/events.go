package models

import "time"

// Event types
const (
	EventTypeBudgetCreated     = "BUDGET_CREATED"
	EventTypeProposalSent      = "PROPOSAL_SENT"
	EventTypeProposalAccepted  = "PROPOSAL_ACCEPTED"
	EventTypeProposalRejected  = "PROPOSAL_REJECTED"
	EventTypeOrderInProduction = "ORDER_IN_PRODUCTION"
	EventTypeOrderDispatched   = "ORDER_DISPATCHED"
	EventTypeOrderCompleted    = "ORDER_COMPLETED"
	EventTypeOrderCancelled    = "ORDER_CANCELLED"
	EventTypeClientCreated     = "CLIENT_CREATED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderLifecycleEvent is published on every order status change and on
// budget creation. Status carries the new lifecycle position.
type OrderLifecycleEvent struct {
	BaseEvent
	OrderID    int64       `json:"order_id"`
	ClientID   int64       `json:"client_id"`
	ClientName string      `json:"client_name,omitempty"`
	Status     OrderStatus `json:"status"`
	TotalValue string      `json:"total_value"`
}

// ClientCreatedEvent is published when a new client is registered.
type ClientCreatedEvent struct {
	BaseEvent
	ClientID int64  `json:"client_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// EventTypeForStatus maps a lifecycle position to its notification event.
// Statuses without a notification hook return the empty string.
func EventTypeForStatus(s OrderStatus) string {
	switch s {
	case StatusQuote:
		return EventTypeBudgetCreated
	case StatusProposalSent:
		return EventTypeProposalSent
	case StatusAccepted:
		return EventTypeProposalAccepted
	case StatusRejected:
		return EventTypeProposalRejected
	case StatusInProduction:
		return EventTypeOrderInProduction
	case StatusDispatched:
		return EventTypeOrderDispatched
	case StatusCompleted:
		return EventTypeOrderCompleted
	case StatusCancelled:
		return EventTypeOrderCancelled
	default:
		return ""
	}
}
