package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/mesa-pos/mesa-backend/pkg/enums"
)

// OrderCreatedEvent signals that a new order entered the lifecycle.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID          `json:"order_id"`
	OrderNumber string             `json:"order_number"`
	Channel     enums.OrderChannel `json:"channel"`
	Status      enums.OrderStatus  `json:"status"`
	TableRef    *string            `json:"table_ref,omitempty"`
	TotalCents  int64              `json:"total_cents"`
	ItemCount   int                `json:"item_count"`
	CreatedAt   time.Time          `json:"created_at"`
}

// OrderStatusChangedEvent is emitted on every accepted lifecycle transition.
type OrderStatusChangedEvent struct {
	OrderID        uuid.UUID          `json:"order_id"`
	OrderNumber    string             `json:"order_number"`
	PreviousStatus enums.OrderStatus  `json:"previous_status"`
	NewStatus      enums.OrderStatus  `json:"new_status"`
	ActorChannel   enums.OrderChannel `json:"actor_channel"`
	Note           string             `json:"note,omitempty"`
	TransitionedAt time.Time          `json:"transitioned_at"`
}

// CheckoutStatusChangedEvent reports payment terminal checkout progress.
type CheckoutStatusChangedEvent struct {
	CheckoutID  uuid.UUID            `json:"checkout_id"`
	OrderID     uuid.UUID            `json:"order_id"`
	Status      enums.CheckoutStatus `json:"status"`
	AmountCents int64                `json:"amount_cents"`
	DeviceID    string               `json:"device_id"`
	ChangedAt   time.Time            `json:"changed_at"`
}
