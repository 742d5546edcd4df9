package orders

import (
	"github.com/google/uuid"

	"github.com/mesa-pos/mesa-backend/pkg/enums"
)

// LineItemInput is one requested item with its client-visible price snapshot.
type LineItemInput struct {
	CatalogRef     string
	Name           string
	Quantity       int
	UnitPriceCents int64
	Modifiers      []string
}

// CreateOrderInput carries everything needed to commit a new order.
// ClientTotalCents is advisory; the server recomputes and compares.
type CreateOrderInput struct {
	TenantID         uuid.UUID
	Channel          enums.OrderChannel
	TableRef         *string
	TipCents         int64
	Items            []LineItemInput
	ClientTotalCents *int64
	ActorUserID      *uuid.UUID
	ActorRole        string
}

// TransitionInput captures one requested lifecycle move.
type TransitionInput struct {
	TenantID     uuid.UUID
	OrderID      uuid.UUID
	TargetStatus enums.OrderStatus
	ActorChannel enums.OrderChannel
	ActorUserID  *uuid.UUID
	ActorRole    string
	Note         *string
	PaymentRef   *string
}

// Totals is the server-side money computation for an order.
type Totals struct {
	SubtotalCents int64
	TaxCents      int64
	TipCents      int64
	TotalCents    int64
}
