package checkout

import "github.com/google/uuid"

// CreateInput starts a terminal checkout for an order. AmountCents is an
// optional advisory amount; when set it must match the order total on
// record, and the device is always charged the stored total.
type CreateInput struct {
	TenantID    uuid.UUID
	OrderID     uuid.UUID
	DeviceID    string
	AmountCents *int64
	ActorUserID *uuid.UUID
	ActorRole   string
}

// CancelInput aborts an active checkout. The order is left untouched.
type CancelInput struct {
	TenantID   uuid.UUID
	CheckoutID uuid.UUID
	Reason     string
}
