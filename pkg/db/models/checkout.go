package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mesa-pos/mesa-backend/pkg/enums"
)

// Checkout is one in-flight terminal payment attempt for an order. At most
// one row per order may be in an active (pending/in_progress) status.
type Checkout struct {
	ID                 uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProviderCheckoutID string               `gorm:"column:provider_checkout_id;not null;index"`
	OrderID            uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index"`
	TenantID           uuid.UUID            `gorm:"column:tenant_id;type:uuid;not null;index"`
	DeviceID           string               `gorm:"column:device_id;not null"`
	AmountCents        int64                `gorm:"column:amount_cents;not null"`
	Currency           enums.Currency       `gorm:"column:currency;type:text;not null;default:'USD'"`
	Status             enums.CheckoutStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	CompletedAt        *time.Time           `gorm:"column:completed_at"`
	CanceledAt         *time.Time           `gorm:"column:canceled_at"`
	CreatedAt          time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
