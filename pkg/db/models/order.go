package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mesa-pos/mesa-backend/pkg/enums"
)

// Order is the aggregate root for one guest order. Status only moves through
// validated state-machine transitions; Version implements the optimistic
// concurrency check those transitions rely on.
type Order struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID          uuid.UUID          `gorm:"column:tenant_id;type:uuid;not null;index"`
	OrderNumber       int64              `gorm:"column:order_number;not null"`
	Channel           enums.OrderChannel `gorm:"column:channel;type:text;not null"`
	Status            enums.OrderStatus  `gorm:"column:status;type:text;not null;default:'new'"`
	Currency          enums.Currency     `gorm:"column:currency;type:text;not null;default:'USD'"`
	TableRef          *string            `gorm:"column:table_ref"`
	SubtotalCents     int64              `gorm:"column:subtotal_cents;not null"`
	TaxCents          int64              `gorm:"column:tax_cents;not null;default:0"`
	TipCents          int64              `gorm:"column:tip_cents;not null;default:0"`
	TotalCents        int64              `gorm:"column:total_cents;not null"`
	PaymentRef        *string            `gorm:"column:payment_ref"`
	Version           int64              `gorm:"column:version;not null;default:1"`
	Items             []OrderLineItem    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	StatusHistory     []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	LastTransitionedAt *time.Time        `gorm:"column:last_transitioned_at"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
