package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PaymentAudit is the immutable record written when a checkout completes,
// in the same transaction as the order transition it funds.
type PaymentAudit struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CheckoutID  uuid.UUID       `gorm:"column:checkout_id;type:uuid;not null;index"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	TenantID    uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null;index"`
	Provider    string          `gorm:"column:provider;not null"`
	ProviderRef string          `gorm:"column:provider_ref;not null"`
	AmountCents int64           `gorm:"column:amount_cents;not null"`
	RawResponse json.RawMessage `gorm:"column:raw_response;type:jsonb"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}
