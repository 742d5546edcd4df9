package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mesa-pos/mesa-backend/pkg/types"
)

// OrderLineItem is one ordered item with a price snapshot taken at commit
// time. UnitPriceCents is never re-read from the catalog after creation.
type OrderLineItem struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	CatalogRef     string            `gorm:"column:catalog_ref;not null"`
	Name           string            `gorm:"column:name;not null"`
	Quantity       int               `gorm:"column:quantity;not null"`
	UnitPriceCents int64             `gorm:"column:unit_price_cents;not null"`
	Modifiers      types.StringSlice `gorm:"column:modifiers;type:jsonb;serializer:json"`
	TotalCents     int64             `gorm:"column:total_cents;not null"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
}
