package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mesa-pos/mesa-backend/pkg/enums"
)

// OrderStatusHistory is an append-only audit record of one transition. Rows
// are never updated or deleted.
type OrderStatusHistory struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	TenantID       uuid.UUID          `gorm:"column:tenant_id;type:uuid;not null;index"`
	PreviousStatus *enums.OrderStatus `gorm:"column:previous_status;type:text"`
	NewStatus      enums.OrderStatus  `gorm:"column:new_status;type:text;not null"`
	ActorChannel   enums.OrderChannel `gorm:"column:actor_channel;type:text;not null"`
	ActorUserID    *uuid.UUID         `gorm:"column:actor_user_id;type:uuid"`
	Note           *string            `gorm:"column:note"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (OrderStatusHistory) TableName() string {
	return "order_status_history"
}
