package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mesa-pos/mesa-backend/pkg/db/models"
	"github.com/mesa-pos/mesa-backend/pkg/enums"
)

// Repository defines persistence operations for order tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateLineItems(ctx context.Context, items []models.OrderLineItem) error
	AppendStatusHistory(ctx context.Context, entry *models.OrderStatusHistory) error
	FindByID(ctx context.Context, tenantID, orderID uuid.UUID) (*models.Order, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, filters OrderFilters) ([]models.Order, error)
	ListStatusHistory(ctx context.Context, tenantID, orderID uuid.UUID) ([]models.OrderStatusHistory, error)
	NextOrderNumber(ctx context.Context, tenantID uuid.UUID) (int64, error)
	UpdateStatusIfVersion(ctx context.Context, tenantID, orderID uuid.UUID, expectedVersion int64, updates map[string]any) (int64, error)
}

// OrderFilters narrows the tenant order listing.
type OrderFilters struct {
	Status *enums.OrderStatus
	Limit  int
}
