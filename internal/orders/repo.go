package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mesa-pos/mesa-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) CreateLineItems(ctx context.Context, items []models.OrderLineItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) AppendStatusHistory(ctx context.Context, entry *models.OrderStatusHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindByID(ctx context.Context, tenantID, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ? AND tenant_id = ?", orderID, tenantID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByTenant(ctx context.Context, tenantID uuid.UUID, filters OrderFilters) ([]models.Order, error) {
	limit := filters.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("tenant_id = ?", tenantID)
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	var rows []models.Order
	err := query.Order("created_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *repository) ListStatusHistory(ctx context.Context, tenantID, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	var rows []models.OrderStatusHistory
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND tenant_id = ?", orderID, tenantID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) NextOrderNumber(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var next int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("COALESCE(MAX(order_number), 0) + 1").
		Where("tenant_id = ?", tenantID).
		Scan(&next).Error
	return next, err
}

// UpdateStatusIfVersion is the optimistic concurrency primitive: the write
// lands only when the stored version still matches, and the row version is
// bumped in the same statement.
func (r *repository) UpdateStatusIfVersion(ctx context.Context, tenantID, orderID uuid.UUID, expectedVersion int64, updates map[string]any) (int64, error) {
	updates["version"] = expectedVersion + 1
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND tenant_id = ? AND version = ?", orderID, tenantID, expectedVersion).
		Updates(updates)
	return res.RowsAffected, res.Error
}
