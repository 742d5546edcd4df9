package checkout

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mesa-pos/mesa-backend/pkg/db/models"
	"github.com/mesa-pos/mesa-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a checkout repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, checkout *models.Checkout) (*models.Checkout, error) {
	if err := r.db.WithContext(ctx).Create(checkout).Error; err != nil {
		return nil, err
	}
	return checkout, nil
}

func (r *repository) FindByID(ctx context.Context, tenantID, checkoutID uuid.UUID) (*models.Checkout, error) {
	var checkout models.Checkout
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", checkoutID, tenantID).
		First(&checkout).Error
	if err != nil {
		return nil, err
	}
	return &checkout, nil
}

func (r *repository) FindActiveByOrder(ctx context.Context, tenantID, orderID uuid.UUID) (*models.Checkout, error) {
	var checkout models.Checkout
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND tenant_id = ? AND status IN ?", orderID, tenantID, activeStatuses()).
		First(&checkout).Error
	if err != nil {
		return nil, err
	}
	return &checkout, nil
}

func (r *repository) ListActive(ctx context.Context, limit int) ([]models.Checkout, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows []models.Checkout
	err := r.db.WithContext(ctx).
		Where("status IN ?", activeStatuses()).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) UpdateStatusIfActive(ctx context.Context, checkoutID uuid.UUID, updates map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Checkout{}).
		Where("id = ? AND status IN ?", checkoutID, activeStatuses()).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repository) CreatePaymentAudit(ctx context.Context, audit *models.PaymentAudit) error {
	return r.db.WithContext(ctx).Create(audit).Error
}

func (r *repository) ListPaymentAudits(ctx context.Context, tenantID, orderID uuid.UUID) ([]models.PaymentAudit, error) {
	var rows []models.PaymentAudit
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND tenant_id = ?", orderID, tenantID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func activeStatuses() []enums.CheckoutStatus {
	return []enums.CheckoutStatus{enums.CheckoutStatusPending, enums.CheckoutStatusInProgress}
}
