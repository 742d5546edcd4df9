package checkout

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mesa-pos/mesa-backend/pkg/db/models"
)

// Repository persists terminal checkouts and their payment audits.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, checkout *models.Checkout) (*models.Checkout, error)
	FindByID(ctx context.Context, tenantID, checkoutID uuid.UUID) (*models.Checkout, error)
	FindActiveByOrder(ctx context.Context, tenantID, orderID uuid.UUID) (*models.Checkout, error)
	ListActive(ctx context.Context, limit int) ([]models.Checkout, error)

	// UpdateStatusIfActive moves the checkout out of (or between) active
	// statuses. It reports the number of rows changed so callers can detect
	// a lost race against another settle path.
	UpdateStatusIfActive(ctx context.Context, checkoutID uuid.UUID, updates map[string]any) (int64, error)

	CreatePaymentAudit(ctx context.Context, audit *models.PaymentAudit) error
	ListPaymentAudits(ctx context.Context, tenantID, orderID uuid.UUID) ([]models.PaymentAudit, error)
}
