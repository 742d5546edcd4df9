package tenant

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mesa-pos/mesa-backend/pkg/db/models"
)

// Repository defines persistence operations for tenants.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a tenant repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var tenant models.Tenant
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&tenant).Error
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}
