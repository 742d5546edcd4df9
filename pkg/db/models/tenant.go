package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is one restaurant on the platform. Rows are provisioned out of band;
// this service only reads them to resolve context and tax configuration.
type Tenant struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name       string    `gorm:"column:name;not null"`
	Active     bool      `gorm:"column:active;not null;default:true"`
	TaxRateBPS int       `gorm:"column:tax_rate_bps;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
