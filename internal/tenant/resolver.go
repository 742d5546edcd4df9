package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mesa-pos/mesa-backend/pkg/auth"
	"github.com/mesa-pos/mesa-backend/pkg/db/models"
	pkgerrors "github.com/mesa-pos/mesa-backend/pkg/errors"
)

// Resolver turns a capability token plus an optional explicit tenant id into
// the active tenant for an operation. Every API surface resolves through it
// before touching tenant data.
type Resolver interface {
	Resolve(ctx context.Context, claims *auth.CapabilityClaims, explicitTenantID *uuid.UUID) (*models.Tenant, error)
	ResolveID(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error)
}

type resolver struct {
	repo Repository
}

// NewResolver builds the tenant context resolver.
func NewResolver(repo Repository) (Resolver, error) {
	if repo == nil {
		return nil, fmt.Errorf("tenant repository required")
	}
	return &resolver{repo: repo}, nil
}

// Resolve validates the token's tenant, checks any explicit tenant id against
// it, and loads the tenant row. A deactivated tenant resolves to TenantMismatch
// so callers drop the request the same way they drop cross-tenant attempts.
func (r *resolver) Resolve(ctx context.Context, claims *auth.CapabilityClaims, explicitTenantID *uuid.UUID) (*models.Tenant, error) {
	if claims == nil || claims.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "tenant identity missing")
	}
	if explicitTenantID != nil && *explicitTenantID != claims.TenantID {
		return nil, pkgerrors.New(pkgerrors.CodeTenantMismatch, "token tenant differs from requested tenant")
	}
	return r.ResolveID(ctx, claims.TenantID)
}

// ResolveID loads a tenant already known by id and enforces that it is still
// active. Services use it on paths where the tenant id was established
// upstream, such as order writes inside a voice session.
func (r *resolver) ResolveID(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error) {
	tenant, err := r.repo.FindByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeTenantMismatch, "tenant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tenant")
	}
	if !tenant.Active {
		return nil, pkgerrors.New(pkgerrors.CodeTenantMismatch, "tenant is deactivated")
	}
	return tenant, nil
}
