package tenant

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mesa-pos/mesa-backend/pkg/auth"
	"github.com/mesa-pos/mesa-backend/pkg/db/models"
	pkgerrors "github.com/mesa-pos/mesa-backend/pkg/errors"
)

type stubTenantRepo struct {
	tenants map[uuid.UUID]*models.Tenant
	err     error
}

func (s *stubTenantRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	if s.err != nil {
		return nil, s.err
	}
	tenant, ok := s.tenants[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return tenant, nil
}

func TestResolveHappyPath(t *testing.T) {
	tenantID := uuid.New()
	repo := &stubTenantRepo{tenants: map[uuid.UUID]*models.Tenant{
		tenantID: {ID: tenantID, Name: "Cafe Uno", Active: true, TaxRateBPS: 800},
	}}
	resolver, err := NewResolver(repo)
	if err != nil {
		t.Fatalf("build resolver: %v", err)
	}

	claims := &auth.CapabilityClaims{TenantID: tenantID}
	tenant, err := resolver.Resolve(context.Background(), claims, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tenant.ID != tenantID || tenant.TaxRateBPS != 800 {
		t.Fatalf("unexpected tenant %+v", tenant)
	}
}

func TestResolveExplicitTenantMatch(t *testing.T) {
	tenantID := uuid.New()
	repo := &stubTenantRepo{tenants: map[uuid.UUID]*models.Tenant{
		tenantID: {ID: tenantID, Active: true},
	}}
	resolver, _ := NewResolver(repo)

	claims := &auth.CapabilityClaims{TenantID: tenantID}
	explicit := tenantID
	if _, err := resolver.Resolve(context.Background(), claims, &explicit); err != nil {
		t.Fatalf("matching explicit tenant should resolve: %v", err)
	}
}

func TestResolveTenantMismatch(t *testing.T) {
	tenantID := uuid.New()
	repo := &stubTenantRepo{tenants: map[uuid.UUID]*models.Tenant{
		tenantID: {ID: tenantID, Active: true},
	}}
	resolver, _ := NewResolver(repo)

	claims := &auth.CapabilityClaims{TenantID: tenantID}
	other := uuid.New()
	_, err := resolver.Resolve(context.Background(), claims, &other)
	if err == nil {
		t.Fatalf("expected mismatch error")
	}
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeTenantMismatch {
		t.Fatalf("expected tenant mismatch code, got %v", err)
	}
}

func TestResolveMissingClaims(t *testing.T) {
	resolver, _ := NewResolver(&stubTenantRepo{})

	_, err := resolver.Resolve(context.Background(), nil, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestResolveUnknownTenant(t *testing.T) {
	resolver, _ := NewResolver(&stubTenantRepo{tenants: map[uuid.UUID]*models.Tenant{}})

	claims := &auth.CapabilityClaims{TenantID: uuid.New()}
	_, err := resolver.Resolve(context.Background(), claims, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeTenantMismatch {
		t.Fatalf("expected tenant mismatch, got %v", err)
	}
}

func TestResolveInactiveTenant(t *testing.T) {
	tenantID := uuid.New()
	repo := &stubTenantRepo{tenants: map[uuid.UUID]*models.Tenant{
		tenantID: {ID: tenantID, Active: false},
	}}
	resolver, _ := NewResolver(repo)

	claims := &auth.CapabilityClaims{TenantID: tenantID}
	_, err := resolver.Resolve(context.Background(), claims, nil)
	if err == nil {
		t.Fatalf("expected error for deactivated tenant")
	}
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeTenantMismatch {
		t.Fatalf("expected tenant mismatch, got %v", err)
	}
}

func TestResolveIDRejectsDeactivatedTenant(t *testing.T) {
	tenantID := uuid.New()
	repo := &stubTenantRepo{tenants: map[uuid.UUID]*models.Tenant{
		tenantID: {ID: tenantID, Active: false},
	}}
	resolver, _ := NewResolver(repo)

	_, err := resolver.ResolveID(context.Background(), tenantID)
	if err == nil {
		t.Fatalf("expected error for deactivated tenant")
	}
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeTenantMismatch {
		t.Fatalf("expected tenant mismatch, got %v", err)
	}
}
