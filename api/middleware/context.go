package middleware

import (
	"context"

	"github.com/google/uuid"

	pkgauth "github.com/mesa-pos/mesa-backend/pkg/auth"
)

type contextKey string

const (
	ctxTenantID contextKey = "tenant_id"
	ctxSubject  contextKey = "subject"
	ctxRole     contextKey = "actor_role"
	ctxClaims   contextKey = "capability_claims"
)

// TenantIDFromContext returns the authenticated tenant, or uuid.Nil when the
// request never passed the capability check.
func TenantIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(ctxTenantID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// SubjectFromContext returns the token subject (user or device identifier).
func SubjectFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxSubject).(string); ok {
		return v
	}
	return ""
}

// RoleFromContext returns the actor role carried by the token.
func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// ClaimsFromContext returns the full capability claims, or nil.
func ClaimsFromContext(ctx context.Context) *pkgauth.CapabilityClaims {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxClaims).(*pkgauth.CapabilityClaims); ok {
		return v
	}
	return nil
}

// WithClaims seeds the context the way the capability middleware does; used
// by handlers under test.
func WithClaims(ctx context.Context, claims *pkgauth.CapabilityClaims) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if claims == nil {
		return ctx
	}
	ctx = context.WithValue(ctx, ctxTenantID, claims.TenantID)
	ctx = context.WithValue(ctx, ctxSubject, claims.Subject)
	ctx = context.WithValue(ctx, ctxRole, string(claims.Role))
	return context.WithValue(ctx, ctxClaims, claims)
}
