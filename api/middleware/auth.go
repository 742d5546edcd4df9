package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mesa-pos/mesa-backend/api/responses"
	pkgauth "github.com/mesa-pos/mesa-backend/pkg/auth"
	"github.com/mesa-pos/mesa-backend/pkg/db/models"
	pkgerrors "github.com/mesa-pos/mesa-backend/pkg/errors"
	"github.com/mesa-pos/mesa-backend/pkg/logger"
)

// TenantResolver is the slice of tenant.Resolver the middleware needs to
// confirm the token's tenant still exists and is active.
type TenantResolver interface {
	Resolve(ctx context.Context, claims *pkgauth.CapabilityClaims, explicitTenantID *uuid.UUID) (*models.Tenant, error)
}

// Capability validates the bearer token, checks it grants requiredScope,
// resolves the token's tenant and seeds the request context with the claims.
// Missing tokens, missing scopes and deactivated tenants all fail closed.
func Capability(authorizer *pkgauth.Authorizer, tenants TenantResolver, requiredScope string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			tenantID, claims, err := authorizer.Check(token, requiredScope)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			if tenants == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "tenant resolver unavailable"))
				return
			}
			if _, err := tenants.Resolve(r.Context(), claims, nil); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := WithClaims(r.Context(), claims)
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"tenant_id":  tenantID.String(),
					"actor_role": string(claims.Role),
				})
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the capability token from the Authorization header,
// falling back to the access_token query parameter for WebSocket clients
// that cannot set headers.
func BearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	if raw != "" {
		return raw
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}
