package auth

import (
	"github.com/google/uuid"

	"github.com/mesa-pos/mesa-backend/pkg/config"
	apperr "github.com/mesa-pos/mesa-backend/pkg/errors"
)

// Authorizer validates capability tokens against required scopes. It is the
// only authorization surface in the service; both HTTP middleware and the
// WebSocket handshakes delegate to it.
type Authorizer struct {
	cfg config.JWTConfig
}

// NewAuthorizer constructs an Authorizer from the JWT configuration.
func NewAuthorizer(cfg config.JWTConfig) *Authorizer {
	return &Authorizer{cfg: cfg}
}

// Check validates the bearer token and confirms it grants requiredScope.
// It returns the token's tenant id and claims on success. Missing or
// invalid tokens and missing scopes both fail closed with Unauthorized.
func (a *Authorizer) Check(token, requiredScope string) (uuid.UUID, *CapabilityClaims, error) {
	if token == "" {
		return uuid.Nil, nil, apperr.New(apperr.CodeUnauthorized, "missing bearer token")
	}
	claims, err := ParseCapabilityToken(a.cfg, token)
	if err != nil {
		return uuid.Nil, nil, apperr.Wrap(apperr.CodeUnauthorized, err, "invalid bearer token")
	}
	if requiredScope != "" && !claims.HasScope(requiredScope) {
		return uuid.Nil, nil, apperr.New(apperr.CodeUnauthorized, "token missing scope "+requiredScope)
	}
	return claims.TenantID, claims, nil
}
