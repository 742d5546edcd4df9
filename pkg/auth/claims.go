package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mesa-pos/mesa-backend/pkg/enums"
)

// CapabilityTokenPayload captures the data available when minting a token.
type CapabilityTokenPayload struct {
	TenantID uuid.UUID
	Subject  string
	Role     enums.ActorRole
	Scopes   []string
	JTI      string
}

// CapabilityClaims represents the typed bearer token presented by clients.
// The token is the single source of truth for permission scopes; no
// secondary scope table is consulted during authorization.
type CapabilityClaims struct {
	TenantID uuid.UUID       `json:"tenant_id"`
	Role     enums.ActorRole `json:"role"`
	Scopes   []string        `json:"scopes"`
	jwt.RegisteredClaims
}

// HasScope reports whether the token grants the required permission scope.
func (c *CapabilityClaims) HasScope(scope string) bool {
	for _, granted := range c.Scopes {
		if granted == scope {
			return true
		}
	}
	return false
}
