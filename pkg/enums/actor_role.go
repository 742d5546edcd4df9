package enums

import "fmt"

// ActorRole identifies what kind of principal holds a capability token.
type ActorRole string

const (
	RoleStaff   ActorRole = "staff"
	RoleManager ActorRole = "manager"
	RoleDevice  ActorRole = "device"
	RoleService ActorRole = "service"
)

var validActorRoles = []ActorRole{
	RoleStaff,
	RoleManager,
	RoleDevice,
	RoleService,
}

// String implements fmt.Stringer.
func (r ActorRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ActorRole.
func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseActorRole converts raw input into an ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
