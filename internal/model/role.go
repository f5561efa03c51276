package model

import "fmt"

// Role identifies which dashboard and rooms a session belongs to.
type Role string

const (
	RoleStudent      Role = "student"
	RoleLandlord     Role = "landlord"
	RoleFoodProvider Role = "food_provider"
	RoleAdmin        Role = "admin"
)

// Roles lists every role the core tracks, in a stable order.
var Roles = []Role{RoleStudent, RoleLandlord, RoleFoodProvider, RoleAdmin}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleLandlord, RoleFoodProvider, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// ParseRole converts a raw string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}
