package models

import (
	"fmt"
	"strings"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleExporter Role = "ROLE_EXPORTER"
	RoleLocal    Role = "ROLE_LOCAL"
	RoleAdmin    Role = "ROLE_ADMIN"
)

// Roles lists every known role in declaration order.
func Roles() []Role {
	return []Role{RoleExporter, RoleLocal, RoleAdmin}
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	for _, known := range Roles() {
		if r == known {
			return true
		}
	}
	return false
}

// SelfRegistrable reports whether the role may be chosen at public sign-up.
func (r Role) SelfRegistrable() bool {
	return r == RoleExporter || r == RoleLocal
}

func (r Role) String() string {
	return string(r)
}

// ParseRole converts user input into a Role. Empty input yields RoleLocal.
func ParseRole(value string) (Role, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(value))
	if trimmed == "" {
		return RoleLocal, nil
	}
	role := Role(trimmed)
	if !role.Valid() {
		return "", fmt.Errorf("models: unknown role %q", value)
	}
	return role, nil
}
