package enums

import (
	"fmt"
	"strings"
)

// UserRole is the platform role carried on every user and in every token.
type UserRole string

const (
	UserRoleBuyer     UserRole = "buyer"
	UserRoleSeller    UserRole = "seller"
	UserRoleLogistics UserRole = "logistics"
	UserRoleFinance   UserRole = "finance"
	UserRoleAdmin     UserRole = "admin"
)

var validUserRoles = []UserRole{
	UserRoleBuyer,
	UserRoleSeller,
	UserRoleLogistics,
	UserRoleFinance,
	UserRoleAdmin,
}

// UserRoles returns every known role in declaration order.
func UserRoles() []UserRole {
	out := make([]UserRole, len(validUserRoles))
	copy(out, validUserRoles)
	return out
}

// String implements fmt.Stringer.
func (r UserRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known UserRole.
func (r UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseUserRole converts raw input into a UserRole. Matching is case-insensitive.
func ParseUserRole(value string) (UserRole, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validUserRoles {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}
