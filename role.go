package storeAuth

import "strings"

// Role is the closed set of storefront roles carried in the token's role claim.
type Role string

const (
	// RoleCustomer is the default role. Unknown or missing role claims resolve to it.
	RoleCustomer Role = "CUSTOMER"
	// RoleStaff is an in-store staff member (quick sales, shift tracking).
	RoleStaff Role = "STAFF"
	// RoleAdmin has access to every back-office portal.
	RoleAdmin Role = "ADMIN"
	// RoleSupplier is an external supplier (purchase orders, invoices).
	RoleSupplier Role = "SUPPLIER"
)

// Roles lists every valid role in declaration order.
var Roles = []Role{RoleCustomer, RoleStaff, RoleAdmin, RoleSupplier}

// ParseRole returns the role named by s. Matching is exact, like the backend's claim.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleCustomer, RoleStaff, RoleAdmin, RoleSupplier:
		return Role(s), true
	}
	return "", false
}

// NormalizeRole maps any claim value onto a valid role.
//
// Unknown, empty, or differently cased values resolve to [RoleCustomer]. This keeps the lenient
// default of the storefront: a session with an unreadable role is still a session, it just cannot
// pass any staff-only guard.
func NormalizeRole(s string) Role {
	if r, ok := ParseRole(strings.TrimSpace(s)); ok {
		return r
	}
	return RoleCustomer
}

// Valid reports whether r is one of the four storefront roles.
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

func (r Role) String() string {
	return string(r)
}

// RoleIn reports whether r is a member of allowed.
func RoleIn(r Role, allowed []Role) bool {
	for _, candidate := range allowed {
		if candidate == r {
			return true
		}
	}
	return false
}
