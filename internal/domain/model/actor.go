package model

// Role is the marketplace role of an authenticated actor.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleBuyer || r == RoleSeller || r == RoleAdmin
}

// Actor is a verified identity resolved at the HTTP boundary.
type Actor struct {
	ID   int64
	Role Role
}
