package domain

import "time"

// Role identifies which side of the marketplace an account acts for.
type Role string

const (
	RoleClient  Role = "client"
	RoleCompany Role = "company"
	// RoleSystem drives automatic transitions; no account carries it.
	RoleSystem Role = "system"
)

// Valid reports whether r is an account role.
func (r Role) Valid() bool {
	return r == RoleClient || r == RoleCompany
}

// Account holds the cached running balance for a ledger account. Balance only
// changes together with an appended Transaction.
type Account struct {
	ID        string
	Role      Role
	Balance   int64
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
