// README: Common value objects shared across modules.
package types

type ID string

type Money struct {
	Amount   int64
	Currency string
}

// Role identifies who is acting on a booking or job.
type Role string

const (
	RoleCompany Role = "company"
	RoleDriver  Role = "driver"
	RoleAdmin   Role = "admin"
	RoleSystem  Role = "system"
)

// Actor is the authenticated party behind a request. Authentication itself
// happens upstream; the core only checks ownership and role.
type Actor struct {
	ID   ID
	Role Role
}
