package models

// Account roles.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// User is the wire representation of an account. The password hash is
// never placed in this struct.
type User struct {
	UserID    int     `json:"user_id"`
	Username  string  `json:"username"`
	Role      string  `json:"role"`
	Contact   string  `json:"contact"`
	Balance   float64 `json:"balance"`
	CreatedAt string  `json:"created_at,omitempty"`
}

// Account is the row shape used by balance-mutating transactions. Version
// backs optimistic locking: an update only applies when the stored version
// still matches the one read.
type Account struct {
	ID      int
	Balance int64 // in cents
	Version int
}
