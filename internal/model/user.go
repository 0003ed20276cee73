package model

import "time"

// Role is a staff member's role in the approval chain.
type Role string

const (
	RoleStaff          Role = "Staff"
	RoleDepartmentHead Role = "DepartmentHead"
	RoleStockManager   Role = "StockManager"
	RoleAdmin          Role = "Admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleStaff, RoleDepartmentHead, RoleStockManager, RoleAdmin:
		return true
	}
	return false
}

// User is a staff account from the user directory.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Role         Role   `json:"role"`
	DepartmentID string `json:"department_id"`
	Active       bool   `json:"active"`
}

// Identity is the authenticated caller tuple attached to each request.
// The lifecycle engine trusts it as given and does not re-derive it.
type Identity struct {
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	DepartmentID string    `json:"department_id"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}
