package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserRole represents the available roles for acting users.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleRegistrar  UserRole = "REGISTRAR"
	RoleStaff      UserRole = "STAFF"
	RoleStudent    UserRole = "STUDENT"
)

// User is an acting or enrolled person. BranchID scopes branch-isolation
// checks; super admins bypass them.
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	FullName  string    `db:"full_name" json:"full_name"`
	Role      UserRole  `db:"role" json:"role"`
	BranchID  string    `db:"branch_id" json:"branch_id"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsSuperAdmin reports whether the user bypasses branch isolation.
func (u *User) IsSuperAdmin() bool {
	return u.Role == RoleSuperAdmin
}

// ActorClaims is the JWT payload identifying the acting user. Only
// identity is carried; authorization decisions stay in the engine.
type ActorClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	BranchID string   `json:"branch_id"`
	jwt.RegisteredClaims
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
