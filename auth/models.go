package auth

import (
	"time"

	"crmapi/store"
)

// Role is stored on every user. CRM routes do not enforce it.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleSeller Role = "seller"
	RoleViewer Role = "viewer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSeller, RoleViewer:
		return true
	default:
		return false
	}
}

// User is the domain representation of a CRM user.
// It mirrors the users table and should not include JSON annotations so it
// can be reused by different presentation layers.
type User struct {
	ID             int64
	Name           string
	Email          string
	HashedPassword string
	Role           Role
	CreatedAt      time.Time
	LastLogin      *time.Time
}

// RegisterRequest contains user registration data supplied by callers.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

// LoginRequest contains user login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ListFilter narrows the user directory.
type ListFilter struct {
	Role   *Role
	Search string
	Page   store.Page
}
