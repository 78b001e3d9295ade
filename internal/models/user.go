package models

import "time"

// UserRole represents the available roles for access control.
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleTeacher UserRole = "teacher"
	RoleParent  UserRole = "parent"
)

// ValidRole reports whether the slug names a known role.
func ValidRole(role UserRole) bool {
	switch role {
	case RoleAdmin, RoleTeacher, RoleParent:
		return true
	default:
		return false
	}
}

// User represents an application user stored in the users table.
type User struct {
	ID           int64      `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         UserRole   `db:"role" json:"role"`
	AvatarPath   *string    `db:"avatar_path" json:"avatar_path,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserRef is the trimmed user shape embedded in other resources.
type UserRef struct {
	ID         int64    `db:"id" json:"id"`
	Name       string   `db:"name" json:"name"`
	Role       UserRole `db:"role" json:"role"`
	AvatarPath *string  `db:"avatar_path" json:"avatar_path,omitempty"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role     *UserRole
	Active   *bool
	Search   string
	Page     int
	PageSize int
}

// CreateUserRequest is the admin payload for provisioning an account.
type CreateUserRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=admin teacher parent"`
}

// UpdateUserRequest is the admin payload for editing an account. Nil
// fields are left untouched.
type UpdateUserRequest struct {
	Name   *string `json:"name" validate:"omitempty,max=120"`
	Email  *string `json:"email" validate:"omitempty,email"`
	Role   *string `json:"role" validate:"omitempty,oneof=admin teacher parent"`
	Active *bool   `json:"active"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
