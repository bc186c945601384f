package models

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies which side of the dashboard a user belongs to.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
)

// User represents a registered dashboard user (admin staff or client).
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserSummary is the denormalized participant info carried on messages.
type UserSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  Role      `json:"role,omitempty"`
}

// Summary returns the denormalized view of a user.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// Viewer is the caller-supplied identity every repository operation is scoped to.
type Viewer struct {
	ID   uuid.UUID
	Role Role
}

// IsAdmin reports whether the viewer is admin staff.
func (v Viewer) IsAdmin() bool {
	return v.Role == RoleAdmin
}
