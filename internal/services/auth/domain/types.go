// Package domain holds the auth entities, DTOs, and ports
package domain

import "time"

// Roles
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// ValidRole reports membership in the role set
func ValidRole(s string) bool { return s == RoleAdmin || s == RoleUser }

// User is one account row
type User struct {
	ID          string
	Email       string
	DisplayName string
	Role        string
	Active      bool

	PasswordHash      string
	PasswordChangedAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// LoginAttempt is one recorded login try, successful or not
type LoginAttempt struct {
	Email   string
	Success bool
	IP      string
	At      time.Time
}
