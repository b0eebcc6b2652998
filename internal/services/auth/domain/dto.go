package domain

import "context"

// LoginInput is the credentials body
type LoginInput struct {
	Email    string `json:"email" validate:"required,email,max=254" example:"analyst@example.com"`
	Password string `json:"password" validate:"required,max=200" example:"hunter2hunter2"`
}

// LoginOutput carries the signed token and the account view
type LoginOutput struct {
	Token     string   `json:"token"`
	ExpiresAt string   `json:"expires_at"`
	User      UserView `json:"user"`
}

// UserView is the wire projection of a user
type UserView struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Active      bool   `json:"active"`
	CreatedAt   string `json:"created_at"`
}

// ChangePasswordInput rotates the caller's own password
type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required,max=200"`
	NewPassword     string `json:"new_password" validate:"required,max=200"`
}

// SignupInput is the self-signup body (immediate password choice)
type SignupInput struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	DisplayName string `json:"display_name" validate:"required,max=200"`
	Password    string `json:"password" validate:"required,max=200"`
}

// CreateUserInput is the admin user-creation body
type CreateUserInput struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	DisplayName string `json:"display_name" validate:"required,max=200"`
	Password    string `json:"password" validate:"required,max=200"`
	Role        string `json:"role" validate:"omitempty,oneof=admin user"`
	Active      *bool  `json:"active"`
}

// UpdateUserInput is the admin patch body; nil fields stay untouched
type UpdateUserInput struct {
	DisplayName *string `json:"display_name" validate:"omitempty,max=200"`
	Role        *string `json:"role" validate:"omitempty,oneof=admin user"`
	Active      *bool   `json:"active"`
	Password    *string `json:"password" validate:"omitempty,max=200"`
}

// ImportItemOutcome is the per-item result of a bulk user import
type ImportItemOutcome struct {
	Email  string `json:"email"`
	Status string `json:"status"` // created|error
	Error  string `json:"error,omitempty"`
}

// ConfigOutput tells the UI whether login is in force
type ConfigOutput struct {
	LoginRequired bool `json:"login_required"`
}

// AuthnPort is the account-facing surface
type AuthnPort interface {
	Login(ctx context.Context, in LoginInput, ip string) (LoginOutput, error)
	Me(ctx context.Context, userID string) (UserView, error)
	ChangePassword(ctx context.Context, userID string, in ChangePasswordInput) error
	Signup(ctx context.Context, in SignupInput, ip string) (LoginOutput, error)
	LoginRequired() bool
}

// AdminPort is the user-administration surface
type AdminPort interface {
	ListUsers(ctx context.Context, limit, offset int) ([]UserView, error)
	CreateUser(ctx context.Context, actor string, in CreateUserInput) (UserView, error)
	UpdateUser(ctx context.Context, actor, id string, in UpdateUserInput) (UserView, error)
	ImportUsers(ctx context.Context, actor string, items []CreateUserInput) ([]ImportItemOutcome, error)
}
