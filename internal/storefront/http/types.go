package http

import "github.com/aussiebroadwan/storefront/internal/storefront/domain"

// SuccessResponse is the bare acknowledgement body.
type SuccessResponse struct {
	Success bool `json:"success" example:"true"`
}

type MessageResponse struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message" example:"Logged Out"`
}

// AuthResponse is returned whenever a new session starts. The token is the
// same value placed in the "token" cookie.
type AuthResponse struct {
	Success bool        `json:"success" example:"true"`
	Token   string      `json:"token"`
	User    domain.User `json:"user"`
}

type UserResponse struct {
	Success bool        `json:"success" example:"true"`
	User    domain.User `json:"user"`
}

type UsersResponse struct {
	Success bool          `json:"success" example:"true"`
	Users   []domain.User `json:"users"`
}

type LoginRequest struct {
	Email    string `json:"email" example:"alice@example.com"`
	Password string `json:"password" example:"secret1"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" example:"alice@example.com"`
}

type ResetPasswordRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type UpdatePasswordRequest struct {
	OldPassword     string `json:"oldPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

type HealthChecks struct {
	Database string `json:"database" example:"ok"`
}

type HealthResponse struct {
	Status  string        `json:"status" example:"ok"`
	Uptime  string        `json:"uptime" example:"1h2m3s"`
	Version string        `json:"version" example:"dev"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}
