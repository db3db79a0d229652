package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

type LoginRequest struct {
	Username string `json:"username" validate:"required,min=1"`
	Password string `json:"password" validate:"required,min=4"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type CreateUserRequest struct {
	Username           string  `json:"username"              validate:"required,min=1,max=150"`
	Name               string  `json:"name"                  validate:"required,min=2,max=100"`
	Email              *string `json:"email"                 validate:"omitempty,email"`
	Password           string  `json:"password"              validate:"required,min=8"`
	Role               string  `json:"role"                  validate:"required,oneof=client inspector trainer supervisor accountant manager"`
	CanCreateJobOrders bool    `json:"can_create_job_orders"`
}

// UserFilter is bound from query string of GET /v1/users.
type UserFilter struct {
	Role string `form:"role" validate:"omitempty,oneof=client inspector trainer supervisor accountant manager"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type UserResponse struct {
	ID                 string  `json:"id"`
	Username           string  `json:"username"`
	Name               string  `json:"name"`
	Email              *string `json:"email"`
	Role               string  `json:"role"`
	CanCreateJobOrders bool    `json:"can_create_job_orders"`
	Active             bool    `json:"active"`
}

type LoginResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in"` // seconds
	User         UserResponse `json:"user"`
}
