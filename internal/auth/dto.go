package auth

import "github.com/angelmondragon/packfinderz-identity/internal/users"

// RegisterRequest is the public sign-up payload. Role defaults to buyer.
type RegisterRequest struct {
	Email    string              `json:"email" validate:"required,email,max=254"`
	Password string              `json:"password" validate:"required,max=128"`
	Role     string              `json:"role,omitempty"`
	Profile  *users.ProfileInput `json:"profile,omitempty"`
}

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,max=128"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,max=128"`
}

// TokenPair is returned by login, registration and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64 `json:"expiresIn"`
}

// AuthResult pairs the authenticated user with fresh tokens.
type AuthResult struct {
	User   *users.UserDTO `json:"user"`
	Tokens *TokenPair     `json:"tokens"`
}

type LogoutAllResponse struct {
	DevicesLoggedOut int `json:"devicesLoggedOut"`
}

type SessionsResponse struct {
	ActiveSessions int `json:"activeSessions"`
}
