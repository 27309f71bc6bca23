package auth

import (
	"github.com/angelmondragon/packfinderz-identity/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Payload captures the data available when minting a token.
type Payload struct {
	UserID    uuid.UUID
	Email     string
	Role      enums.UserRole
	Type      enums.TokenType
	SessionID string
}

// Claims represents the typed JWT issued to clients.
type Claims struct {
	UserID    uuid.UUID       `json:"userId"`
	Email     string          `json:"email,omitempty"`
	Role      enums.UserRole  `json:"role,omitempty"`
	Type      enums.TokenType `json:"type"`
	SessionID string          `json:"sid,omitempty"`
	jwt.RegisteredClaims
}
