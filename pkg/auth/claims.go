package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	AdminID      uuid.UUID
	Email        string
	RoleName     string
	IsSuperAdmin bool
	JTI          string
}

// AccessTokenClaims represents the typed JWT issued to admin clients.
type AccessTokenClaims struct {
	AdminID      uuid.UUID `json:"admin_id"`
	Email        string    `json:"email"`
	RoleName     string    `json:"role,omitempty"`
	IsSuperAdmin bool      `json:"is_super_admin,omitempty"`
	jwt.RegisteredClaims
}
