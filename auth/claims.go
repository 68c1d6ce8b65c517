package auth

import "github.com/golang-jwt/jwt/v5"

// Claims is the JWT payload accepted by the relocate HTTP API.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Handle string `json:"handle,omitempty"`
	Role   string `json:"role,omitempty"`
}
