package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims is the access token payload. It lives in models because
// services, middleware and ws all read it.
type TokenClaims struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Identity returns the identity carried by the token.
func (c *TokenClaims) Identity() Identity {
	return Identity{UserID: c.UserID, Email: c.Email, IsAdmin: c.IsAdmin}
}
