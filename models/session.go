package models

import "time"

// Session is a refresh token session. Access tokens are short lived and never
// stored; refresh tokens live here so logout and rotation can revoke them.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}
