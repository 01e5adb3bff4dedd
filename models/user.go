// Package models holds the domain records shared by every layer: users and
// sessions of the identity provider, token claims, and the chat thread and
// message records kept in the document store.
//
// json tags shape the API payloads. Chat records additionally use their json
// tags as document field names, so they must match what the store holds.
package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// User is an account of the identity provider.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  *string   `json:"display_name"` // nullable
	PasswordHash string    `json:"-"`            // never leaves the server
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity returns the chat identity of an authenticated user.
func (u *User) Identity() Identity {
	return Identity{UserID: u.ID, Email: u.Email, IsAdmin: u.IsAdmin}
}

// CreateUserRequest is the registration payload. The password is hashed in
// the service layer.
type CreateUserRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// Validate normalises and checks the request.
//   - Email: required, lowercased, simple format check
//   - Password: 8..72 bytes (bcrypt ignores anything past 72)
//   - DisplayName: optional, at most 32 characters
func (r *CreateUserRequest) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	if !emailRegex.MatchString(r.Email) {
		return fmt.Errorf("invalid email format")
	}

	if utf8.RuneCountInString(r.Password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	if len(r.Password) > 72 {
		return fmt.Errorf("password must be at most 72 bytes")
	}

	r.DisplayName = strings.TrimSpace(r.DisplayName)
	if utf8.RuneCountInString(r.DisplayName) > 32 {
		return fmt.Errorf("display name must be at most 32 characters")
	}

	return nil
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate normalises and checks the request.
func (r *LoginRequest) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}
