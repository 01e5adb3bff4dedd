// Package middleware holds the HTTP request pipeline stages. Each one is a
// func(next http.Handler) http.Handler that either calls next or answers
// the request itself.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/akinalp/runeshop/handlers"
	"github.com/akinalp/runeshop/models"
	"github.com/akinalp/runeshop/pkg"
	"github.com/akinalp/runeshop/pkg/cache"
	"github.com/akinalp/runeshop/repository"
	"github.com/akinalp/runeshop/services"
)

// userCacheTTL bounds how long a deleted user or a revoked admin flag keeps
// working with a still-valid access token.
const userCacheTTL = 30 * time.Second

// AuthMiddleware validates JWT access tokens and loads the user.
type AuthMiddleware struct {
	authService services.AuthService
	userRepo    repository.UserRepository
	users       *cache.TTLCache[string, models.User]
}

// NewAuthMiddleware builds the middleware. Call Close on shutdown.
func NewAuthMiddleware(authService services.AuthService, userRepo repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		userRepo:    userRepo,
		users:       cache.New[string, models.User](userCacheTTL, time.Minute),
	}
}

// Close stops the user cache sweep.
func (m *AuthMiddleware) Close() {
	m.users.Close()
}

// Require rejects requests without a valid "Authorization: Bearer <token>"
// header with 401. The user is stored under handlers.UserContextKey.
func (m *AuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "authorization header required")
			return
		}

		user, err := m.authenticate(r.Context(), authHeader)
		if err != nil {
			pkg.Error(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), handlers.UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Optional lets anonymous requests through. A header that is present must
// still be valid.
func (m *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.authenticate(r.Context(), authHeader)
		if err != nil {
			pkg.Error(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), handlers.UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) authenticate(ctx context.Context, authHeader string) (*models.User, error) {
	tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return nil, fmt.Errorf("%w: invalid authorization format, use: Bearer <token>", pkg.ErrUnauthorized)
	}

	claims, err := m.authService.ValidateAccessToken(tokenString)
	if err != nil {
		return nil, err
	}

	if cached, ok := m.users.Get(claims.UserID); ok {
		return &cached, nil
	}

	// the token may outlive the account
	user, err := m.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: user not found", pkg.ErrUnauthorized)
	}
	user.PasswordHash = ""

	m.users.Set(user.ID, *user)
	return user, nil
}
