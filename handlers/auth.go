// Package handlers is the HTTP edge: parse the request, call a service,
// write the response. No business rules and no SQL live here.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/akinalp/runeshop/models"
	"github.com/akinalp/runeshop/pkg"
	"github.com/akinalp/runeshop/pkg/logger"
	"github.com/akinalp/runeshop/pkg/ratelimit"
	"github.com/akinalp/runeshop/services"
)

// SessionResetter clears the live chat sessions of a user. Implemented by
// ws.Hub.
type SessionResetter interface {
	ResetUserSessions(userID string) int
}

// AuthHandler serves the identity endpoints.
type AuthHandler struct {
	authService  services.AuthService
	loginLimiter *ratelimit.LoginRateLimiter
	sessions     SessionResetter
	log          zerolog.Logger
}

// NewAuthHandler builds the handler. loginLimiter may be nil (no limit);
// sessions may be nil (no live sessions to reset).
func NewAuthHandler(authService services.AuthService, loginLimiter *ratelimit.LoginRateLimiter, sessions SessionResetter) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		loginLimiter: loginLimiter,
		sessions:     sessions,
		log:          logger.Module("auth"),
	}
}

// Register godoc
// POST /api/auth/register
// Body: { "email": "...", "password": "...", "display_name": "..." }
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tokens, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	h.log.Info().Str("user_id", tokens.User.ID).Msg("user registered")
	pkg.JSON(w, http.StatusCreated, tokens)
}

// Login godoc
// POST /api/auth/login
//
// Attempts are limited per IP; a successful login clears the counter.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ip := ratelimit.ExtractIP(r)
	if h.loginLimiter != nil && !h.loginLimiter.Allow(ip) {
		retryAfter := h.loginLimiter.RetryAfterSeconds(ip)
		w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
		pkg.ErrorWithMessage(w, http.StatusTooManyRequests,
			fmt.Sprintf("too many login attempts, please try again in %s",
				ratelimit.FormatRetryMessage(retryAfter)))
		return
	}

	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tokens, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	if h.loginLimiter != nil {
		h.loginLimiter.Reset(ip)
	}

	pkg.JSON(w, http.StatusOK, tokens)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh godoc
// POST /api/auth/refresh
// Body: { "refresh_token": "..." }
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RefreshToken == "" {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	tokens, err := h.authService.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, tokens)
}

// Logout godoc
// POST /api/auth/logout
// Body: { "refresh_token": "..." }
//
// Revokes the session and resets every live chat view of the user, since
// the identity behind those connections is gone.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, err := h.authService.Logout(r.Context(), req.RefreshToken)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	// the access token identifies the user even when the refresh token
	// was already spent
	if user, ok := UserFromContext(r); ok && userID == "" {
		userID = user.ID
	}
	if h.sessions != nil && userID != "" {
		h.sessions.ResetUserSessions(userID)
	}

	pkg.JSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// LogoutAll godoc
// POST /api/auth/logout-all
//
// Revokes every refresh token of the user and resets all of their live chat
// views.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	if err := h.authService.LogoutAll(r.Context(), user.ID); err != nil {
		pkg.Error(w, err)
		return
	}
	if h.sessions != nil {
		h.sessions.ResetUserSessions(user.ID)
	}

	pkg.JSON(w, http.StatusOK, map[string]string{"message": "logged out everywhere"})
}

// Me godoc
// GET /api/users/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	pkg.JSON(w, http.StatusOK, user)
}
