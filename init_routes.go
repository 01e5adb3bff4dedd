package main

import (
	"net/http"

	"github.com/akinalp/runeshop/middleware"
)

// initRoutes registers every endpoint on mux.
func initRoutes(mux *http.ServeMux, h *Handlers, authMw *middleware.AuthMiddleware) {
	adminMw := middleware.NewAdminMiddleware()

	auth := func(handler http.HandlerFunc) http.Handler {
		return authMw.Require(handler)
	}
	optional := func(handler http.HandlerFunc) http.Handler {
		return authMw.Optional(handler)
	}
	authAdmin := func(handler http.HandlerFunc) http.Handler {
		return authMw.Require(adminMw.Require(handler))
	}

	// Health & stats
	mux.HandleFunc("GET /api/health", h.Stats.Health)
	mux.HandleFunc("GET /api/stats", h.Stats.GetPublicStats)

	// Auth
	mux.HandleFunc("POST /api/auth/register", h.Auth.Register)
	mux.HandleFunc("POST /api/auth/login", h.Auth.Login)
	mux.HandleFunc("POST /api/auth/refresh", h.Auth.Refresh)
	// a spent refresh token still logs out the user behind the access token
	mux.Handle("POST /api/auth/logout", optional(h.Auth.Logout))
	mux.Handle("POST /api/auth/logout-all", auth(h.Auth.LogoutAll))

	// User
	mux.Handle("GET /api/users/me", auth(h.Auth.Me))

	// Admin chat moderation
	mux.Handle("GET /api/admin/chats", authAdmin(h.AdminChat.ListThreads))
	mux.Handle("GET /api/admin/chats/{id}/messages", authAdmin(h.AdminChat.GetMessages))
	mux.Handle("POST /api/admin/chats/{id}/messages", authAdmin(h.AdminChat.Reply))
	mux.Handle("POST /api/admin/chats/{id}/read", authAdmin(h.AdminChat.MarkRead))
	mux.Handle("DELETE /api/admin/chats/{id}", authAdmin(h.AdminChat.DeleteThread))

	// Live chat; the token travels in the query, guests connect without one
	mux.HandleFunc("GET /ws", h.WS.HandleConnection)
}
