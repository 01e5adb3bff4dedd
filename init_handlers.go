package main

import (
	"github.com/akinalp/runeshop/config"
	"github.com/akinalp/runeshop/database"
	"github.com/akinalp/runeshop/handlers"
	"github.com/akinalp/runeshop/ws"
)

// Handlers holds the HTTP and WebSocket handlers.
type Handlers struct {
	Auth      *handlers.AuthHandler
	AdminChat *handlers.AdminChatHandler
	Stats     *handlers.StatsHandler
	WS        *ws.Handler
}

func initHandlers(cfg *config.Config, db *database.DB, svcs *Services, repos *Repositories, limiters *RateLimiters, hub *ws.Hub) *Handlers {
	return &Handlers{
		Auth:      handlers.NewAuthHandler(svcs.Auth, limiters.Login, hub),
		AdminChat: handlers.NewAdminChatHandler(svcs.ChatAdmin),
		Stats:     handlers.NewStatsHandler(repos.User, db.Conn, hub.ConnectionCount),
		WS:        ws.NewHandler(hub, svcs.Auth, svcs.Chat, svcs.ChatAdmin, cfg.Server.CORSOrigins),
	}
}
