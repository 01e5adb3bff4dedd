package ws

import (
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/akinalp/runeshop/models"
	"github.com/akinalp/runeshop/pkg/logger"
	"github.com/akinalp/runeshop/pkg/ratelimit"
	"github.com/akinalp/runeshop/services"
)

// TokenValidator is the part of services.AuthService the socket needs.
type TokenValidator interface {
	ValidateAccessToken(tokenString string) (*models.TokenClaims, error)
}

// Handler upgrades /ws requests and runs one chat session per connection.
type Handler struct {
	hub            *Hub
	tokenValidator TokenValidator
	chat           *services.ChatService
	admin          services.ChatAdminService
	upgrader       websocket.Upgrader
	log            zerolog.Logger
}

// NewHandler builds the socket handler. An empty allowedOrigins accepts any
// origin.
func NewHandler(
	hub *Hub,
	tokenValidator TokenValidator,
	chat *services.ChatService,
	admin services.ChatAdminService,
	allowedOrigins []string,
) *Handler {
	return &Handler{
		hub:            hub,
		tokenValidator: tokenValidator,
		chat:           chat,
		admin:          admin,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*") {
					return true
				}
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
		log: logger.Module("ws"),
	}
}

// HandleConnection godoc
// GET /ws?token=<jwt>
//
// Browsers cannot set headers on a WebSocket handshake, so the access token
// travels in the query. No token means a guest connection; a bad token is
// rejected before the upgrade.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	var identity models.Identity
	if token := r.URL.Query().Get("token"); token != "" {
		claims, err := h.tokenValidator.ValidateAccessToken(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		identity = claims.Identity()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("user_id", identity.UserID).Msg("upgrade failed")
		return
	}

	client := newClient(h.hub, conn, h.admin, identity, h.log)
	client.session = h.chat.NewSession(services.SessionConfig{
		Identity:  client.Identity,
		ClientKey: ratelimit.ExtractIP(r),
		OnChange:  client.pushState,
	})

	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		client.close()
		return
	}

	var ready ReadyData
	if identity.Authenticated() {
		ready.Identity = &identity
	}
	client.sendEvent(Event{Op: OpReady, Data: ready})

	go client.WritePump()
	client.ReadPump()
}
