package ws

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/akinalp/runeshop/pkg/logger"
)

// guestKey groups the connections of anonymous clients.
const guestKey = ""

// Hub tracks every live connection, grouped by user id.
type Hub struct {
	// clients: userID → client set (one user may have several tabs open).
	clients map[string]map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	seq atomic.Int64
	log zerolog.Logger
}

// NewHub creates a hub. Start it with `go hub.Run()`.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        logger.Module("ws"),
	}
}

// Run is the register/unregister loop. It returns after Shutdown.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-h.done:
			return
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := client.key()
	if _, ok := h.clients[key]; !ok {
		h.clients[key] = make(map[*Client]bool)
	}
	h.clients[key][client] = true

	h.log.Debug().Str("user_id", key).Int("connections", len(h.clients[key])).Msg("client connected")
}

// removeClient drops client and closes its send channel. Safe to call more
// than once for the same client.
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for key, clients := range h.clients {
		if _, ok := clients[client]; !ok {
			continue
		}
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, key)
		}
		h.log.Debug().Str("user_id", key).Int("remaining", len(clients)).Msg("client disconnected")
		break
	}
	client.closeSend()
}

// drop schedules client for removal without blocking the caller.
func (h *Hub) drop(client *Client) {
	go func() {
		select {
		case h.unregister <- client:
		case <-h.done:
		}
	}()
}

// ResetUserSessions signs every connection of userID out: the connections
// become guests and their chat views are cleared. Called on logout.
func (h *Hub) ResetUserSessions(userID string) int {
	if userID == guestKey {
		return 0
	}

	h.mu.Lock()
	clients := h.clients[userID]
	delete(h.clients, userID)
	if len(clients) > 0 {
		if _, ok := h.clients[guestKey]; !ok {
			h.clients[guestKey] = make(map[*Client]bool)
		}
	}
	moved := make([]*Client, 0, len(clients))
	for client := range clients {
		h.clients[guestKey][client] = true
		moved = append(moved, client)
	}
	h.mu.Unlock()

	for _, client := range moved {
		client.signOut()
	}
	if len(moved) > 0 {
		h.log.Info().Str("user_id", userID).Int("connections", len(moved)).Msg("chat sessions reset")
	}
	return len(moved)
}

// ConnectionCount returns the number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, clients := range h.clients {
		n += len(clients)
	}
	return n
}

// encode stamps event with the next sequence number.
func (h *Hub) encode(event Event) ([]byte, error) {
	event.Seq = h.seq.Add(1)
	return json.Marshal(event)
}

// Shutdown closes every connection and stops Run.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() { close(h.done) })

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			client.closeSend()
		}
	}
	h.clients = make(map[string]map[*Client]bool)
	h.log.Info().Msg("hub shut down, all connections closed")
}
