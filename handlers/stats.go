package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/akinalp/runeshop/pkg"
	"github.com/akinalp/runeshop/repository"
)

// Pinger reports whether the database is reachable. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	TotalUsers        int `json:"total_users"`
	ActiveConnections int `json:"active_connections"`
}

// StatsHandler serves the public health and stats endpoints.
type StatsHandler struct {
	userRepo    repository.UserRepository
	db          Pinger
	connections func() int
}

// NewStatsHandler builds the handler. connections reports the live chat
// connection count and may be nil.
func NewStatsHandler(userRepo repository.UserRepository, db Pinger, connections func() int) *StatsHandler {
	return &StatsHandler{userRepo: userRepo, db: db, connections: connections}
}

// Health godoc
// GET /api/health
func (h *StatsHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		pkg.ErrorWithMessage(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetPublicStats godoc
// GET /api/stats
func (h *StatsHandler) GetPublicStats(w http.ResponseWriter, r *http.Request) {
	count, err := h.userRepo.Count(r.Context())
	if err != nil {
		pkg.ErrorWithMessage(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	resp := StatsResponse{TotalUsers: count}
	if h.connections != nil {
		resp.ActiveConnections = h.connections()
	}
	pkg.JSON(w, http.StatusOK, resp)
}
