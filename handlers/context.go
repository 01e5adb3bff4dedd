package handlers

import (
	"net/http"

	"github.com/akinalp/runeshop/models"
)

// contextKey keeps request context keys out of other packages' namespace.
type contextKey string

// UserContextKey carries the authenticated *models.User, set by the auth
// middleware.
const UserContextKey contextKey = "user"

// UserFromContext returns the authenticated user of r, if any.
func UserFromContext(r *http.Request) (*models.User, bool) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	return user, ok && user != nil
}
