package middleware

import (
	"net/http"

	"github.com/akinalp/runeshop/handlers"
	"github.com/akinalp/runeshop/pkg"
)

// AdminMiddleware restricts a route to shop admins. It runs after
// AuthMiddleware.Require:
//
//	authMw.Require(adminMw.Require(http.HandlerFunc(h.ListThreads)))
type AdminMiddleware struct{}

// NewAdminMiddleware builds the middleware.
func NewAdminMiddleware() *AdminMiddleware {
	return &AdminMiddleware{}
}

// Require answers 403 unless the user in context is an admin.
func (m *AdminMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := handlers.UserFromContext(r)
		if !ok {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
			return
		}

		if !user.IsAdmin {
			pkg.ErrorWithMessage(w, http.StatusForbidden, "admin access required")
			return
		}

		next.ServeHTTP(w, r)
	})
}
