package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akinalp/runeshop/database/dbtest"
	"github.com/akinalp/runeshop/handlers"
	"github.com/akinalp/runeshop/models"
	"github.com/akinalp/runeshop/repository"
	"github.com/akinalp/runeshop/services"
)

type fixture struct {
	auth    *AuthMiddleware
	admin   *AdminMiddleware
	service services.AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	q := dbtest.Open(t).Querier()
	users := repository.NewUserRepo(q)
	svc := services.NewAuthService(users, repository.NewSessionRepo(q), "secret", 15, 7, []string{"boss@shop.io"})

	mw := NewAuthMiddleware(svc, users)
	t.Cleanup(mw.Close)
	return &fixture{auth: mw, admin: NewAdminMiddleware(), service: svc}
}

func (f *fixture) token(t *testing.T, email string) string {
	t.Helper()
	tokens, err := f.service.Register(context.Background(), &models.CreateUserRequest{Email: email, Password: "password1"})
	require.NoError(t, err)
	return tokens.AccessToken
}

// whoami echoes the user id from context, or "anonymous".
var whoami = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if user, ok := handlers.UserFromContext(r); ok {
		_, _ = w.Write([]byte(user.ID))
		return
	}
	_, _ = w.Write([]byte("anonymous"))
})

func serve(h http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddleware_Require(t *testing.T) {
	f := newFixture(t)
	token := f.token(t, "u@shop.io")
	h := f.auth.Require(whoami)

	assert.Equal(t, http.StatusUnauthorized, serve(h, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, "Token "+token).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, "Bearer nope").Code)

	rec := serve(h, "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, "anonymous", rec.Body.String())

	// cached lookup answers the same
	assert.Equal(t, rec.Body.String(), serve(h, "Bearer "+token).Body.String())
}

func TestAuthMiddleware_Optional(t *testing.T) {
	f := newFixture(t)
	token := f.token(t, "u@shop.io")
	h := f.auth.Optional(whoami)

	rec := serve(h, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", rec.Body.String())

	rec = serve(h, "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, "anonymous", rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve(h, "Bearer nope").Code)
}

func TestAdminMiddleware_Require(t *testing.T) {
	f := newFixture(t)
	h := f.auth.Require(f.admin.Require(whoami))

	assert.Equal(t, http.StatusForbidden, serve(h, "Bearer "+f.token(t, "u@shop.io")).Code)
	assert.Equal(t, http.StatusOK, serve(h, "Bearer "+f.token(t, "boss@shop.io")).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(f.admin.Require(whoami), "").Code)
}
