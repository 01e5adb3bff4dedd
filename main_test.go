package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akinalp/runeshop/config"
	"github.com/akinalp/runeshop/database/dbtest"
	"github.com/akinalp/runeshop/docstore"
	"github.com/akinalp/runeshop/models"
	"github.com/akinalp/runeshop/services"
)

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:             "secret",
			AccessTokenExpiry:  15,
			RefreshTokenExpiry: 7,
			AdminEmails:        []string{"boss@shop.io"},
		},
		Chat: config.ChatConfig{
			GuestEmail:      "guest@example.com",
			MessageMax:      5,
			MessageWindow:   5 * time.Second,
			MessageCooldown: 15 * time.Second,
		},
	}
}

func TestInitServices_WithoutEmail(t *testing.T) {
	cfg := testConfig()
	db := dbtest.Open(t)
	limiters := initRateLimiters(cfg)
	t.Cleanup(limiters.Close)

	svcs := initServices(cfg, initRepositories(db), docstore.NewSQLStore(db), limiters)
	ctx := context.Background()

	tokens, err := svcs.Auth.Register(ctx, &models.CreateUserRequest{Email: "u@shop.io", Password: "password1"})
	require.NoError(t, err)

	sess := svcs.Chat.NewSession(services.SessionConfig{
		Identity: func() models.Identity { return models.Identity{UserID: tokens.User.ID, Email: tokens.User.Email} },
	})
	t.Cleanup(sess.Close)
	require.True(t, sess.SendMessage(ctx, "is the elven cloak in stock?"))

	threads, err := svcs.ChatAdmin.ListThreads(ctx)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, tokens.User.ID, threads[0].UserID)
}
