package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akinalp/runeshop/database/dbtest"
	"github.com/akinalp/runeshop/models"
	"github.com/akinalp/runeshop/pkg"
)

func TestUserRepo_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo(dbtest.Open(t).Querier())

	user := &models.User{Email: "u1@x.com", PasswordHash: "hash"}
	require.NoError(t, repo.Create(ctx, user))
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())

	got, err := repo.GetByEmail(ctx, "U1@X.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.False(t, got.IsAdmin)

	require.NoError(t, repo.SetAdmin(ctx, user.ID, true))
	got, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAdmin)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUserRepo_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo(dbtest.Open(t).Querier())

	require.NoError(t, repo.Create(ctx, &models.User{Email: "a@x.com", PasswordHash: "h"}))
	err := repo.Create(ctx, &models.User{Email: "a@x.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, pkg.ErrAlreadyExists)
}

func TestUserRepo_NotFound(t *testing.T) {
	repo := NewUserRepo(dbtest.Open(t).Querier())

	_, err := repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, pkg.ErrNotFound)

	err = repo.SetAdmin(context.Background(), "nope", true)
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestSessionRepo_Lifecycle(t *testing.T) {
	ctx := context.Background()
	q := dbtest.Open(t).Querier()
	users := NewUserRepo(q)
	sessions := NewSessionRepo(q)

	user := &models.User{Email: "s@x.com", PasswordHash: "h"}
	require.NoError(t, users.Create(ctx, user))

	live := &models.Session{UserID: user.ID, RefreshToken: "live", ExpiresAt: time.Now().Add(time.Hour)}
	dead := &models.Session{UserID: user.ID, RefreshToken: "dead", ExpiresAt: time.Now().Add(-time.Hour)}
	require.NoError(t, sessions.Create(ctx, live))
	require.NoError(t, sessions.Create(ctx, dead))

	got, err := sessions.GetByRefreshToken(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, live.ID, got.ID)
	assert.Equal(t, user.ID, got.UserID)

	n, err := sessions.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = sessions.GetByRefreshToken(ctx, "dead")
	assert.ErrorIs(t, err, pkg.ErrNotFound)

	require.NoError(t, sessions.DeleteByUserID(ctx, user.ID))
	_, err = sessions.GetByRefreshToken(ctx, "live")
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}
