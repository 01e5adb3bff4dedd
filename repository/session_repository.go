package repository

import (
	"context"

	"github.com/akinalp/runeshop/models"
)

// SessionRepository stores refresh token sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByRefreshToken(ctx context.Context, token string) (*models.Session, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired removes sessions past their expiry and returns how many.
	DeleteExpired(ctx context.Context) (int64, error)
}
