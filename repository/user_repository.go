// Package repository is the SQL access layer for the identity provider
// tables. Services never write SQL; they depend on these interfaces.
//
// Every implementation takes a database.TxQuerier, so the same code runs on
// the pool or inside database.WithTx, on SQLite or PostgreSQL.
package repository

import (
	"context"

	"github.com/akinalp/runeshop/models"
)

// UserRepository stores identity provider accounts.
type UserRepository interface {
	// Create assigns user.ID and user.CreatedAt. A taken email returns
	// pkg.ErrAlreadyExists.
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// SetAdmin keeps is_admin in line with the ADMIN_EMAILS setting.
	SetAdmin(ctx context.Context, userID string, isAdmin bool) error
	Count(ctx context.Context) (int, error)
}
