package main

import (
	"github.com/akinalp/runeshop/database"
	"github.com/akinalp/runeshop/repository"
)

// Repositories holds the SQL repositories.
type Repositories struct {
	User    repository.UserRepository
	Session repository.SessionRepository
}

func initRepositories(db *database.DB) *Repositories {
	q := db.Querier()
	return &Repositories{
		User:    repository.NewUserRepo(q),
		Session: repository.NewSessionRepo(q),
	}
}
