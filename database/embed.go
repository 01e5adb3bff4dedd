package database

import (
	"embed"
	"io/fs"
)

// embeddedMigrations holds the SQL files of every dialect, compiled into the
// binary so a deploy does not need the migrations directory next to it.
//
//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var embeddedMigrations embed.FS

// Migrations returns the migration files of the given driver.
func Migrations(driver string) (fs.FS, error) {
	dir := "migrations/sqlite"
	if driver == DriverPgx {
		dir = "migrations/postgres"
	}
	return fs.Sub(embeddedMigrations, dir)
}
