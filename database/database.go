// Package database owns the SQL connection and the migration runner.
//
// Two drivers are supported through database/sql:
//   - "sqlite": modernc.org/sqlite, pure Go, no CGO (default, single node)
//   - "pgx":    github.com/jackc/pgx/v5/stdlib, PostgreSQL (multi node)
//
// SQL in this repository is written with "?" placeholders. The DB wrapper
// rebinds them to "$1, $2, ..." for PostgreSQL (see Rebind).
package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "modernc.org/sqlite"             // registers "sqlite"

	"github.com/akinalp/runeshop/pkg/logger"
)

// Supported driver names.
const (
	DriverSQLite = "sqlite"
	DriverPgx    = "pgx"
)

// recoverableErrors are migration errors that are safe to skip: a
// half-applied migration re-adding a column that already exists.
var recoverableErrors = []string{
	"duplicate column name", // sqlite
	"already exists",        // postgres
}

// DB wraps the connection pool together with its driver name.
// *sql.DB is goroutine safe; a single DB is shared by every repository.
type DB struct {
	Conn   *sql.DB
	Driver string
}

// New opens a SQLite database at dbPath and applies migrations.
func New(dbPath string, migrationsFS fs.FS) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// foreign_keys is off by default in SQLite. WAL gives concurrent readers.
	// busy_timeout makes a second writer wait instead of failing with SQLITE_BUSY.
	conn, err := sql.Open(DriverSQLite, dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer; one connection keeps transactions strictly
	// serialised instead of racing for the write lock.
	conn.SetMaxOpenConns(1)

	return open(conn, DriverSQLite, migrationsFS)
}

// NewPostgres opens a PostgreSQL database through pgx and applies migrations.
func NewPostgres(dsn string, migrationsFS fs.FS) (*DB, error) {
	conn, err := sql.Open(DriverPgx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(25)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return open(conn, DriverPgx, migrationsFS)
}

func open(conn *sql.DB, driver string, migrationsFS fs.FS) (*DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{Conn: conn, Driver: driver}

	if err := db.runMigrations(migrationsFS); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log := logger.Module("database")
	log.Info().Str("driver", driver).Msg("connected and migrations applied")
	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.Conn.Close()
}

// Querier returns the pool as a TxQuerier that rebinds placeholders for the
// active driver. Repositories are built on top of it.
func (db *DB) Querier() TxQuerier {
	return rebinder{q: db.Conn, driver: db.Driver}
}

// Rebind rewrites "?" placeholders for the active driver.
func (db *DB) Rebind(query string) string {
	return Rebind(db.Driver, query)
}

// Rebind rewrites "?" placeholders into "$n" for PostgreSQL. Question marks
// inside single-quoted literals are left alone.
func Rebind(driver, query string) string {
	if driver != DriverPgx || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	inString := false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '\'':
			inString = !inString
			b.WriteByte(ch)
		case ch == '?' && !inString:
			n++
			b.WriteByte('$')
			b.WriteString(fmt.Sprint(n))
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// runMigrations applies the .sql files of migrationsFS in lexical order
// (001_init.sql, 002_...). schema_migrations records what already ran so
// non-idempotent statements are never replayed.
func (db *DB) runMigrations(migrationsFS fs.FS) error {
	log := logger.Module("database")

	if _, err := db.Conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, ".")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			sqlFiles = append(sqlFiles, entry.Name())
		}
	}
	sort.Strings(sqlFiles)

	applied := make(map[string]bool)
	rows, err := db.Conn.Query("SELECT filename FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("failed to query schema_migrations: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[name] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to iterate migration rows: %w", err)
	}
	// Closed before the loop below: with a single SQLite connection an open
	// cursor would block every following Exec.
	rows.Close()

	for _, file := range sqlFiles {
		if applied[file] {
			continue
		}

		content, err := fs.ReadFile(migrationsFS, file)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file, err)
		}

		if err := db.execStatements(file, string(content)); err != nil {
			return err
		}

		if _, err := db.Conn.Exec(
			db.Rebind("INSERT INTO schema_migrations (filename) VALUES (?)"), file,
		); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", file, err)
		}

		log.Info().Str("file", file).Msg("migration applied")
	}

	return nil
}

// execStatements runs a migration file statement by statement so recoverable
// errors can be skipped individually.
func (db *DB) execStatements(filename, content string) error {
	log := logger.Module("database")

	for i, stmt := range splitStatements(content) {
		if _, err := db.Conn.Exec(stmt); err != nil {
			errMsg := err.Error()
			recoverable := false
			for _, pattern := range recoverableErrors {
				if strings.Contains(errMsg, pattern) {
					recoverable = true
					break
				}
			}

			if recoverable {
				log.Warn().Str("file", filename).Int("statement", i+1).Str("reason", errMsg).Msg("statement skipped")
				continue
			}

			return fmt.Errorf("failed to execute migration %s (statement %d): %w", filename, i+1, err)
		}
	}

	return nil
}

// splitStatements splits SQL text on ";" while ignoring semicolons inside
// single-quoted literals. Line comments ("-- ...") are dropped.
func splitStatements(sql string) []string {
	var statements []string
	var current strings.Builder
	inString := false

	for i := 0; i < len(sql); i++ {
		ch := sql[i]

		if !inString && ch == '-' && i+1 < len(sql) && sql[i+1] == '-' {
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
			current.WriteByte('\n')
			continue
		}

		if ch == '\'' {
			// '' inside a literal is an escaped quote
			if inString && i+1 < len(sql) && sql[i+1] == '\'' {
				current.WriteByte(ch)
				current.WriteByte(sql[i+1])
				i++
				continue
			}
			inString = !inString
		}

		if ch == ';' && !inString {
			if s := strings.TrimSpace(current.String()); s != "" {
				statements = append(statements, s)
			}
			current.Reset()
			continue
		}

		current.WriteByte(ch)
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		statements = append(statements, s)
	}

	return statements
}
