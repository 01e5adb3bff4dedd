// Package config manages the service configuration in one place.
// Values come from environment variables; a .env file is loaded first when
// present (development convenience).
//
// Every concern has its own sub-struct so a component only receives the part
// it needs (cfg.Database, cfg.JWT, ...).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every configuration value of the service.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Redis    RedisConfig
	Email    EmailConfig
	Chat     ChatConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string
	Port        int
	CORSOrigins []string
}

// DatabaseConfig selects the SQL driver behind the document store and the
// user tables.
type DatabaseConfig struct {
	Driver string // "sqlite" (default) or "pgx"
	Path   string // SQLite file path (e.g. ./data/runeshop.db)
	URL    string // PostgreSQL DSN, used when Driver is "pgx"
}

// JWTConfig holds token settings.
type JWTConfig struct {
	Secret             string // signing key, keep it secret
	AccessTokenExpiry  int    // minutes (default 15)
	RefreshTokenExpiry int    // days (default 7)
	AdminEmails        []string
}

// RedisConfig enables the cross-instance change feed. Empty URL = single instance.
type RedisConfig struct {
	URL     string
	Channel string
}

// EmailConfig configures the admin notification sender (Resend).
// Empty APIKey disables email.
type EmailConfig struct {
	ResendAPIKey string
	From         string
	AdminNotify  string
}

// ChatConfig holds chat tuning knobs.
type ChatConfig struct {
	GuestEmail      string
	MessageMax      int           // messages per window
	MessageWindow   time.Duration // rate limit window
	MessageCooldown time.Duration // penalty once the limit is hit
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string
}

// Load builds a Config from the environment.
func Load() (*Config, error) {
	// Missing .env is fine; production uses real env variables.
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("SERVER_PORT", "9090"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	accessExpiry, err := strconv.Atoi(getEnv("JWT_ACCESS_EXPIRY_MINUTES", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_ACCESS_EXPIRY_MINUTES: %w", err)
	}

	refreshExpiry, err := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRY_DAYS", "7"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_REFRESH_EXPIRY_DAYS: %w", err)
	}

	messageMax, err := strconv.Atoi(getEnv("CHAT_MESSAGE_MAX", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid CHAT_MESSAGE_MAX: %w", err)
	}

	messageWindow, err := time.ParseDuration(getEnv("CHAT_MESSAGE_WINDOW", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid CHAT_MESSAGE_WINDOW: %w", err)
	}

	messageCooldown, err := time.ParseDuration(getEnv("CHAT_MESSAGE_COOLDOWN", "15s"))
	if err != nil {
		return nil, fmt.Errorf("invalid CHAT_MESSAGE_COOLDOWN: %w", err)
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	driver := getEnv("DATABASE_DRIVER", "sqlite")
	if driver != "sqlite" && driver != "pgx" {
		return nil, fmt.Errorf("invalid DATABASE_DRIVER %q: use sqlite or pgx", driver)
	}

	dbURL := getEnv("DATABASE_URL", "")
	if driver == "pgx" && dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when DATABASE_DRIVER=pgx")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        port,
			CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:9000,http://localhost:8080")),
		},
		Database: DatabaseConfig{
			Driver: driver,
			Path:   getEnv("DATABASE_PATH", "./data/runeshop.db"),
			URL:    dbURL,
		},
		JWT: JWTConfig{
			Secret:             jwtSecret,
			AccessTokenExpiry:  accessExpiry,
			RefreshTokenExpiry: refreshExpiry,
			AdminEmails:        splitList(strings.ToLower(getEnv("ADMIN_EMAILS", ""))),
		},
		Redis: RedisConfig{
			URL:     getEnv("REDIS_URL", ""),
			Channel: getEnv("REDIS_CHANNEL", "runeshop:docstore"),
		},
		Email: EmailConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			From:         getEnv("EMAIL_FROM", "noreply@runeshop.local"),
			AdminNotify:  getEnv("ADMIN_NOTIFY_EMAIL", ""),
		},
		Chat: ChatConfig{
			GuestEmail:      getEnv("CHAT_GUEST_EMAIL", "guest@example.com"),
			MessageMax:      messageMax,
			MessageWindow:   messageWindow,
			MessageCooldown: messageCooldown,
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	return cfg, nil
}

// Addr returns the listen address (e.g. "0.0.0.0:9090").
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv reads an environment variable, falling back when unset.
func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

// splitList turns "a, b,,c" into ["a" "b" "c"].
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
