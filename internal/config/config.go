// Package config provides application configuration loaded from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Mail     MailConfig
	App      AppConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
	// TrustProxy honors X-Forwarded-For/X-Real-IP. Enable only behind a
	// reverse proxy that sets them.
	TrustProxy bool
}

// DatabaseConfig holds connection settings for PostgreSQL or SQLite.
type DatabaseConfig struct {
	Driver     string // "postgres" or "sqlite"
	RawDSN     string // explicit DATABASE_DSN, takes precedence over the discrete fields
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	SSLMode    string
	SQLitePath string
}

// AuthConfig holds token secrets, OAuth credentials and login tuning.
type AuthConfig struct {
	SessionSecret      string
	TokenSecret        string
	GoogleClientID     string
	GoogleClientSecret string
	PhoneRegion        string
	RateLimit          int // requests per minute per IP on auth routes
}

// MailConfig holds outbound SMTP settings. An empty Host selects the log mailer.
type MailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev        bool
	Migrations bool
	BaseURL    string
	LogLevel   string
}

// DSN returns the PostgreSQL connection string in key=value format.
func (d DatabaseConfig) DSN() string {
	if d.DSNOverride() != "" {
		return d.DSNOverride()
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// DSNOverride returns the trimmed, unquoted DATABASE_DSN value if any.
func (d DatabaseConfig) DSNOverride() string {
	return strings.Trim(strings.TrimSpace(d.RawDSN), "\"'")
}

// GoogleEnabled reports whether OAuth login with Google is configured.
func (a AuthConfig) GoogleEnabled() bool {
	return a.GoogleClientID != "" && a.GoogleClientSecret != ""
}

// SecureCookies reports whether cookies should carry the Secure flag.
func (a AppConfig) SecureCookies() bool {
	return strings.HasPrefix(strings.ToLower(a.BaseURL), "https://")
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
			TrustProxy:   getEnvBool("TRUSTED_PROXY", false),
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			RawDSN:     os.Getenv("DATABASE_DSN"),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnvInt("DB_PORT", 5432),
			User:       getEnv("DB_USER", "freelance"),
			Password:   getEnv("DB_PASSWORD", "freelance123"),
			DBName:     getEnv("DB_NAME", "freelance"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			SQLitePath: getEnv("SQLITE_PATH", "freelance.db"),
		},
		Auth: AuthConfig{
			SessionSecret:      os.Getenv("SESSION_SECRET"),
			TokenSecret:        os.Getenv("TOKEN_SECRET"),
			GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			PhoneRegion:        strings.ToUpper(getEnv("PHONE_REGION", "US")),
			RateLimit:          getEnvInt("AUTH_RATE_LIMIT", 10),
		},
		Mail: MailConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getEnvInt("SMTP_PORT", 587),
			User:     os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getEnv("MAIL_FROM", "no-reply@localhost"),
		},
		App: AppConfig{
			Dev:        getEnvBool("DEV", true),
			Migrations: getEnvBool("MIGRATIONS", true),
			BaseURL:    strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/"),
			LogLevel:   getEnv("LOG_LEVEL", "info"),
		},
	}
}

// Validate checks settings that have no safe default. In dev mode missing
// secrets are replaced with fixed development values instead.
func (c *Config) Validate() error {
	if c.Auth.SessionSecret == "" || c.Auth.TokenSecret == "" {
		if !c.App.Dev {
			return errors.New("SESSION_SECRET and TOKEN_SECRET are required")
		}
		if c.Auth.SessionSecret == "" {
			c.Auth.SessionSecret = "dev-session-secret"
		}
		if c.Auth.TokenSecret == "" {
			c.Auth.TokenSecret = "dev-token-secret"
		}
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Auth.RateLimit <= 0 {
		return errors.New("AUTH_RATE_LIMIT must be positive")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}
