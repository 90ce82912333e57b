package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrPostgresHostEmpty is returned when POSTGRES_HOST is not set.
	ErrPostgresHostEmpty = errors.New("POSTGRES_HOST cannot be empty")
	// ErrMigrationTableEmpty is returned when MIGRATION_TABLE resolves to an empty string.
	ErrMigrationTableEmpty = errors.New("MIGRATION_TABLE cannot be empty")
)

// Config holds all configuration for the migration tool.
type Config struct {
	// DatabaseURL is the PostgreSQL connection string, assembled from POSTGRES_* vars.
	DatabaseURL string

	// MigrationsPath is the path to migration files.
	MigrationsPath string

	// MigrationTable is the name of the table to track migrations.
	MigrationTable string
}

// LoadConfig loads configuration from environment variables with sensible defaults.
func LoadConfig() (*Config, error) {
	host := getEnvOrDefault("POSTGRES_HOST", "")
	if host == "" {
		return nil, ErrPostgresHostEmpty
	}

	config := &Config{
		DatabaseURL:    buildDatabaseURL(host),
		MigrationsPath: getEnvOrDefault("MIGRATIONS_PATH", "./migrations"),
		MigrationTable: getEnvOrDefault("MIGRATION_TABLE", "schema_migrations"),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// buildDatabaseURL composes a postgres:// DSN from POSTGRES_* environment variables.
func buildDatabaseURL(host string) string {
	port := getEnvOrDefault("POSTGRES_PORT", "5432")
	db := getEnvOrDefault("POSTGRES_DB", "gasmarket")
	user := getEnvOrDefault("POSTGRES_USER", "postgres")
	password := getEnvOrDefault("POSTGRES_PASSWORD", "")

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, password),
		Host:   fmt.Sprintf("%s:%s", host, port),
		Path:   "/" + db,
	}

	q := u.Query()
	q.Set("sslmode", getEnvOrDefault("POSTGRES_SSLMODE", "disable"))
	u.RawQuery = q.Encode()

	return u.String()
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return ErrPostgresHostEmpty
	}

	if c.MigrationTable == "" {
		return ErrMigrationTableEmpty
	}

	absPath, err := filepath.Abs(c.MigrationsPath)
	if err != nil {
		return fmt.Errorf("failed to resolve migrations path: %w", err)
	}

	c.MigrationsPath = absPath

	if _, err := os.Stat(c.MigrationsPath); os.IsNotExist(err) {
		return fmt.Errorf("migrations directory does not exist: %s", c.MigrationsPath)
	}

	return nil
}

// String returns a string representation of the configuration safe for logging.
func (c *Config) String() string {
	maskedURL := maskDatabaseURL(c.DatabaseURL)

	return fmt.Sprintf("Config{DatabaseURL: %s, MigrationsPath: %s, MigrationTable: %s}",
		maskedURL, c.MigrationsPath, c.MigrationTable)
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// maskDatabaseURL masks the password component of a postgres DSN for safe logging.
func maskDatabaseURL(dsn string) string {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return dsn
	}

	if parsed.User == nil {
		return dsn
	}

	if _, hasPassword := parsed.User.Password(); hasPassword {
		parsed.User = url.UserPassword(parsed.User.Username(), "***")
	}

	// String percent-encodes "*" inside the userinfo; put the literal mask back.
	return strings.Replace(parsed.String(), ":%2A%2A%2A@", ":***@", 1)
}
