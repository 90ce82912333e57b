// Package storage implements the two persistence variants behind the
// ingestion engine's storage interfaces: a flat variant (meta_series /
// data_observations) and a relational variant (meta.series / meta.assets /
// energy.daily) used exclusively by the GIE adapters.
package storage

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gasmarket-eu/ingestor/internal/config"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 10 * time.Minute
)

// ErrPostgresHostEmpty is returned when POSTGRES_HOST is not set.
var ErrPostgresHostEmpty = errors.New("POSTGRES_HOST cannot be empty")

// Config holds PostgreSQL connection configuration with production-ready
// defaults.
type Config struct {
	databaseURL     string
	MaxOpenConns    int           // Maximum number of open connections
	MaxIdleConns    int           // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of connections
	ConnMaxIdleTime time.Duration // Maximum idle time for connections
}

// LoadConfig loads PostgreSQL configuration from POSTGRES_* and
// DATABASE_MAX_* environment variables, with fallback to defaults.
func LoadConfig() *Config {
	host := config.GetEnvStr("POSTGRES_HOST", "")

	return &Config{
		databaseURL:     buildDatabaseURL(host),
		MaxOpenConns:    config.GetEnvInt("DATABASE_MAX_OPEN_CONNS", defaultMaxOpenConns),
		MaxIdleConns:    config.GetEnvInt("DATABASE_MAX_IDLE_CONNS", defaultMaxIdleConns),
		ConnMaxLifetime: config.GetEnvDuration("DATABASE_CONN_MAX_LIFETIME", defaultConnMaxLifetime),
		ConnMaxIdleTime: config.GetEnvDuration("DATABASE_CONN_MAX_IDLE_TIME", defaultConnMaxIdleTime),
	}
}

func buildDatabaseURL(host string) string {
	if host == "" {
		return ""
	}

	port := config.GetEnvStr("POSTGRES_PORT", "5432")
	db := config.GetEnvStr("POSTGRES_DB", "gasmarket")
	user := config.GetEnvStr("POSTGRES_USER", "postgres")
	password := config.GetEnvStr("POSTGRES_PASSWORD", "")

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, password),
		Host:   fmt.Sprintf("%s:%s", host, port),
		Path:   "/" + db,
	}

	q := u.Query()
	q.Set("sslmode", config.GetEnvStr("POSTGRES_SSLMODE", "disable"))
	u.RawQuery = q.Encode()

	return u.String()
}

// Validate checks if the PostgreSQL configuration is valid.
func (c *Config) Validate() error {
	if c.databaseURL == "" {
		return ErrPostgresHostEmpty
	}

	return nil
}

// MaskDatabaseURL returns a masked databaseURL safe for logging.
func (c *Config) MaskDatabaseURL() string {
	if c.databaseURL == "" {
		return ""
	}

	parsed, err := url.Parse(c.databaseURL)
	if err != nil {
		return c.databaseURL
	}

	if parsed.User != nil {
		if _, hasPassword := parsed.User.Password(); hasPassword {
			parsed.User = url.UserPassword(parsed.User.Username(), "***")
		}
	}

	// String percent-encodes "*" inside the userinfo; put the literal mask back.
	return strings.Replace(parsed.String(), ":%2A%2A%2A@", ":***@", 1)
}
