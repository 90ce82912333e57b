package storage

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearPostgresEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		"POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_DB", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_SSLMODE",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadConfig_MissingHost(t *testing.T) {
	clearPostgresEnv(t)

	config := LoadConfig()
	require.ErrorIs(t, config.Validate(), ErrPostgresHostEmpty)
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearPostgresEnv(t)
	t.Setenv("POSTGRES_HOST", "localhost")

	config := LoadConfig()
	require.NoError(t, config.Validate())
	assert.Equal(t, defaultMaxOpenConns, config.MaxOpenConns)
	assert.Equal(t, defaultMaxIdleConns, config.MaxIdleConns)
}

func TestConfig_MaskDatabaseURL(t *testing.T) {
	clearPostgresEnv(t)
	t.Setenv("POSTGRES_HOST", "localhost")
	t.Setenv("POSTGRES_PASSWORD", "secret")

	config := LoadConfig()
	masked := config.MaskDatabaseURL()
	assert.NotContains(t, masked, "secret")
	assert.Contains(t, masked, "postgres:***@localhost")
}
