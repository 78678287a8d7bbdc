package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvironmentWithDefaults(t *testing.T) {
	t.Setenv("SN_API_BASE_URL", "https://dev.example.com")
	t.Setenv("SN_API_USERNAME", "introspect")
	t.Setenv("SN_API_PASSWORD", "s3cret")
	t.Setenv("SN_DB_NAME", "sn_backing")
	t.Setenv("SN_DB_USERNAME", "readonly")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "https://dev.example.com", cfg.API.BaseURL)
	assert.Equal(t, "s3cret", cfg.API.Password)
	assert.Equal(t, "v2", cfg.API.Version)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 3, cfg.API.MaxRetries)
	assert.True(t, cfg.API.TLSVerify)
	assert.False(t, cfg.API.AllowInsecure)

	assert.Equal(t, "postgres", cfg.Database.Dialect)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 10, cfg.Database.PoolSize)
	assert.Equal(t, 20, cfg.Database.MaxOverflow)
	assert.Equal(t, 30*time.Second, cfg.Database.StatementTimeout)
	assert.Equal(t, "require", cfg.Database.SSLMode)

	assert.Equal(t, 100, cfg.RateLimit.APIRequests)
	assert.Equal(t, 60*time.Second, cfg.RateLimit.APIWindow)

	assert.Equal(t, 5, cfg.Extraction.Workers)
	assert.Equal(t, 100, cfg.Extraction.PageSize)
	assert.Equal(t, 50, cfg.Extraction.PageCap)
	assert.Equal(t, time.Duration(0), cfg.Extraction.RunTimeout)
}

func TestLoadFromYAMLFile(t *testing.T) {
	content := `
env: production
api:
  base_url: https://prod.example.com
  username: svc_extract
  version: v1
  timeout: 10s
database:
  dialect: sqlserver
  host: db.internal
  port: 1433
  database: sn_backing
  username: readonly
  ssl_mode: disable
extraction:
  workers: 2
  page_size: 25
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("SN_API_PASSWORD", "from-env-only")
	t.Setenv("SN_DB_PASSWORD", "db-from-env-only")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "https://prod.example.com", cfg.API.BaseURL)
	assert.Equal(t, "v1", cfg.API.Version)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, "sqlserver", cfg.Database.Dialect)
	assert.Equal(t, 1433, cfg.Database.Port)
	assert.Equal(t, 2, cfg.Extraction.Workers)
	assert.Equal(t, 25, cfg.Extraction.PageSize)

	// Secrets never come from the file.
	assert.Equal(t, "from-env-only", cfg.API.Password)
	assert.Equal(t, "db-from-env-only", cfg.Database.Password)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	content := `
api:
  base_url: https://file.example.com
  username: file_user
database:
  database: sn_backing
  username: readonly
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("SN_API_BASE_URL", "https://env.example.com")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.API.BaseURL)
	assert.Equal(t, "file_user", cfg.API.Username)
}
