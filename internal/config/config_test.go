package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, int32(8190), cfg.HTTP.Port)
	assert.Equal(t, DefaultDatabasePath, cfg.Database.Path)
	assert.Equal(t, DefaultSystemConfigPath, cfg.SystemConfig.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionLifetime)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.True(t, cfg.Auth.CSRFEnabled)
	assert.Equal(t, 2, cfg.Tasks.Workers)
	assert.Equal(t, 90, cfg.Audit.RetentionDays)
}

func TestNewConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_PATH", "/tmp/lib.db")
	t.Setenv("AUTH_SESSION_LIFETIME", "2h")
	t.Setenv("TASKS_ENABLED", "false")
	t.Setenv("LOG_FORMAT", "console")

	cfg := NewConfig()

	assert.Equal(t, int32(9000), cfg.HTTP.Port)
	assert.Equal(t, "/tmp/lib.db", cfg.Database.Path)
	assert.Equal(t, 2*time.Hour, cfg.Auth.SessionLifetime)
	assert.False(t, cfg.Tasks.Enabled)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadDotEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("AUDIT_RETENTION_DAYS=7\nHOST=127.0.0.1\n"), 0o600))

	t.Setenv("HOST", "10.0.0.1")
	// registers AUDIT_RETENTION_DAYS for restoration after the test
	t.Setenv("AUDIT_RETENTION_DAYS", "")
	require.NoError(t, os.Unsetenv("AUDIT_RETENTION_DAYS"))

	LoadDotEnv(envFile, filepath.Join(t.TempDir(), "missing.env"))

	cfg := NewConfig()
	assert.Equal(t, 7, cfg.Audit.RetentionDays)
	assert.Equal(t, "10.0.0.1", cfg.HTTP.Host, "existing variables are not overridden")
}
