package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mrlokans/biblioteca/internal/config"
	"github.com/mrlokans/biblioteca/internal/sysconfig"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Database:     config.Database{Path: filepath.Join(dir, "library.db")},
		SystemConfig: config.SystemConfig{Path: filepath.Join(dir, "system.yaml")},
		Auth: config.Auth{
			SessionLifetime: time.Hour,
			TokenExpiry:     time.Hour,
			BcryptCost:      bcrypt.MinCost,
		},
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestCreateAdmin_ParseFlags(t *testing.T) {
	cfg := testConfig(t)

	err := NewCreateAdminCommand(cfg).ParseFlags([]string{"-email", "a@example.com", "-password", "x"})
	assert.ErrorContains(t, err, "-username")

	err = NewCreateAdminCommand(cfg).ParseFlags([]string{"-username", "root", "-email", "a@example.com"})
	assert.ErrorContains(t, err, AdminPasswordEnv)

	t.Setenv(AdminPasswordEnv, "Circulation1")
	cmd := NewCreateAdminCommand(cfg)
	require.NoError(t, cmd.ParseFlags([]string{"-username", "root", "-email", "a@example.com"}))
	assert.Equal(t, "Circulation1", cmd.Password)
	assert.Equal(t, cfg.Database.Path, cmd.DatabasePath)
}

func TestCreateAdmin_OnlyOnce(t *testing.T) {
	cfg := testConfig(t)
	args := []string{"-username", "root", "-email", "root@example.com", "-password", "Circulation1"}

	cmd := NewCreateAdminCommand(cfg)
	require.NoError(t, cmd.ParseFlags(args))
	require.NoError(t, cmd.Run())

	again := NewCreateAdminCommand(cfg)
	require.NoError(t, again.ParseFlags(args))
	assert.Error(t, again.Run())
}

func TestMaintenanceCommand(t *testing.T) {
	cfg := testConfig(t)
	cmd := NewMaintenanceCommand(cfg)
	require.NoError(t, cmd.ParseFlags(nil))
	assert.NoError(t, cmd.Run())
}

func TestBackupCommand(t *testing.T) {
	cfg := testConfig(t)
	backups := filepath.Join(t.TempDir(), "backups")
	writeFile(t, cfg.SystemConfig.Path, "backup:\n  directory: "+backups+"\n  retention: 2\n")

	cmd := NewBackupCommand(cfg)
	require.NoError(t, cmd.ParseFlags(nil))
	require.NoError(t, cmd.Run())

	entries, err := os.ReadDir(backups)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "valid.yaml")
	invalid := filepath.Join(dir, "invalid.yaml")
	writeFile(t, valid, "fines:\n  daily_rate: 2.5\n")
	writeFile(t, invalid, "session:\n  timeout_minutes: 1000\n")

	cmd := NewConfigValidateCommand()
	require.NoError(t, cmd.ParseFlags([]string{"-file", valid}))
	assert.NoError(t, cmd.Run())

	cmd = NewConfigValidateCommand()
	require.NoError(t, cmd.ParseFlags([]string{"-file", invalid}))
	assert.Error(t, cmd.Run())

	assert.Error(t, NewConfigValidateCommand().ParseFlags(nil))
}

func TestConfigImport(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	bad := filepath.Join(dir, "bad.yaml")
	writeFile(t, good, `{"loans": {"default_days": 21}}`)
	writeFile(t, bad, "loans:\n  default_days: 0\n")

	cmd := NewConfigImportCommand(cfg)
	require.NoError(t, cmd.ParseFlags([]string{"-file", good}))
	require.NoError(t, cmd.Run())

	current, err := sysconfig.ReadFile(cfg.SystemConfig.Path)
	require.NoError(t, err)
	assert.Equal(t, 21, current.Loans.DefaultDays)

	cmd = NewConfigImportCommand(cfg)
	require.NoError(t, cmd.ParseFlags([]string{"-file", bad}))
	assert.Error(t, cmd.Run())

	current, err = sysconfig.ReadFile(cfg.SystemConfig.Path)
	require.NoError(t, err)
	assert.Equal(t, 21, current.Loans.DefaultDays)
}

func TestEnqueueCommand(t *testing.T) {
	cfg := testConfig(t)

	cmd := NewEnqueueCommand(cfg)
	require.NoError(t, cmd.ParseFlags([]string{"-type", "sweep_overdue"}))
	assert.NoError(t, cmd.Run())

	cmd = NewEnqueueCommand(cfg)
	require.NoError(t, cmd.ParseFlags([]string{"-type", "reindex"}))
	assert.Error(t, cmd.Run())
}
