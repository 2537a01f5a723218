package sysconfig

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MissingFileWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "system.yaml")

	m, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), m.Current())

	_, err = os.Stat(path)
	require.NoError(t, err)

	again, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), again.Current())
}

func TestReadFile_Formats(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "system.yaml",
			content: `
fines:
  grace_period_days: 2
  daily_rate: 1.5
  cap: 50
loans:
  max_active_per_reader: 3
`,
		},
		{
			name:    "json",
			file:    "system.json",
			content: `{"fines": {"grace_period_days": 2, "daily_rate": 1.5, "cap": 50}, "loans": {"max_active_per_reader": 3}}`,
		},
		{
			name: "toml",
			file: "system.toml",
			content: `
[fines]
grace_period_days = 2
daily_rate = 1.5
cap = 50

[loans]
max_active_per_reader = 3
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ReadFile(writeFile(t, dir, tt.file, tt.content))
			require.NoError(t, err)
			assert.Equal(t, 2, cfg.Fines.GracePeriodDays)
			assert.Equal(t, 1.5, cfg.Fines.DailyRate)
			assert.Equal(t, 50.0, cfg.Fines.Cap)
			assert.Equal(t, 3, cfg.Loans.MaxActivePerReader)
			// untouched sections keep defaults
			assert.Equal(t, Defaults().Session, cfg.Session)
			assert.Equal(t, Defaults().Loans.DefaultDays, cfg.Loans.DefaultDays)
		})
	}
}

func TestReadFile_Rejects(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name      string
		file      string
		content   string
		wantField string
	}{
		{name: "session timeout too long", file: "a.yaml", content: "session:\n  timeout_minutes: 1000\n", wantField: "session.timeout_minutes"},
		{name: "grace above 30", file: "b.yaml", content: "fines:\n  grace_period_days: 31\n", wantField: "fines.grace_period_days"},
		{name: "rate too small", file: "c.yaml", content: "fines:\n  daily_rate: 0.01\n", wantField: "fines.daily_rate"},
		{name: "cap too large", file: "d.yaml", content: "fines:\n  cap: 20000\n", wantField: "fines.cap"},
		{name: "pool max below min", file: "e.yaml", content: "database:\n  pool_min: 5\n  pool_max: 2\n", wantField: "database.pool_max"},
		{name: "bad cron", file: "f.yaml", content: "backup:\n  schedule: \"every day\"\n", wantField: "backup.schedule"},
		{name: "empty name", file: "g.yaml", content: "system:\n  name: \"\"\n", wantField: "system.name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFile(writeFile(t, dir, tt.file, tt.content))
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			fields := make([]string, 0, len(verr.Fields))
			for _, f := range verr.Fields {
				fields = append(fields, f.Field)
			}
			assert.Contains(t, fields, tt.wantField)
		})
	}
}

func TestReadFile_UnknownKeyAndFormat(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadFile(writeFile(t, dir, "typo.yaml", "fines:\n  dailyrate: 3\n"))
	assert.Error(t, err)

	_, err = ReadFile(writeFile(t, dir, "system.ini", "x=1"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestManager_ImportRejectedKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(filepath.Join(dir, "system.yaml"), nil)
	require.NoError(t, err)

	before := m.Current()
	bad := writeFile(t, dir, "bad.yaml", "session:\n  timeout_minutes: 1000\n")

	got, err := m.Import(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session.timeout_minutes")
	assert.Equal(t, before, got)
	assert.Equal(t, before, m.Current())

	reloaded, err := ReadFile(filepath.Join(dir, "system.yaml"))
	require.NoError(t, err)
	assert.Equal(t, before, reloaded, "file on disk is untouched")
}

func TestManager_ImportAppliesAndBacksUp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "system.yaml")
	m, err := Load(path, nil)
	require.NoError(t, err)

	original, err := os.ReadFile(path)
	require.NoError(t, err)

	var notified []Configuration
	m.OnChange(func(c Configuration) { notified = append(notified, c) })

	good := writeFile(t, dir, "good.json", `{"system": {"maintenance_mode": true}, "fines": {"cap": 25}}`)
	got, err := m.Import(good)
	require.NoError(t, err)
	assert.True(t, got.System.MaintenanceMode)
	assert.Equal(t, 25.0, m.Current().Fines.Cap)
	require.Len(t, notified, 1)

	backup, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)
	assert.Equal(t, original, backup)

	persisted, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, m.Current(), persisted)
}

func TestManager_Update(t *testing.T) {
	m := NewStatic(Defaults())

	_, err := m.Update(func(c *Configuration) { c.Loans.MaxActivePerReader = 2 })
	require.NoError(t, err)
	assert.Equal(t, 2, m.Current().Loans.MaxActivePerReader)

	_, err = m.Update(func(c *Configuration) { c.Session.TimeoutMinutes = 1 })
	assert.Error(t, err)
	assert.Equal(t, 30, m.Current().Session.TimeoutMinutes)
}

func TestManager_Export(t *testing.T) {
	m := NewStatic(Defaults())

	var buf bytes.Buffer
	require.NoError(t, m.Export(&buf))
	assert.Contains(t, buf.String(), "grace_period_days: 3")
	assert.Contains(t, buf.String(), "maintenance_mode: false")
}

func TestConfiguration_FinePolicy(t *testing.T) {
	p := Defaults().FinePolicy()
	assert.Equal(t, 3, p.GraceDays)
	assert.Equal(t, "5", p.DailyRate.String())
	assert.Equal(t, "100", p.Cap.String())
}
