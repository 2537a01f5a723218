package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/biblioteca/internal/database/dbtest"
	"github.com/mrlokans/biblioteca/internal/entities"
)

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	return NewRepository(dbtest.New(t).DB)
}

func TestRepository_SetSetting_New(t *testing.T) {
	repo := setupTestRepo(t)

	err := repo.SetSetting(entities.SettingKeyBackupLastStatus, "success")
	require.NoError(t, err)

	setting, err := repo.GetSetting(entities.SettingKeyBackupLastStatus)
	require.NoError(t, err)
	assert.Equal(t, entities.SettingKeyBackupLastStatus, setting.Key)
	assert.Equal(t, "success", setting.Value)
}

func TestRepository_SetSetting_Overwrite(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.SetSetting("k", "one"))
	require.NoError(t, repo.SetSetting("k", "two"))

	value, err := repo.GetValue("k", "")
	require.NoError(t, err)
	assert.Equal(t, "two", value)
}

func TestRepository_GetValue_Fallback(t *testing.T) {
	repo := setupTestRepo(t)

	value, err := repo.GetValue("missing", "default")
	require.NoError(t, err)
	assert.Equal(t, "default", value)

	_, err = repo.GetSetting("missing")
	assert.ErrorIs(t, err, ErrSettingNotFound)
}

func TestRepository_SetSettings(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.SetSettings(map[string]string{
		entities.SettingKeyMaintenanceLastAt:      "2026-01-01T00:00:00Z",
		entities.SettingKeyMaintenanceLastSummary: "overdue=1",
	}))

	value, err := repo.GetValue(entities.SettingKeyMaintenanceLastSummary, "")
	require.NoError(t, err)
	assert.Equal(t, "overdue=1", value)
}

func TestRepository_DeleteSetting(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.SetSetting("temp", "x"))
	require.NoError(t, repo.DeleteSetting("temp"))

	_, err := repo.GetSetting("temp")
	assert.ErrorIs(t, err, ErrSettingNotFound)
}
