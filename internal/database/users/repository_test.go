package users

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/biblioteca/internal/database/dbtest"
	"github.com/mrlokans/biblioteca/internal/entities"
)

func setupTestDB(t *testing.T) (*Repository, *gorm.DB) {
	t.Helper()
	db := dbtest.New(t).DB
	return NewRepository(db), db
}

func newUser(username string) *entities.User {
	return &entities.User{
		Username:     username,
		Email:        username + "@example.com",
		FullName:     "Test " + username,
		PasswordHash: "hash",
		Role:         entities.UserRoleLibrarian,
		Active:       true,
	}
}

func TestRepository_CreateUser(t *testing.T) {
	repo, _ := setupTestDB(t)

	user := newUser("testuser")
	require.NoError(t, repo.CreateUser(user))
	assert.NotZero(t, user.ID)

	got, err := repo.GetUserByUsername("testuser")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, entities.UserRoleLibrarian, got.Role)

	assert.ErrorIs(t, repo.CreateUser(newUser("testuser")), ErrDuplicateUser)
}

func TestRepository_CreateUser_InvalidRole(t *testing.T) {
	repo, _ := setupTestDB(t)

	user := newUser("ghost")
	user.Role = "JANITOR"
	assert.Error(t, repo.CreateUser(user))
}

func TestRepository_GetUser_NotFound(t *testing.T) {
	repo, _ := setupTestDB(t)

	_, err := repo.GetUserByID(99)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = repo.GetUserByUsername("nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = repo.GetUserByTokenHash("")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRepository_LoginFailuresLockAccount(t *testing.T) {
	repo, _ := setupTestDB(t)
	user := newUser("locked")
	require.NoError(t, repo.CreateUser(user))

	until := time.Now().UTC().Add(15 * time.Minute)
	for i := 0; i < 2; i++ {
		require.NoError(t, repo.RecordLoginFailure(user.ID, 3, until))
	}

	got, err := repo.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.FailedLoginCount)
	assert.Nil(t, got.LockedUntil)

	require.NoError(t, repo.RecordLoginFailure(user.ID, 3, until))
	got, err = repo.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.Zero(t, got.FailedLoginCount)
	require.NotNil(t, got.LockedUntil)
	assert.WithinDuration(t, until, *got.LockedUntil, time.Second)

	require.NoError(t, repo.RecordLoginSuccess(user.ID, time.Now().UTC()))
	got, err = repo.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LockedUntil)
	assert.NotNil(t, got.LastAccessAt)
}

func TestRepository_TokenHash(t *testing.T) {
	repo, _ := setupTestDB(t)
	user := newUser("api")
	require.NoError(t, repo.CreateUser(user))

	now := time.Now().UTC()
	require.NoError(t, repo.SetTokenHash(user.ID, "abc123", &now))

	got, err := repo.GetUserByTokenHash("abc123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	require.NoError(t, repo.SetTokenHash(user.ID, "", nil))
	_, err = repo.GetUserByTokenHash("abc123")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRepository_SetActiveAndPassword(t *testing.T) {
	repo, _ := setupTestDB(t)
	user := newUser("soft")
	require.NoError(t, repo.CreateUser(user))

	require.NoError(t, repo.SetActive(user.ID, false))
	require.NoError(t, repo.UpdatePassword(user.ID, "newhash", time.Now().UTC()))

	got, err := repo.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Equal(t, "newhash", got.PasswordHash)
	assert.NotNil(t, got.PasswordChangedAt)

	assert.ErrorIs(t, repo.SetActive(404, true), ErrUserNotFound)
}

func TestRepository_DeleteUser(t *testing.T) {
	repo, db := setupTestDB(t)

	free := newUser("free")
	require.NoError(t, repo.CreateUser(free))
	require.NoError(t, repo.DeleteUser(free.ID))
	assert.ErrorIs(t, repo.DeleteUser(free.ID), ErrUserNotFound)

	busy := newUser("busy")
	require.NoError(t, repo.CreateUser(busy))
	dbtest.SeedLoan(t, db, dbtest.SeedBook(t, db, 1), dbtest.SeedReader(t, db), busy,
		entities.LoanStatusReturned, dbtest.Today())
	assert.ErrorIs(t, repo.DeleteUser(busy.ID), ErrUserReferenced)

	count, err := repo.CountUsers()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	all, err := repo.ListUsers()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "busy", all[0].Username)
}
