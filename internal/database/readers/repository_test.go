package readers

import (
	"fmt"
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

func newReader(n int) *entities.Reader {
	return &entities.Reader{
		Code:                fmt.Sprintf("LEC-%06d", n),
		DocumentNumber:      fmt.Sprintf("DOC-%d", n),
		FirstName:           "Ana",
		LastName:            fmt.Sprintf("Perez %d", n),
		Email:               fmt.Sprintf("ana%d@example.com", n),
		Status:              entities.ReaderStatusActive,
		MembershipExpiresAt: dbtest.Today().AddDate(0, 6, 0),
	}
}

func TestRepository_CreateReader(t *testing.T) {
	repo := setupTestRepo(t)

	reader := newReader(1)
	require.NoError(t, repo.CreateReader(reader))
	assert.NotZero(t, reader.ID)

	got, err := repo.GetReaderByCode("LEC-000001")
	require.NoError(t, err)
	assert.Equal(t, reader.ID, got.ID)
	assert.Equal(t, "Ana Perez 1", got.FullName())
}

func TestRepository_CreateReader_Conflicts(t *testing.T) {
	repo := setupTestRepo(t)
	require.NoError(t, repo.CreateReader(newReader(1)))

	sameCode := newReader(2)
	sameCode.Code = "LEC-000001"
	assert.ErrorIs(t, repo.CreateReader(sameCode), ErrCodeConflict)

	sameEmail := newReader(3)
	sameEmail.Email = "ana1@example.com"
	assert.ErrorIs(t, repo.CreateReader(sameEmail), ErrDuplicateReader)
}

func TestRepository_GetReaderByID_NotFound(t *testing.T) {
	repo := setupTestRepo(t)
	_, err := repo.GetReaderByID(12)
	assert.ErrorIs(t, err, ErrReaderNotFound)
}

func TestRepository_SetStatus(t *testing.T) {
	repo := setupTestRepo(t)
	reader := newReader(1)
	require.NoError(t, repo.CreateReader(reader))

	require.NoError(t, repo.SetStatus(reader.ID, entities.ReaderStatusSuspended))
	got, err := repo.GetReaderByID(reader.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.ReaderStatusSuspended, got.Status)

	assert.ErrorIs(t, repo.SetStatus(reader.ID, "BANNED"), ErrInvalidStatus)
	assert.ErrorIs(t, repo.SetStatus(999, entities.ReaderStatusActive), ErrReaderNotFound)
}

func TestRepository_ExpireMemberships(t *testing.T) {
	repo := setupTestRepo(t)
	today := dbtest.Today()

	lapsed := newReader(1)
	lapsed.MembershipExpiresAt = today.AddDate(0, 0, -1)
	require.NoError(t, repo.CreateReader(lapsed))

	suspended := newReader(2)
	suspended.MembershipExpiresAt = today.AddDate(0, -1, 0)
	suspended.Status = entities.ReaderStatusSuspended
	require.NoError(t, repo.CreateReader(suspended))

	inactive := newReader(3)
	inactive.MembershipExpiresAt = today.AddDate(0, -1, 0)
	inactive.Status = entities.ReaderStatusInactive
	require.NoError(t, repo.CreateReader(inactive))

	lastDay := newReader(4)
	lastDay.MembershipExpiresAt = today
	require.NoError(t, repo.CreateReader(lastDay))

	n, err := repo.ExpireMemberships(today)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.ExpireMemberships(today)
	require.NoError(t, err)
	assert.Zero(t, n)

	for id, want := range map[uint]entities.ReaderStatus{
		lapsed.ID:    entities.ReaderStatusExpired,
		suspended.ID: entities.ReaderStatusExpired,
		inactive.ID:  entities.ReaderStatusInactive,
		lastDay.ID:   entities.ReaderStatusActive,
	} {
		got, err := repo.GetReaderByID(id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Status, "reader %d", id)
	}
}

func TestRepository_ListReaders(t *testing.T) {
	repo := setupTestRepo(t)
	for i := 1; i <= 3; i++ {
		require.NoError(t, repo.CreateReader(newReader(i)))
	}
	require.NoError(t, repo.SetStatus(3, entities.ReaderStatusSuspended))

	readers, total, err := repo.ListReaders(SearchFilter{Query: "perez"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, readers, 3)

	readers, total, err = repo.ListReaders(SearchFilter{Status: entities.ReaderStatusSuspended})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "LEC-000003", readers[0].Code)

	readers, _, err = repo.ListReaders(SearchFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, readers, 1)

	count, err := repo.CountByStatus(entities.ReaderStatusActive)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestRepository_UpdateReaderDetails(t *testing.T) {
	repo := setupTestRepo(t)
	a, b := newReader(1), newReader(2)
	require.NoError(t, repo.CreateReader(a))
	require.NoError(t, repo.CreateReader(b))

	require.NoError(t, repo.UpdateReaderDetails(a.ID, map[string]any{"phone": "555-0101"}))
	got, err := repo.GetReaderByID(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "555-0101", got.Phone)

	err = repo.UpdateReaderDetails(a.ID, map[string]any{"email": b.Email})
	assert.ErrorIs(t, err, ErrDuplicateReader)
}
