package database_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/biblioteca/internal/database"
	"github.com/mrlokans/biblioteca/internal/database/dbtest"
	"github.com/mrlokans/biblioteca/internal/entities"
)

func TestNewDatabase_AppliesMigrations(t *testing.T) {
	db := dbtest.New(t)

	for _, table := range []string{"usuarios", "lectores", "libros", "prestamos", "audit_events", "settings", "sessions"} {
		assert.True(t, db.DB.Migrator().HasTable(table), "missing table %s", table)
	}
}

func TestNewDatabase_ReopenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")

	first, err := database.NewDatabase(dbPath, database.Options{})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := database.NewDatabase(dbPath, database.Options{MaxOpenConns: 4, MaxIdleConns: 2})
	require.NoError(t, err)
	defer second.Close()

	assert.Equal(t, dbPath, second.Path())
}

func TestConstraints(t *testing.T) {
	db := dbtest.New(t)

	t.Run("available copies above total violates CHECK", func(t *testing.T) {
		err := db.DB.Create(&entities.Book{
			ISBN: "111", Title: "T", Author: "A", TotalCopies: 1, AvailableCopies: 2, Active: true,
		}).Error
		require.Error(t, err)
		assert.True(t, database.IsCheckViolation(err))
	})

	t.Run("duplicate isbn violates UNIQUE", func(t *testing.T) {
		book := dbtest.SeedBook(t, db.DB, 1)
		err := db.DB.Create(&entities.Book{
			ISBN: book.ISBN, Title: "T", Author: "A", TotalCopies: 1, AvailableCopies: 1, Active: true,
		}).Error
		require.Error(t, err)
		assert.True(t, database.IsUniqueViolation(err))
		assert.False(t, database.IsCheckViolation(err))
	})

	t.Run("unknown loan status violates CHECK", func(t *testing.T) {
		staff := dbtest.SeedUser(t, db.DB, entities.UserRoleLibrarian)
		book := dbtest.SeedBook(t, db.DB, 1)
		reader := dbtest.SeedReader(t, db.DB)
		loan := dbtest.SeedLoan(t, db.DB, book, reader, staff, entities.LoanStatusActive, dbtest.Today())

		err := db.DB.Model(&entities.Loan{}).Where("id = ?", loan.ID).Update("status", "BORROWED").Error
		require.Error(t, err)
		assert.True(t, database.IsCheckViolation(err))
	})

	t.Run("loan pointing at missing book violates FOREIGN KEY", func(t *testing.T) {
		staff := dbtest.SeedUser(t, db.DB, entities.UserRoleLibrarian)
		reader := dbtest.SeedReader(t, db.DB)
		err := db.DB.Omit("Book", "Reader").Create(&entities.Loan{
			Code: "PRES-999999", BookID: 424242, ReaderID: reader.ID, IssuedByID: staff.ID,
			Status: entities.LoanStatusActive, ExpectedReturnDate: dbtest.Today(),
		}).Error
		require.Error(t, err)
		assert.True(t, database.IsForeignKeyViolation(err))
	})

	t.Run("deleting staff referenced by a loan violates FOREIGN KEY", func(t *testing.T) {
		staff := dbtest.SeedUser(t, db.DB, entities.UserRoleLibrarian)
		dbtest.SeedLoan(t, db.DB, dbtest.SeedBook(t, db.DB, 1), dbtest.SeedReader(t, db.DB), staff,
			entities.LoanStatusReturned, dbtest.Today())

		// ON DELETE RESTRICT reports SQLITE_CONSTRAINT_TRIGGER, not _FOREIGNKEY.
		err := db.DB.Delete(&entities.User{}, staff.ID).Error
		require.Error(t, err)
		assert.True(t, database.IsForeignKeyViolation(err))
	})

	t.Run("nil error is no violation", func(t *testing.T) {
		assert.False(t, database.IsUniqueViolation(nil))
		assert.False(t, database.IsCheckViolation(nil))
		assert.False(t, database.IsForeignKeyViolation(nil))
	})
}

func TestBackup(t *testing.T) {
	db := dbtest.New(t)
	dbtest.SeedBook(t, db.DB, 3)

	dest := filepath.Join(t.TempDir(), "backup.db")
	require.NoError(t, db.Backup(dest))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	restored, err := database.NewDatabase(dest, database.Options{})
	require.NoError(t, err)
	defer restored.Close()

	var count int64
	require.NoError(t, restored.DB.Model(&entities.Book{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
