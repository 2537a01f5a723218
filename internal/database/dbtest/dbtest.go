// Package dbtest opens migrated sqlite databases for tests and seeds fixtures.
package dbtest

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/biblioteca/internal/database"
	"github.com/mrlokans/biblioteca/internal/entities"
)

var seq atomic.Int64

// New returns a freshly migrated database in t.TempDir(). It is closed on cleanup.
func New(t testing.TB) *database.Database {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := database.NewDatabase(dbPath, database.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// Today is the UTC midnight of the current day.
func Today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// SeedUser inserts an active staff user with the given role.
func SeedUser(t testing.TB, db *gorm.DB, role entities.UserRole) *entities.User {
	t.Helper()
	n := seq.Add(1)
	user := &entities.User{
		Username:     fmt.Sprintf("staff%d", n),
		Email:        fmt.Sprintf("staff%d@example.com", n),
		FullName:     fmt.Sprintf("Staff %d", n),
		PasswordHash: "x",
		Role:         role,
		Active:       true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// SeedBook inserts an active book with all copies available.
func SeedBook(t testing.TB, db *gorm.DB, copies int) *entities.Book {
	t.Helper()
	n := seq.Add(1)
	book := &entities.Book{
		ISBN:            fmt.Sprintf("978%010d", n),
		Title:           fmt.Sprintf("Book %d", n),
		Author:          "Author",
		Category:        "Fiction",
		TotalCopies:     copies,
		AvailableCopies: copies,
		Active:          true,
	}
	require.NoError(t, db.Create(book).Error)
	return book
}

// SeedReader inserts an ACTIVE reader whose membership runs for another year.
func SeedReader(t testing.TB, db *gorm.DB) *entities.Reader {
	t.Helper()
	n := seq.Add(1)
	reader := &entities.Reader{
		Code:                fmt.Sprintf("TST-R-%06d", n),
		DocumentNumber:      fmt.Sprintf("DOC%d", n),
		FirstName:           "Reader",
		LastName:            fmt.Sprintf("%d", n),
		Email:               fmt.Sprintf("reader%d@example.com", n),
		Status:              entities.ReaderStatusActive,
		MembershipExpiresAt: Today().AddDate(1, 0, 0),
	}
	require.NoError(t, db.Create(reader).Error)
	return reader
}

// SeedLoan inserts a loan row directly, without touching availability.
func SeedLoan(t testing.TB, db *gorm.DB, book *entities.Book, reader *entities.Reader, staff *entities.User, status entities.LoanStatus, due time.Time) *entities.Loan {
	t.Helper()
	n := seq.Add(1)
	loan := &entities.Loan{
		Code:               fmt.Sprintf("TST-L-%06d", n),
		BookID:             book.ID,
		ReaderID:           reader.ID,
		IssuedByID:         staff.ID,
		IssuedAt:           time.Now().UTC(),
		ExpectedReturnDate: due,
		Status:             status,
	}
	if status == entities.LoanStatusReturned {
		at := time.Now().UTC()
		loan.ReturnedAt = &at
		loan.ReturnedByID = &staff.ID
	}
	require.NoError(t, db.Omit("Book", "Reader").Create(loan).Error)
	return loan
}
