package circulation

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/biblioteca/internal/audit"
	"github.com/mrlokans/biblioteca/internal/auth"
	"github.com/mrlokans/biblioteca/internal/database/books"
	"github.com/mrlokans/biblioteca/internal/database/dbtest"
	"github.com/mrlokans/biblioteca/internal/database/loans"
	"github.com/mrlokans/biblioteca/internal/entities"
	"github.com/mrlokans/biblioteca/internal/sysconfig"
)

var day0 = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

// date is midnight UTC, days after day0.
func date(days int) time.Time {
	return time.Date(2025, 3, 10+days, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	svc       *Service
	db        *gorm.DB
	admin     auth.Principal
	librarian auth.Principal
	staff     *entities.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t).DB
	admin := dbtest.SeedUser(t, db, entities.UserRoleAdmin)
	lib := dbtest.SeedUser(t, db, entities.UserRoleLibrarian)

	svc := NewService(db, sysconfig.NewStatic(sysconfig.Defaults()), nil, nil, nil)
	svc.now = func() time.Time { return day0 }
	return &fixture{
		svc:       svc,
		db:        db,
		admin:     auth.Principal{UserID: admin.ID, Username: admin.Username, Role: admin.Role},
		librarian: auth.Principal{UserID: lib.ID, Username: lib.Username, Role: lib.Role},
		staff:     lib,
	}
}

// at moves the service clock by days from day0.
func (f *fixture) at(days int) {
	f.svc.now = func() time.Time { return date(days) }
}

func (f *fixture) book(t *testing.T, id uint) *entities.Book {
	t.Helper()
	b, err := books.NewRepository(f.db).GetBookByID(id)
	require.NoError(t, err)
	return b
}

func (f *fixture) issue(t *testing.T, book *entities.Book, reader *entities.Reader) *entities.Loan {
	t.Helper()
	loan, err := f.svc.CreateLoan(context.Background(), f.librarian, IssueRequest{BookID: book.ID, ReaderID: reader.ID})
	require.NoError(t, err)
	return loan
}

func TestCreateLoan_ReturnRestoresAvailability(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	book := dbtest.SeedBook(t, f.db, 2)
	reader := dbtest.SeedReader(t, f.db)

	loan := f.issue(t, book, reader)
	assert.Equal(t, "PRES-000001", loan.Code)
	assert.Equal(t, entities.LoanStatusActive, loan.Status)
	assert.Equal(t, date(14), loan.ExpectedReturnDate.UTC())
	assert.Equal(t, f.staff.ID, loan.IssuedByID)
	assert.Equal(t, 1, f.book(t, book.ID).AvailableCopies)

	returned, err := f.svc.ReturnLoan(ctx, f.librarian, loan.ID, ReturnRequest{Condition: "good"})
	require.NoError(t, err)
	assert.Equal(t, entities.LoanStatusReturned, returned.Status)
	assert.NotNil(t, returned.ReturnedAt)
	assert.True(t, returned.Fine.IsZero())
	assert.Equal(t, 2, f.book(t, book.ID).AvailableCopies)
}

func TestCreateLoan_CodesIncrease(t *testing.T) {
	f := setup(t)
	book := dbtest.SeedBook(t, f.db, 5)

	var got []string
	for i := 0; i < 3; i++ {
		got = append(got, f.issue(t, book, dbtest.SeedReader(t, f.db)).Code)
	}
	assert.Equal(t, []string{"PRES-000001", "PRES-000002", "PRES-000003"}, got)
}

func TestCreateLoan_Rejections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	t.Run("no copies left", func(t *testing.T) {
		book := dbtest.SeedBook(t, f.db, 1)
		f.issue(t, book, dbtest.SeedReader(t, f.db))

		_, err := f.svc.CreateLoan(ctx, f.librarian, IssueRequest{BookID: book.ID, ReaderID: dbtest.SeedReader(t, f.db).ID})
		assert.ErrorIs(t, err, ErrBookUnavailable)
		assert.Equal(t, 0, f.book(t, book.ID).AvailableCopies)
	})

	t.Run("open loan limit", func(t *testing.T) {
		reader := dbtest.SeedReader(t, f.db)
		f.issue(t, dbtest.SeedBook(t, f.db, 1), reader)

		_, err := f.svc.CreateLoan(ctx, f.librarian, IssueRequest{BookID: dbtest.SeedBook(t, f.db, 1).ID, ReaderID: reader.ID})
		assert.ErrorIs(t, err, ErrReaderHasActiveLoan)
	})

	t.Run("suspended reader", func(t *testing.T) {
		reader := dbtest.SeedReader(t, f.db)
		require.NoError(t, f.db.Model(reader).Update("status", entities.ReaderStatusSuspended).Error)

		_, err := f.svc.CreateLoan(ctx, f.librarian, IssueRequest{BookID: dbtest.SeedBook(t, f.db, 1).ID, ReaderID: reader.ID})
		assert.ErrorIs(t, err, ErrReaderNotActive)
	})

	t.Run("expired membership", func(t *testing.T) {
		reader := dbtest.SeedReader(t, f.db)
		require.NoError(t, f.db.Model(reader).Update("membership_expires_at", date(-1)).Error)

		_, err := f.svc.CreateLoan(ctx, f.librarian, IssueRequest{BookID: dbtest.SeedBook(t, f.db, 1).ID, ReaderID: reader.ID})
		assert.ErrorIs(t, err, ErrMembershipExpired)
	})

	t.Run("due date in the past", func(t *testing.T) {
		_, err := f.svc.CreateLoan(ctx, f.librarian, IssueRequest{
			BookID:             dbtest.SeedBook(t, f.db, 1).ID,
			ReaderID:           dbtest.SeedReader(t, f.db).ID,
			ExpectedReturnDate: date(-1),
		})
		assert.ErrorIs(t, err, ErrInvalidDueDate)
	})

	t.Run("unknown book", func(t *testing.T) {
		_, err := f.svc.CreateLoan(ctx, f.librarian, IssueRequest{BookID: 9999, ReaderID: dbtest.SeedReader(t, f.db).ID})
		assert.ErrorIs(t, err, books.ErrBookNotFound)
	})
}

func TestCreateLoan_FailedDecrementLeavesNoLoan(t *testing.T) {
	f := setup(t)
	book := dbtest.SeedBook(t, f.db, 1)
	reader := dbtest.SeedReader(t, f.db)

	require.NoError(t, f.db.Exec(`CREATE TRIGGER refuse_availability
		BEFORE UPDATE OF available_copies ON libros
		BEGIN SELECT RAISE(ABORT, 'availability frozen'); END`).Error)

	_, err := f.svc.CreateLoan(context.Background(), f.librarian, IssueRequest{BookID: book.ID, ReaderID: reader.ID})
	require.ErrorContains(t, err, "availability frozen")

	var count int64
	require.NoError(t, f.db.Model(&entities.Loan{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Equal(t, 1, f.book(t, book.ID).AvailableCopies)
}

func TestAvailability_IssueAndReturnSequence(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	book := dbtest.SeedBook(t, f.db, 2)

	first := f.issue(t, book, dbtest.SeedReader(t, f.db))
	assert.Equal(t, 1, f.book(t, book.ID).AvailableCopies)

	second := f.issue(t, book, dbtest.SeedReader(t, f.db))
	assert.Equal(t, 0, f.book(t, book.ID).AvailableCopies)

	_, err := f.svc.CreateLoan(ctx, f.librarian, IssueRequest{BookID: book.ID, ReaderID: dbtest.SeedReader(t, f.db).ID})
	require.ErrorIs(t, err, ErrBookUnavailable)
	assert.Equal(t, 0, f.book(t, book.ID).AvailableCopies)

	_, err = f.svc.ReturnLoan(ctx, f.librarian, first.ID, ReturnRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, f.book(t, book.ID).AvailableCopies)

	_, err = f.svc.ReturnLoan(ctx, f.librarian, second.ID, ReturnRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, f.book(t, book.ID).AvailableCopies)

	_, err = f.svc.ReturnLoan(ctx, f.librarian, second.ID, ReturnRequest{})
	assert.ErrorIs(t, err, ErrLoanNotReturnable)

	b := f.book(t, book.ID)
	assert.Equal(t, 2, b.AvailableCopies)
	assert.LessOrEqual(t, b.AvailableCopies, b.TotalCopies)
}

func TestReturnLoan_NotOpen(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	book := dbtest.SeedBook(t, f.db, 1)
	loan := f.issue(t, book, dbtest.SeedReader(t, f.db))

	_, err := f.svc.ReturnLoan(ctx, f.librarian, loan.ID, ReturnRequest{})
	require.NoError(t, err)

	_, err = f.svc.ReturnLoan(ctx, f.librarian, loan.ID, ReturnRequest{})
	assert.ErrorIs(t, err, ErrLoanNotReturnable)
	assert.Equal(t, 1, f.book(t, book.ID).AvailableCopies)
}

func TestReturnLoan_FreezesFine(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	loan := f.issue(t, dbtest.SeedBook(t, f.db, 1), dbtest.SeedReader(t, f.db))

	// Due on day 14; six days late minus three days grace at 5/day.
	f.at(20)
	returned, err := f.svc.ReturnLoan(ctx, f.librarian, loan.ID, ReturnRequest{Observations: "late"})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(15).Equal(returned.Fine), "fine %s", returned.Fine)
	assert.False(t, returned.FinePaid)
	assert.Equal(t, "late", returned.Observations)
}

func TestMarkLost(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	book := dbtest.SeedBook(t, f.db, 3)
	loan := f.issue(t, book, dbtest.SeedReader(t, f.db))

	_, err := f.svc.MarkLost(ctx, f.librarian, loan.ID, "")
	assert.ErrorIs(t, err, auth.ErrForbidden)

	lost, err := f.svc.MarkLost(ctx, f.admin, loan.ID, "never came back")
	require.NoError(t, err)
	assert.Equal(t, entities.LoanStatusLost, lost.Status)

	b := f.book(t, book.ID)
	assert.Equal(t, 2, b.TotalCopies)
	assert.Equal(t, 2, b.AvailableCopies)

	_, err = f.svc.MarkLost(ctx, f.admin, loan.ID, "")
	assert.ErrorIs(t, err, ErrLoanNotOpen)
}

func TestDeleteLoan(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	loan := f.issue(t, dbtest.SeedBook(t, f.db, 1), dbtest.SeedReader(t, f.db))

	assert.ErrorIs(t, f.svc.DeleteLoan(ctx, f.librarian, loan.ID), auth.ErrForbidden)
	assert.ErrorIs(t, f.svc.DeleteLoan(ctx, f.admin, loan.ID), ErrActiveLoanDelete)

	_, err := f.svc.ReturnLoan(ctx, f.librarian, loan.ID, ReturnRequest{})
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteLoan(ctx, f.admin, loan.ID))

	_, err = f.svc.GetLoan(ctx, f.librarian, loan.ID)
	assert.ErrorIs(t, err, loans.ErrLoanNotFound)
}

func TestDeleteLoan_Archives(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	dir := t.TempDir()
	f.svc.archive = audit.NewArchive(dir)

	book := dbtest.SeedBook(t, f.db, 1)
	reader := dbtest.SeedReader(t, f.db)
	loan := dbtest.SeedLoan(t, f.db, book, reader, f.staff, entities.LoanStatusReturned, date(0))
	require.NoError(t, f.svc.DeleteLoan(ctx, f.admin, loan.ID))

	matches, err := filepath.Glob(filepath.Join(dir, "loan-*.json"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestPayFine(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	loan := f.issue(t, dbtest.SeedBook(t, f.db, 1), dbtest.SeedReader(t, f.db))

	f.at(30)
	_, err := f.svc.PayFine(ctx, f.librarian, loan.ID)
	assert.ErrorIs(t, err, ErrFineNotFinal)

	_, err = f.svc.ReturnLoan(ctx, f.librarian, loan.ID, ReturnRequest{})
	require.NoError(t, err)

	paid, err := f.svc.PayFine(ctx, f.librarian, loan.ID)
	require.NoError(t, err)
	assert.True(t, paid.FinePaid)
	assert.True(t, decimal.NewFromInt(65).Equal(paid.Fine), "fine %s", paid.Fine)

	_, err = f.svc.PayFine(ctx, f.librarian, loan.ID)
	assert.ErrorIs(t, err, ErrNoFineDue)
}

func TestSweepOverdue_Idempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	book := dbtest.SeedBook(t, f.db, 3)
	late := dbtest.SeedLoan(t, f.db, book, dbtest.SeedReader(t, f.db), f.staff, entities.LoanStatusActive, date(-1))
	dueToday := dbtest.SeedLoan(t, f.db, book, dbtest.SeedReader(t, f.db), f.staff, entities.LoanStatusActive, dbtest.Today())
	f.svc.now = func() time.Time { return time.Now().UTC() }

	n, err := f.svc.SweepOverdue(ctx, f.librarian)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = f.svc.SweepOverdue(ctx, f.librarian)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	got, err := f.svc.GetLoan(ctx, f.librarian, late.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.LoanStatusOverdue, got.Status)

	got, err = f.svc.GetLoan(ctx, f.librarian, dueToday.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.LoanStatusActive, got.Status)
}

func TestSweepOverdue_RequiresMaintenance(t *testing.T) {
	f := setup(t)
	_, err := f.svc.SweepOverdue(context.Background(), auth.Principal{UserID: 1, Role: "READER"})
	assert.ErrorIs(t, err, auth.ErrForbidden)
}

func TestRecalculateFines(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	book := dbtest.SeedBook(t, f.db, 3)
	loan := dbtest.SeedLoan(t, f.db, book, dbtest.SeedReader(t, f.db), f.staff, entities.LoanStatusOverdue, date(-10))
	dbtest.SeedLoan(t, f.db, book, dbtest.SeedReader(t, f.db), f.staff, entities.LoanStatusActive, date(5))

	n, err := f.svc.RecalculateFines(ctx, f.librarian)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stored, err := loans.NewRepository(f.db).GetLoanByID(loan.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(35).Equal(stored.Fine), "fine %s", stored.Fine)

	n, err = f.svc.RecalculateFines(ctx, f.librarian)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestQueries(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	book := dbtest.SeedBook(t, f.db, 5)

	// Overdue and past grace: 10 days late.
	late := dbtest.SeedLoan(t, f.db, book, dbtest.SeedReader(t, f.db), f.staff, entities.LoanStatusActive, date(-10))
	// Overdue but inside grace.
	grace := dbtest.SeedLoan(t, f.db, book, dbtest.SeedReader(t, f.db), f.staff, entities.LoanStatusActive, date(-2))
	// Due in two days.
	soon := dbtest.SeedLoan(t, f.db, book, dbtest.SeedReader(t, f.db), f.staff, entities.LoanStatusActive, date(2))
	// Due much later.
	dbtest.SeedLoan(t, f.db, book, dbtest.SeedReader(t, f.db), f.staff, entities.LoanStatusActive, date(20))
	// Closed loans never show up as overdue.
	dbtest.SeedLoan(t, f.db, book, dbtest.SeedReader(t, f.db), f.staff, entities.LoanStatusReturned, date(-30))

	overdue, err := f.svc.ListOverdue(ctx, f.librarian)
	require.NoError(t, err)
	assert.Equal(t, int64(2), overdue.Total)
	assert.ElementsMatch(t, []uint{late.ID, grace.ID}, loanIDs(overdue.Items))

	dueSoon, err := f.svc.ListDueSoon(ctx, f.librarian, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{soon.ID}, loanIDs(dueSoon.Items))

	withFines, err := f.svc.ListWithFines(ctx, f.librarian)
	require.NoError(t, err)
	require.Len(t, withFines, 1)
	assert.Equal(t, late.ID, withFines[0].ID)
	assert.Equal(t, 10, withFines[0].DaysOverdue)
	assert.True(t, decimal.NewFromInt(35).Equal(withFines[0].ComputedFine))

	// Listing computes fines without persisting them.
	stored, err := loans.NewRepository(f.db).GetLoanByID(late.ID)
	require.NoError(t, err)
	assert.True(t, stored.Fine.IsZero())

	stats, err := f.svc.Stats(ctx, f.librarian)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.TotalLoans)
	assert.Equal(t, int64(4), stats.ActiveLoans)
	assert.Equal(t, int64(1), stats.ReturnedLoans)
	assert.Equal(t, int64(1), stats.DueSoonLoans)
	assert.Equal(t, int64(5), stats.TotalCopies)
}

func TestMaintenanceRun(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	book := dbtest.SeedBook(t, f.db, 2)
	dbtest.SeedLoan(t, f.db, book, dbtest.SeedReader(t, f.db), f.staff, entities.LoanStatusActive, dbtest.Today().AddDate(0, 0, -10))
	f.svc.now = func() time.Time { return time.Now().UTC() }

	expirer := &stubExpirer{n: 2}
	m := NewMaintenance(f.svc, expirer, nil)

	last, err := m.LastReport(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	report, err := m.Run(ctx, auth.SystemPrincipal())
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.OverdueMarked)
	assert.Equal(t, int64(1), report.FinesUpdated)
	assert.Equal(t, int64(2), report.ReadersExpired)
	assert.True(t, expirer.called)

	last, err = m.LastReport(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, report.OverdueMarked, last.OverdueMarked)

	_, err = m.Run(ctx, auth.Principal{UserID: 1, Role: "READER"})
	assert.ErrorIs(t, err, auth.ErrForbidden)
}

type stubExpirer struct {
	n      int64
	called bool
}

func (s *stubExpirer) ExpireMemberships(context.Context, auth.Principal) (int64, error) {
	s.called = true
	return s.n, nil
}

func loanIDs(items []entities.LoanWithFine) []uint {
	ids := make([]uint, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}
