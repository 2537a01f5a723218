// Package loans provides database operations for loans (prestamos).
//
// State-changing methods are conditional updates: they return the number of
// affected rows and leave it to the caller to decide what zero rows mean.
package loans

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mrlokans/biblioteca/internal/database"
	"github.com/mrlokans/biblioteca/internal/entities"
)

var (
	ErrLoanNotFound = errors.New("loan not found")
	// ErrCodeConflict means another writer took the generated loan code first.
	ErrCodeConflict     = errors.New("loan code already taken")
	ErrInvalidReference = errors.New("loan references a missing book, reader or user")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) WithContext(ctx context.Context) *Repository {
	return &Repository{db: r.db.WithContext(ctx)}
}

// Filter narrows ListLoans. Zero values match everything.
type Filter struct {
	Statuses []entities.LoanStatus
	ReaderID uint
	BookID   uint
	// DueBefore matches loans whose expected return date is strictly earlier.
	DueBefore time.Time
	// DueFrom/DueTo bound the expected return date inclusively.
	DueFrom time.Time
	DueTo   time.Time
	// WithFine keeps only loans carrying an unpaid persisted fine.
	WithFine bool
	Limit    int
	Offset   int
}

func (r *Repository) CreateLoan(loan *entities.Loan) error {
	err := r.db.Omit("Book", "Reader").Create(loan).Error
	switch {
	case err == nil:
		return nil
	case database.IsUniqueViolation(err) && strings.Contains(err.Error(), "prestamos.code"):
		return fmt.Errorf("%w: %s", ErrCodeConflict, loan.Code)
	case database.IsForeignKeyViolation(err):
		return ErrInvalidReference
	}
	return err
}

// GetLoanByID retrieves a loan with its book and reader.
func (r *Repository) GetLoanByID(id uint) (*entities.Loan, error) {
	var loan entities.Loan
	err := r.db.Preload("Book").Preload("Reader").First(&loan, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLoanNotFound
	}
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *Repository) GetLoanByCode(code string) (*entities.Loan, error) {
	var loan entities.Loan
	err := r.db.Preload("Book").Preload("Reader").Where("code = ?", code).First(&loan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLoanNotFound
	}
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// ListLoans returns a page of loans matching the filter, newest first, and the total count.
func (r *Repository) ListLoans(filter Filter) ([]entities.Loan, int64, error) {
	query := r.db.Model(&entities.Loan{})
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.ReaderID > 0 {
		query = query.Where("lector_id = ?", filter.ReaderID)
	}
	if filter.BookID > 0 {
		query = query.Where("libro_id = ?", filter.BookID)
	}
	if !filter.DueBefore.IsZero() {
		query = query.Where("expected_return_date < ?", filter.DueBefore)
	}
	if !filter.DueFrom.IsZero() {
		query = query.Where("expected_return_date >= ?", filter.DueFrom)
	}
	if !filter.DueTo.IsZero() {
		query = query.Where("expected_return_date <= ?", filter.DueTo)
	}
	if filter.WithFine {
		query = query.Where("fine > 0 AND fine_paid = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var loans []entities.Loan
	err := query.Preload("Book").Preload("Reader").
		Order("expected_return_date ASC, id ASC").
		Find(&loans).Error
	return loans, total, err
}

// ListOpenLoans returns every ACTIVE or OVERDUE loan without associations.
func (r *Repository) ListOpenLoans() ([]entities.Loan, error) {
	var loans []entities.Loan
	err := r.db.Where("status IN ?", entities.OpenLoanStatuses).Order("id ASC").Find(&loans).Error
	return loans, err
}

// CountOpenByReader counts ACTIVE and OVERDUE loans held by a reader.
func (r *Repository) CountOpenByReader(readerID uint) (int64, error) {
	var count int64
	err := r.db.Model(&entities.Loan{}).
		Where("lector_id = ? AND status IN ?", readerID, entities.OpenLoanStatuses).
		Count(&count).Error
	return count, err
}

// CountOpenByBook counts ACTIVE and OVERDUE loans holding copies of a book.
func (r *Repository) CountOpenByBook(bookID uint) (int64, error) {
	var count int64
	err := r.db.Model(&entities.Loan{}).
		Where("libro_id = ? AND status IN ?", bookID, entities.OpenLoanStatuses).
		Count(&count).Error
	return count, err
}

// CountByUser counts loans issued or received by a staff member.
func (r *Repository) CountByUser(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&entities.Loan{}).
		Where("bibliotecario_prestamo_id = ? OR bibliotecario_devolucion_id = ?", userID, userID).
		Count(&count).Error
	return count, err
}

// ReturnUpdate carries the fields written when a loan is returned.
type ReturnUpdate struct {
	ReturnedByID uint
	ReturnedAt   time.Time
	Condition    string
	Observations string
	Fine         decimal.Decimal
}

// MarkReturned moves an open loan to RETURNED. Zero rows means the loan was not open.
func (r *Repository) MarkReturned(id uint, upd ReturnUpdate) (int64, error) {
	fields := map[string]any{
		"status":                      entities.LoanStatusReturned,
		"returned_at":                 upd.ReturnedAt,
		"bibliotecario_devolucion_id": upd.ReturnedByID,
		"return_condition":            upd.Condition,
		"fine":                        upd.Fine,
		"updated_at":                  time.Now().UTC(),
	}
	if upd.Observations != "" {
		fields["observations"] = upd.Observations
	}
	result := r.db.Model(&entities.Loan{}).
		Where("id = ? AND status IN ?", id, entities.OpenLoanStatuses).
		Updates(fields)
	return result.RowsAffected, result.Error
}

// MarkLost moves an open loan to LOST. Zero rows means the loan was not open.
func (r *Repository) MarkLost(id uint, fine decimal.Decimal, observations string) (int64, error) {
	fields := map[string]any{
		"status":     entities.LoanStatusLost,
		"fine":       fine,
		"updated_at": time.Now().UTC(),
	}
	if observations != "" {
		fields["observations"] = observations
	}
	result := r.db.Model(&entities.Loan{}).
		Where("id = ? AND status IN ?", id, entities.OpenLoanStatuses).
		Updates(fields)
	return result.RowsAffected, result.Error
}

// MarkOverdue reclassifies ACTIVE loans due strictly before today.
func (r *Repository) MarkOverdue(today time.Time) (int64, error) {
	result := r.db.Model(&entities.Loan{}).
		Where("status = ? AND expected_return_date < ?", entities.LoanStatusActive, today).
		Updates(map[string]any{
			"status":     entities.LoanStatusOverdue,
			"updated_at": time.Now().UTC(),
		})
	return result.RowsAffected, result.Error
}

// UpdateFine persists a recomputed fine on an open loan.
func (r *Repository) UpdateFine(id uint, fine decimal.Decimal) (int64, error) {
	result := r.db.Model(&entities.Loan{}).
		Where("id = ? AND status IN ? AND fine <> ?", id, entities.OpenLoanStatuses, fine).
		Updates(map[string]any{"fine": fine, "updated_at": time.Now().UTC()})
	return result.RowsAffected, result.Error
}

// MarkFinePaid settles an outstanding fine. Zero rows means nothing was owed.
func (r *Repository) MarkFinePaid(id uint) (int64, error) {
	result := r.db.Model(&entities.Loan{}).
		Where("id = ? AND fine > 0 AND fine_paid = ?", id, false).
		Updates(map[string]any{"fine_paid": true, "updated_at": time.Now().UTC()})
	return result.RowsAffected, result.Error
}

// DeleteLoan hard-deletes a loan that no longer holds a copy.
// Zero rows means the loan is missing or still open.
func (r *Repository) DeleteLoan(id uint) (int64, error) {
	result := r.db.Where("id = ? AND status NOT IN ?", id, entities.OpenLoanStatuses).
		Delete(&entities.Loan{})
	return result.RowsAffected, result.Error
}

// CountByStatus returns loan counts keyed by status.
func (r *Repository) CountByStatus() (map[entities.LoanStatus]int64, error) {
	var rows []struct {
		Status entities.LoanStatus
		Count  int64
	}
	err := r.db.Model(&entities.Loan{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[entities.LoanStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// SumFines totals persisted fines with the given paid flag.
func (r *Repository) SumFines(paid bool) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	row := r.db.Model(&entities.Loan{}).
		Select("SUM(fine)").
		Where("fine_paid = ?", paid).
		Row()
	if err := row.Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal.Round(2), nil
}
