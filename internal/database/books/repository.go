// Package books provides database operations for the catalog and its
// availability counters.
//
// # Usage
//
//	repo := books.NewRepository(db)
//	book, err := repo.GetBookByID(123)
//	err = repo.WithTx(tx).AdjustAvailableCopies(book.ID, -1)
package books

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/biblioteca/internal/database"
	"github.com/mrlokans/biblioteca/internal/entities"
)

var (
	ErrBookNotFound           = errors.New("book not found")
	ErrDuplicateISBN          = errors.New("a book with this ISBN already exists")
	ErrAvailabilityConstraint = errors.New("available copies must stay between 0 and total copies")
)

// Repository handles all book database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to an open transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// WithContext returns a repository whose queries carry ctx.
func (r *Repository) WithContext(ctx context.Context) *Repository {
	return &Repository{db: r.db.WithContext(ctx)}
}

// SearchFilter narrows ListBooks. Zero values match everything.
type SearchFilter struct {
	Query           string // title, author or ISBN fragment
	Category        string
	AvailableOnly   bool
	IncludeInactive bool
	Limit           int
	Offset          int
}

// CreateBook inserts a new book.
func (r *Repository) CreateBook(book *entities.Book) error {
	if err := r.db.Create(book).Error; err != nil {
		return classify(err)
	}
	return nil
}

// GetBookByID retrieves a book by its ID.
func (r *Repository) GetBookByID(id uint) (*entities.Book, error) {
	var book entities.Book
	err := r.db.First(&book, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// GetBookByISBN retrieves a book by its ISBN.
func (r *Repository) GetBookByISBN(isbn string) (*entities.Book, error) {
	var book entities.Book
	err := r.db.Where("isbn = ?", isbn).First(&book).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// ListBooks returns a page of books matching the filter and the total match count.
func (r *Repository) ListBooks(filter SearchFilter) ([]entities.Book, int64, error) {
	query := r.db.Model(&entities.Book{})
	if !filter.IncludeInactive {
		query = query.Where("active = ?", true)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := "%" + q + "%"
		query = query.Where(
			"LOWER(title) LIKE LOWER(?) OR LOWER(author) LIKE LOWER(?) OR isbn LIKE ?",
			pattern, pattern, pattern,
		)
	}
	if filter.Category != "" {
		query = query.Where("LOWER(category) = LOWER(?)", filter.Category)
	}
	if filter.AvailableOnly {
		query = query.Where("available_copies > 0")
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

	var books []entities.Book
	err := query.Order("title ASC, id ASC").Find(&books).Error
	return books, total, err
}

// UpdateBookDetails writes the descriptive fields of a book.
func (r *Repository) UpdateBookDetails(id uint, fields map[string]any) error {
	fields["updated_at"] = time.Now().UTC()
	result := r.db.Model(&entities.Book{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrBookNotFound
	}
	return nil
}

// AdjustAvailableCopies adds delta to the book's available copies.
// The bounds are enforced by the libros CHECK constraint only.
func (r *Repository) AdjustAvailableCopies(bookID uint, delta int) error {
	result := r.db.Model(&entities.Book{}).
		Where("id = ?", bookID).
		Updates(map[string]any{
			"available_copies": gorm.Expr("available_copies + ?", delta),
			"updated_at":       time.Now().UTC(),
		})
	if result.Error != nil {
		return classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrBookNotFound
	}
	return nil
}

// AdjustTotalCopies adds totalDelta to the stock and availableDelta to the
// available copies in a single statement.
func (r *Repository) AdjustTotalCopies(bookID uint, totalDelta, availableDelta int) error {
	result := r.db.Model(&entities.Book{}).
		Where("id = ?", bookID).
		Updates(map[string]any{
			"total_copies":     gorm.Expr("total_copies + ?", totalDelta),
			"available_copies": gorm.Expr("available_copies + ?", availableDelta),
			"updated_at":       time.Now().UTC(),
		})
	if result.Error != nil {
		return classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrBookNotFound
	}
	return nil
}

// SetActive flips the soft-delete flag.
func (r *Repository) SetActive(id uint, active bool) error {
	result := r.db.Model(&entities.Book{}).
		Where("id = ?", id).
		Updates(map[string]any{"active": active, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBookNotFound
	}
	return nil
}

// Inventory holds catalog-wide counters.
type Inventory struct {
	Books           int64
	TotalCopies     int64
	AvailableCopies int64
}

// GetInventory sums the counters over active books.
func (r *Repository) GetInventory() (Inventory, error) {
	var inv Inventory
	err := r.db.Model(&entities.Book{}).
		Select("COUNT(*) AS books, COALESCE(SUM(total_copies), 0) AS total_copies, COALESCE(SUM(available_copies), 0) AS available_copies").
		Where("active = ?", true).
		Scan(&inv).Error
	return inv, err
}

func classify(err error) error {
	switch {
	case database.IsCheckViolation(err):
		return fmt.Errorf("%w: %v", ErrAvailabilityConstraint, err)
	case database.IsUniqueViolation(err):
		return fmt.Errorf("%w: %v", ErrDuplicateISBN, err)
	}
	return err
}
