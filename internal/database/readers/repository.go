// Package readers provides database operations for library members.
package readers

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
	ErrReaderNotFound  = errors.New("reader not found")
	ErrDuplicateReader = errors.New("a reader with this document number or email already exists")
	// ErrCodeConflict means another writer took the generated reader code first.
	ErrCodeConflict  = errors.New("reader code already taken")
	ErrInvalidStatus = errors.New("invalid reader status")
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

type SearchFilter struct {
	Query  string // name, code, document number or email fragment
	Status entities.ReaderStatus
	Limit  int
	Offset int
}

func (r *Repository) CreateReader(reader *entities.Reader) error {
	if err := r.db.Create(reader).Error; err != nil {
		if database.IsUniqueViolation(err) {
			if strings.Contains(err.Error(), "lectores.code") {
				return fmt.Errorf("%w: %s", ErrCodeConflict, reader.Code)
			}
			return ErrDuplicateReader
		}
		return err
	}
	return nil
}

func (r *Repository) GetReaderByID(id uint) (*entities.Reader, error) {
	var reader entities.Reader
	err := r.db.First(&reader, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReaderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &reader, nil
}

func (r *Repository) GetReaderByCode(code string) (*entities.Reader, error) {
	var reader entities.Reader
	err := r.db.Where("code = ?", code).First(&reader).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReaderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &reader, nil
}

func (r *Repository) ListReaders(filter SearchFilter) ([]entities.Reader, int64, error) {
	query := r.db.Model(&entities.Reader{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := "%" + q + "%"
		query = query.Where(
			"LOWER(first_name || ' ' || last_name) LIKE LOWER(?) OR code LIKE ? OR document_number LIKE ? OR LOWER(email) LIKE LOWER(?)",
			pattern, pattern, pattern, pattern,
		)
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

	var readers []entities.Reader
	err := query.Order("last_name ASC, first_name ASC, id ASC").Find(&readers).Error
	return readers, total, err
}

// UpdateReaderDetails writes contact fields and membership expiry.
func (r *Repository) UpdateReaderDetails(id uint, fields map[string]any) error {
	fields["updated_at"] = time.Now().UTC()
	result := r.db.Model(&entities.Reader{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		if database.IsUniqueViolation(result.Error) {
			return ErrDuplicateReader
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrReaderNotFound
	}
	return nil
}

func (r *Repository) SetStatus(id uint, status entities.ReaderStatus) error {
	result := r.db.Model(&entities.Reader{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		if database.IsCheckViolation(result.Error) {
			return ErrInvalidStatus
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrReaderNotFound
	}
	return nil
}

// ExpireMemberships moves ACTIVE and SUSPENDED readers whose membership ended
// before today to EXPIRED and returns how many rows changed.
func (r *Repository) ExpireMemberships(today time.Time) (int64, error) {
	result := r.db.Model(&entities.Reader{}).
		Where("status IN ? AND membership_expires_at < ?",
			[]entities.ReaderStatus{entities.ReaderStatusActive, entities.ReaderStatusSuspended}, today).
		Updates(map[string]any{"status": entities.ReaderStatusExpired, "updated_at": time.Now().UTC()})
	return result.RowsAffected, result.Error
}

func (r *Repository) CountByStatus(status entities.ReaderStatus) (int64, error) {
	var count int64
	err := r.db.Model(&entities.Reader{}).Where("status = ?", status).Count(&count).Error
	return count, err
}
