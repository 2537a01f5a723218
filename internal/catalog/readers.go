package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mrlokans/biblioteca/internal/auth"
	"github.com/mrlokans/biblioteca/internal/codes"
	"github.com/mrlokans/biblioteca/internal/database/readers"
	"github.com/mrlokans/biblioteca/internal/entities"
	"github.com/mrlokans/biblioteca/internal/fines"
	"github.com/mrlokans/biblioteca/internal/validation"
)

// ReaderInput holds the editable fields of a reader. A nil
// MembershipExpiresAt on creation means the configured membership length.
type ReaderInput struct {
	DocumentNumber      string     `json:"document_number" validate:"required,max=50"`
	FirstName           string     `json:"first_name" validate:"required,max=100"`
	LastName            string     `json:"last_name" validate:"required,max=100"`
	Email               string     `json:"email" validate:"required,email,max=255"`
	Phone               string     `json:"phone" validate:"max=50"`
	Address             string     `json:"address" validate:"max=255"`
	MembershipExpiresAt *time.Time `json:"membership_expires_at"`
}

// CreateReader registers a member under the next LEC- code. Code collisions
// with a concurrent registration are retried.
func (s *Service) CreateReader(ctx context.Context, actor auth.Principal, in ReaderInput) (*entities.Reader, error) {
	if err := actor.Require(auth.PermReadersManage); err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	expires := s.today().AddDate(0, 0, s.sys.Current().Readers.MembershipDays)
	if in.MembershipExpiresAt != nil {
		expires = fines.Date(*in.MembershipExpiresAt)
	}

	var reader *entities.Reader
	isConflict := func(err error) bool { return errors.Is(err, readers.ErrCodeConflict) }
	err := codes.RetryOnConflict(ctx, isConflict, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			code, err := codes.Readers.Next(tx)
			if err != nil {
				return err
			}
			reader = &entities.Reader{
				Code:                code,
				DocumentNumber:      in.DocumentNumber,
				FirstName:           in.FirstName,
				LastName:            in.LastName,
				Email:               in.Email,
				Phone:               in.Phone,
				Address:             in.Address,
				Status:              entities.ReaderStatusActive,
				MembershipExpiresAt: expires,
				CreatedByID:         staffID(actor),
			}
			return s.readers.WithTx(tx).CreateReader(reader)
		})
	})
	if err != nil {
		return nil, err
	}

	s.audit.LogCatalog(actor.UserID, "reader", "reader_create", reader.ID,
		fmt.Sprintf("Registered %s %s", reader.Code, reader.FullName()))
	return reader, nil
}

// UpdateReader rewrites contact details and, when given, the membership expiry.
func (s *Service) UpdateReader(ctx context.Context, actor auth.Principal, id uint, in ReaderInput) (*entities.Reader, error) {
	if err := actor.Require(auth.PermReadersManage); err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	fields := map[string]any{
		"document_number": in.DocumentNumber,
		"first_name":      in.FirstName,
		"last_name":       in.LastName,
		"email":           in.Email,
		"phone":           in.Phone,
		"address":         in.Address,
	}
	if in.MembershipExpiresAt != nil {
		fields["membership_expires_at"] = fines.Date(*in.MembershipExpiresAt)
	}

	repo := s.readers.WithContext(ctx)
	if err := repo.UpdateReaderDetails(id, fields); err != nil {
		return nil, err
	}
	reader, err := repo.GetReaderByID(id)
	if err != nil {
		return nil, err
	}
	s.audit.LogCatalog(actor.UserID, "reader", "reader_update", id, "Updated "+reader.Code)
	return reader, nil
}

// SetReaderStatus suspends or reactivates a reader by hand. EXPIRED is only
// ever set by the expiry sweep, and an expired membership cannot be
// reactivated until its expiry date is moved forward.
func (s *Service) SetReaderStatus(ctx context.Context, actor auth.Principal, id uint, status entities.ReaderStatus) (*entities.Reader, error) {
	if err := actor.Require(auth.PermReadersManage); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, readers.ErrInvalidStatus
	}
	if status == entities.ReaderStatusExpired {
		return nil, ErrStatusNotAssignable
	}
	if status == entities.ReaderStatusInactive {
		if err := s.DeactivateReader(ctx, actor, id); err != nil {
			return nil, err
		}
		return s.readers.WithContext(ctx).GetReaderByID(id)
	}

	repo := s.readers.WithContext(ctx)
	reader, err := repo.GetReaderByID(id)
	if err != nil {
		return nil, err
	}
	if status == entities.ReaderStatusActive && reader.MembershipExpired(s.today()) {
		return nil, ErrMembershipExpired
	}
	if err := repo.SetStatus(id, status); err != nil {
		return nil, err
	}
	reader.Status = status
	s.audit.LogCatalog(actor.UserID, "reader", "reader_status", id,
		fmt.Sprintf("%s set to %s", reader.Code, status))
	return reader, nil
}

// DeactivateReader soft-deletes a reader. It is refused while the reader
// holds open loans.
func (s *Service) DeactivateReader(ctx context.Context, actor auth.Principal, id uint) error {
	if err := actor.Require(auth.PermReadersManage); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		open, err := s.loans.WithTx(tx).CountOpenByReader(id)
		if err != nil {
			return err
		}
		if open > 0 {
			return fmt.Errorf("%w: %d", ErrReaderHasOpenLoans, open)
		}
		return s.readers.WithTx(tx).SetStatus(id, entities.ReaderStatusInactive)
	})
	if err != nil {
		return err
	}
	s.audit.LogCatalog(actor.UserID, "reader", "reader_deactivate", id, "Deactivated reader")
	return nil
}

func (s *Service) GetReader(ctx context.Context, actor auth.Principal, id uint) (*entities.Reader, error) {
	if err := actor.Require(auth.PermReadersRead); err != nil {
		return nil, err
	}
	return s.readers.WithContext(ctx).GetReaderByID(id)
}

func (s *Service) GetReaderByCode(ctx context.Context, actor auth.Principal, code string) (*entities.Reader, error) {
	if err := actor.Require(auth.PermReadersRead); err != nil {
		return nil, err
	}
	return s.readers.WithContext(ctx).GetReaderByCode(code)
}

func (s *Service) SearchReaders(ctx context.Context, actor auth.Principal, filter readers.SearchFilter) (entities.Page[entities.Reader], error) {
	if err := actor.Require(auth.PermReadersRead); err != nil {
		return entities.Page[entities.Reader]{}, err
	}
	items, total, err := s.readers.WithContext(ctx).ListReaders(filter)
	if err != nil {
		return entities.Page[entities.Reader]{}, fmt.Errorf("failed to search readers: %w", err)
	}
	return entities.Page[entities.Reader]{Items: items, Total: total}, nil
}

// ExpireMemberships moves readers whose membership ended before today to
// EXPIRED and returns how many changed.
func (s *Service) ExpireMemberships(ctx context.Context, actor auth.Principal) (int64, error) {
	if err := actor.Require(auth.PermMaintenanceRun); err != nil {
		return 0, err
	}
	n, err := s.readers.WithContext(ctx).ExpireMemberships(s.today())
	s.audit.LogMaintenance(actor.UserID, "reader_expiry", fmt.Sprintf("%d memberships expired", n),
		map[string]any{"expired": n}, err)
	if err != nil {
		return 0, fmt.Errorf("failed to expire memberships: %w", err)
	}
	if n > 0 {
		s.logger.Info("memberships expired", zap.Int64("count", n))
	}
	return n, nil
}

// staffID is nil for the system principal, which has no usuarios row.
func staffID(p auth.Principal) *uint {
	if p.UserID == 0 {
		return nil
	}
	id := p.UserID
	return &id
}
