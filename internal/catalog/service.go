// Package catalog manages books and readers: registration, edits, soft
// deletion, lookups and the membership expiry sweep.
package catalog

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mrlokans/biblioteca/internal/audit"
	"github.com/mrlokans/biblioteca/internal/database/books"
	"github.com/mrlokans/biblioteca/internal/database/loans"
	"github.com/mrlokans/biblioteca/internal/database/readers"
	"github.com/mrlokans/biblioteca/internal/fines"
	"github.com/mrlokans/biblioteca/internal/sysconfig"
)

var (
	ErrCopiesOnLoan        = errors.New("copies of this book are on loan")
	ErrReaderHasOpenLoans  = errors.New("reader has open loans")
	ErrMembershipExpired   = errors.New("membership has expired; renew it before reactivating")
	ErrStatusNotAssignable = errors.New("status cannot be set manually")
)

// Service implements catalog operations on top of the repositories.
type Service struct {
	db      *gorm.DB
	books   *books.Repository
	readers *readers.Repository
	loans   *loans.Repository
	sys     *sysconfig.Manager
	audit   *audit.Service
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(db *gorm.DB, sys *sysconfig.Manager, auditSvc *audit.Service, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:      db,
		books:   books.NewRepository(db),
		readers: readers.NewRepository(db),
		loans:   loans.NewRepository(db),
		sys:     sys,
		audit:   auditSvc,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) today() time.Time {
	return fines.Date(s.now())
}
