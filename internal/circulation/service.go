// Package circulation implements the loan lifecycle: issuing and returning
// copies, overdue reclassification, fines, loss and deletion.
//
// A loan moves ACTIVE -> OVERDUE (sweep), ACTIVE|OVERDUE -> RETURNED
// (return) and ACTIVE|OVERDUE -> LOST (manual). RETURNED and LOST are
// terminal. Every transition that touches a book's counters runs in the same
// transaction as the loan update.
package circulation

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
	ErrBookUnavailable     = errors.New("book has no available copies")
	ErrReaderNotActive     = errors.New("reader is not active")
	ErrMembershipExpired   = errors.New("reader membership has expired")
	ErrReaderHasActiveLoan = errors.New("reader has reached the open loan limit")
	ErrInvalidDueDate      = errors.New("expected return date is in the past")
	ErrLoanNotReturnable   = errors.New("loan is not open and cannot be returned")
	ErrLoanNotOpen         = errors.New("loan is not open")
	ErrActiveLoanDelete    = errors.New("open loans cannot be deleted")
	ErrFineNotFinal        = errors.New("fine can only be paid once the loan is closed")
	ErrNoFineDue           = errors.New("loan has no outstanding fine")
)

// Service runs circulation operations. Each call uses its own transaction.
type Service struct {
	db      *gorm.DB
	books   *books.Repository
	readers *readers.Repository
	loans   *loans.Repository
	sys     *sysconfig.Manager
	audit   *audit.Service
	archive *audit.Archive
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(db *gorm.DB, sys *sysconfig.Manager, auditSvc *audit.Service, archive *audit.Archive, logger *zap.Logger) *Service {
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
		archive: archive,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) today() time.Time {
	return fines.Date(s.now())
}

func (s *Service) policy() fines.Policy {
	return s.sys.Current().FinePolicy()
}
