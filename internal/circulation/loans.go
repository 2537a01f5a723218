package circulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mrlokans/biblioteca/internal/auth"
	"github.com/mrlokans/biblioteca/internal/codes"
	"github.com/mrlokans/biblioteca/internal/database/books"
	"github.com/mrlokans/biblioteca/internal/database/loans"
	"github.com/mrlokans/biblioteca/internal/entities"
	"github.com/mrlokans/biblioteca/internal/fines"
	"github.com/mrlokans/biblioteca/internal/validation"
)

// IssueRequest describes a new loan. A zero ExpectedReturnDate means today
// plus the configured loan length.
type IssueRequest struct {
	BookID             uint      `json:"book_id" validate:"required"`
	ReaderID           uint      `json:"reader_id" validate:"required"`
	ExpectedReturnDate time.Time `json:"expected_return_date"`
	Condition          string    `json:"condition" validate:"max=255"`
}

// ReturnRequest carries the notes recorded when a copy comes back.
type ReturnRequest struct {
	Condition    string `json:"condition" validate:"max=255"`
	Observations string `json:"observations" validate:"max=2000"`
}

// CreateLoan lends one copy of a book to a reader. The loan insert and the
// availability decrement commit together or not at all. A PRES- code taken
// by a concurrent writer makes the whole transaction retry.
func (s *Service) CreateLoan(ctx context.Context, actor auth.Principal, req IssueRequest) (*entities.Loan, error) {
	if err := actor.Require(auth.PermLoansIssue); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	cfg := s.sys.Current()
	today := s.today()
	due := today.AddDate(0, 0, cfg.Loans.DefaultDays)
	if !req.ExpectedReturnDate.IsZero() {
		due = fines.Date(req.ExpectedReturnDate)
	}
	if due.Before(today) {
		return nil, ErrInvalidDueDate
	}

	var loan *entities.Loan
	isConflict := func(err error) bool { return errors.Is(err, loans.ErrCodeConflict) }
	err := codes.RetryOnConflict(ctx, isConflict, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			book, err := s.books.WithTx(tx).GetBookByID(req.BookID)
			if err != nil {
				return err
			}
			if !book.IsAvailable() {
				return fmt.Errorf("%w: %s", ErrBookUnavailable, book.ISBN)
			}

			reader, err := s.readers.WithTx(tx).GetReaderByID(req.ReaderID)
			if err != nil {
				return err
			}
			if reader.Status != entities.ReaderStatusActive {
				return fmt.Errorf("%w: %s is %s", ErrReaderNotActive, reader.Code, reader.Status)
			}
			if reader.MembershipExpired(today) {
				return fmt.Errorf("%w: %s", ErrMembershipExpired, reader.Code)
			}

			open, err := s.loans.WithTx(tx).CountOpenByReader(reader.ID)
			if err != nil {
				return err
			}
			if open >= int64(cfg.Loans.MaxActivePerReader) {
				return fmt.Errorf("%w: %s holds %d", ErrReaderHasActiveLoan, reader.Code, open)
			}

			code, err := codes.Loans.Next(tx)
			if err != nil {
				return err
			}
			loan = &entities.Loan{
				Code:               code,
				BookID:             book.ID,
				ReaderID:           reader.ID,
				IssuedByID:         actor.UserID,
				IssuedAt:           s.now(),
				ExpectedReturnDate: due,
				Status:             entities.LoanStatusActive,
				IssueCondition:     req.Condition,
			}
			if err := s.loans.WithTx(tx).CreateLoan(loan); err != nil {
				return err
			}

			if err := s.books.WithTx(tx).AdjustAvailableCopies(book.ID, -1); err != nil {
				if errors.Is(err, books.ErrAvailabilityConstraint) {
					return fmt.Errorf("%w: %v", ErrBookUnavailable, err)
				}
				return err
			}
			book.AvailableCopies--
			loan.Book = book
			loan.Reader = reader
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.audit.LogLoan(actor.UserID, "loan_create", loan.ID,
		fmt.Sprintf("Issued %s to %s", loan.Code, loan.Reader.Code), nil)
	return loan, nil
}

// ReturnLoan closes an ACTIVE or OVERDUE loan, freezes its fine as of today
// and puts the copy back on the shelf.
func (s *Service) ReturnLoan(ctx context.Context, actor auth.Principal, id uint, req ReturnRequest) (*entities.Loan, error) {
	if err := actor.Require(auth.PermLoansReturn); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	var returned *entities.Loan
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.loans.WithTx(tx)
		loan, err := repo.GetLoanByID(id)
		if err != nil {
			return err
		}

		rows, err := repo.MarkReturned(id, loans.ReturnUpdate{
			ReturnedByID: actor.UserID,
			ReturnedAt:   s.now(),
			Condition:    req.Condition,
			Observations: req.Observations,
			Fine:         s.policy().Calculate(loan.ExpectedReturnDate, s.today()),
		})
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("%w: %s is %s", ErrLoanNotReturnable, loan.Code, loan.Status)
		}

		if err := s.books.WithTx(tx).AdjustAvailableCopies(loan.BookID, 1); err != nil {
			return err
		}

		returned, err = repo.GetLoanByID(id)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrLoanNotReturnable) {
			s.audit.LogLoan(actor.UserID, "loan_return", id, "Return refused", err)
		}
		return nil, err
	}

	s.audit.LogLoan(actor.UserID, "loan_return", id,
		fmt.Sprintf("Returned %s, fine %s", returned.Code, returned.Fine.StringFixed(2)), nil)
	return returned, nil
}

// MarkLost closes an open loan as LOST. The fine is frozen as of today and
// the book's stock shrinks by the missing copy; available copies are
// unchanged since the copy was not on the shelf.
func (s *Service) MarkLost(ctx context.Context, actor auth.Principal, id uint, observations string) (*entities.Loan, error) {
	if err := actor.Require(auth.PermLoansLost); err != nil {
		return nil, err
	}

	var lost *entities.Loan
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.loans.WithTx(tx)
		loan, err := repo.GetLoanByID(id)
		if err != nil {
			return err
		}

		fine := s.policy().Calculate(loan.ExpectedReturnDate, s.today())
		rows, err := repo.MarkLost(id, fine, observations)
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("%w: %s is %s", ErrLoanNotOpen, loan.Code, loan.Status)
		}

		if err := s.books.WithTx(tx).AdjustTotalCopies(loan.BookID, -1, 0); err != nil {
			return err
		}

		lost, err = repo.GetLoanByID(id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit.LogLoan(actor.UserID, "loan_lost", id, "Marked "+lost.Code+" as lost", nil)
	return lost, nil
}

// DeleteLoan removes a closed loan for good. Open loans are refused with
// ErrActiveLoanDelete. A JSON snapshot is archived when an archive is set.
func (s *Service) DeleteLoan(ctx context.Context, actor auth.Principal, id uint) error {
	if err := actor.Require(auth.PermLoansDelete); err != nil {
		return err
	}

	var deleted *entities.Loan
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.loans.WithTx(tx)
		loan, err := repo.GetLoanByID(id)
		if err != nil {
			return err
		}
		if loan.Status.IsOpen() {
			return fmt.Errorf("%w: %s is %s", ErrActiveLoanDelete, loan.Code, loan.Status)
		}

		rows, err := repo.DeleteLoan(id)
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("%w: %s", ErrActiveLoanDelete, loan.Code)
		}
		deleted = loan
		return nil
	})
	if err != nil {
		s.audit.LogLoan(actor.UserID, "loan_delete", id, "Delete refused", err)
		return err
	}

	if _, err := s.archive.Save("loan", actor.UserID, deleted); err != nil {
		s.logger.Warn("failed to archive deleted loan", zap.String("code", deleted.Code), zap.Error(err))
	}
	s.audit.LogLoan(actor.UserID, "loan_delete", id, "Deleted "+deleted.Code, nil)
	return nil
}

// PayFine settles the fine of a closed loan.
func (s *Service) PayFine(ctx context.Context, actor auth.Principal, id uint) (*entities.Loan, error) {
	if err := actor.Require(auth.PermFinesManage); err != nil {
		return nil, err
	}

	var paid *entities.Loan
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.loans.WithTx(tx)
		loan, err := repo.GetLoanByID(id)
		if err != nil {
			return err
		}
		if !loan.Status.IsTerminal() {
			return fmt.Errorf("%w: %s is %s", ErrFineNotFinal, loan.Code, loan.Status)
		}

		rows, err := repo.MarkFinePaid(id)
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("%w: %s", ErrNoFineDue, loan.Code)
		}
		loan.FinePaid = true
		paid = loan
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.LogFine(actor.UserID, id, fmt.Sprintf("Paid %s for %s", paid.Fine.StringFixed(2), paid.Code), nil)
	return paid, nil
}
