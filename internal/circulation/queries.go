package circulation

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mrlokans/biblioteca/internal/auth"
	"github.com/mrlokans/biblioteca/internal/database/loans"
	"github.com/mrlokans/biblioteca/internal/entities"
	"github.com/mrlokans/biblioteca/internal/fines"
)

// withFine projects a loan with the fine it would carry if returned today.
// Closed loans keep their frozen fine.
func withFine(loan entities.Loan, policy fines.Policy, today time.Time) entities.LoanWithFine {
	out := entities.LoanWithFine{Loan: loan, ComputedFine: loan.Fine}
	if loan.Status.IsOpen() {
		if days := fines.DaysBetween(loan.ExpectedReturnDate, today); days > 0 {
			out.DaysOverdue = days
		}
		out.ComputedFine = policy.Calculate(loan.ExpectedReturnDate, today)
	}
	return out
}

func (s *Service) project(list []entities.Loan) []entities.LoanWithFine {
	policy, today := s.policy(), s.today()
	out := make([]entities.LoanWithFine, 0, len(list))
	for _, loan := range list {
		out = append(out, withFine(loan, policy, today))
	}
	return out
}

func (s *Service) GetLoan(ctx context.Context, actor auth.Principal, id uint) (*entities.LoanWithFine, error) {
	if err := actor.Require(auth.PermReportsView); err != nil {
		return nil, err
	}
	loan, err := s.loans.WithContext(ctx).GetLoanByID(id)
	if err != nil {
		return nil, err
	}
	out := withFine(*loan, s.policy(), s.today())
	return &out, nil
}

func (s *Service) GetLoanByCode(ctx context.Context, actor auth.Principal, code string) (*entities.LoanWithFine, error) {
	if err := actor.Require(auth.PermReportsView); err != nil {
		return nil, err
	}
	loan, err := s.loans.WithContext(ctx).GetLoanByCode(code)
	if err != nil {
		return nil, err
	}
	out := withFine(*loan, s.policy(), s.today())
	return &out, nil
}

// ListLoans returns a page of loans matching filter with current fines.
func (s *Service) ListLoans(ctx context.Context, actor auth.Principal, filter loans.Filter) (entities.Page[entities.LoanWithFine], error) {
	if err := actor.Require(auth.PermReportsView); err != nil {
		return entities.Page[entities.LoanWithFine]{}, err
	}
	list, total, err := s.loans.WithContext(ctx).ListLoans(filter)
	if err != nil {
		return entities.Page[entities.LoanWithFine]{}, fmt.Errorf("failed to list loans: %w", err)
	}
	return entities.Page[entities.LoanWithFine]{Items: s.project(list), Total: total}, nil
}

// ListOverdue returns open loans past their expected return date, whether
// or not the sweep has reclassified them yet.
func (s *Service) ListOverdue(ctx context.Context, actor auth.Principal) (entities.Page[entities.LoanWithFine], error) {
	return s.ListLoans(ctx, actor, loans.Filter{
		Statuses:  entities.OpenLoanStatuses,
		DueBefore: s.today(),
	})
}

// ListDueSoon returns ACTIVE loans due between today and today+days.
// days <= 0 uses the configured window.
func (s *Service) ListDueSoon(ctx context.Context, actor auth.Principal, days int) (entities.Page[entities.LoanWithFine], error) {
	if days <= 0 {
		days = s.sys.Current().Loans.DueSoonDays
	}
	today := s.today()
	return s.ListLoans(ctx, actor, loans.Filter{
		Statuses: []entities.LoanStatus{entities.LoanStatusActive},
		DueFrom:  today,
		DueTo:    today.AddDate(0, 0, days),
	})
}

// ListWithFines returns open loans whose fine computed for today is
// positive. Nothing is written.
func (s *Service) ListWithFines(ctx context.Context, actor auth.Principal) ([]entities.LoanWithFine, error) {
	if err := actor.Require(auth.PermReportsView); err != nil {
		return nil, err
	}
	list, _, err := s.loans.WithContext(ctx).ListLoans(loans.Filter{Statuses: entities.OpenLoanStatuses})
	if err != nil {
		return nil, fmt.Errorf("failed to list open loans: %w", err)
	}

	out := make([]entities.LoanWithFine, 0, len(list))
	for _, lf := range s.project(list) {
		if lf.ComputedFine.GreaterThan(decimal.Zero) {
			out = append(out, lf)
		}
	}
	return out, nil
}

// Stats aggregates circulation and inventory counters.
func (s *Service) Stats(ctx context.Context, actor auth.Principal) (*entities.LoanStats, error) {
	if err := actor.Require(auth.PermReportsView); err != nil {
		return nil, err
	}
	loanRepo := s.loans.WithContext(ctx)

	counts, err := loanRepo.CountByStatus()
	if err != nil {
		return nil, fmt.Errorf("failed to count loans: %w", err)
	}
	stats := &entities.LoanStats{
		ActiveLoans:   counts[entities.LoanStatusActive],
		OverdueLoans:  counts[entities.LoanStatusOverdue],
		ReturnedLoans: counts[entities.LoanStatusReturned],
		LostLoans:     counts[entities.LoanStatusLost],
	}
	for _, n := range counts {
		stats.TotalLoans += n
	}

	if stats.OutstandingFines, err = loanRepo.SumFines(false); err != nil {
		return nil, fmt.Errorf("failed to sum outstanding fines: %w", err)
	}
	if stats.CollectedFines, err = loanRepo.SumFines(true); err != nil {
		return nil, fmt.Errorf("failed to sum collected fines: %w", err)
	}

	inv, err := s.books.WithContext(ctx).GetInventory()
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}
	stats.TotalBooks, stats.TotalCopies, stats.AvailableCopies = inv.Books, inv.TotalCopies, inv.AvailableCopies

	if stats.ActiveReaders, err = s.readers.WithContext(ctx).CountByStatus(entities.ReaderStatusActive); err != nil {
		return nil, fmt.Errorf("failed to count readers: %w", err)
	}

	dueSoon, err := s.ListDueSoon(ctx, actor, 0)
	if err != nil {
		return nil, err
	}
	stats.DueSoonLoans = dueSoon.Total
	return stats, nil
}
