package circulation

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mrlokans/biblioteca/internal/auth"
)

// SweepOverdue marks every ACTIVE loan due before today as OVERDUE and
// returns how many changed. Running it twice on the same day changes nothing
// the second time.
func (s *Service) SweepOverdue(ctx context.Context, actor auth.Principal) (int64, error) {
	if err := actor.Require(auth.PermMaintenanceRun); err != nil {
		return 0, err
	}

	n, err := s.loans.WithContext(ctx).MarkOverdue(s.today())
	s.audit.LogMaintenance(actor.UserID, "overdue_sweep", fmt.Sprintf("%d loans marked overdue", n),
		map[string]any{"overdue": n}, err)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep overdue loans: %w", err)
	}
	if n > 0 {
		s.logger.Info("overdue sweep", zap.Int64("marked", n))
	}
	return n, nil
}

// RecalculateFines persists today's fine on every open loan in one
// transaction and returns how many fines changed.
func (s *Service) RecalculateFines(ctx context.Context, actor auth.Principal) (int64, error) {
	if err := actor.Require(auth.PermMaintenanceRun); err != nil {
		return 0, err
	}

	policy := s.policy()
	today := s.today()

	var changed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.loans.WithTx(tx)
		open, err := repo.ListOpenLoans()
		if err != nil {
			return err
		}
		for _, loan := range open {
			rows, err := repo.UpdateFine(loan.ID, policy.Calculate(loan.ExpectedReturnDate, today))
			if err != nil {
				return fmt.Errorf("failed to update fine of %s: %w", loan.Code, err)
			}
			changed += rows
		}
		return nil
	})
	s.audit.LogMaintenance(actor.UserID, "fine_recalculation", fmt.Sprintf("%d fines updated", changed),
		map[string]any{"updated": changed}, err)
	if err != nil {
		return 0, err
	}
	return changed, nil
}
