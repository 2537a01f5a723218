package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"

	"github.com/mrlokans/biblioteca/internal/auth"
)

// LoanMaintainer is the part of circulation.Service the loan queues drive.
type LoanMaintainer interface {
	SweepOverdue(ctx context.Context, actor auth.Principal) (int64, error)
	RecalculateFines(ctx context.Context, actor auth.Principal) (int64, error)
}

// MembershipExpirer is the part of catalog.Service the reader queue drives.
type MembershipExpirer interface {
	ExpireMemberships(ctx context.Context, actor auth.Principal) (int64, error)
}

var errNotConfigured = errors.New("task dependency not configured")

// taskPrincipal runs queued work with system rights, attributed in the
// audit log to the staff member who enqueued it.
func taskPrincipal(requestedBy uint) auth.Principal {
	p := auth.SystemPrincipal()
	p.UserID = requestedBy
	return p
}

func maintenanceQueue(name string) backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        name,
		MaxAttempts: 1,
		Timeout:     5 * time.Minute,
		Retention: &backlite.Retention{
			Duration: 24 * time.Hour,
			Data:     &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// SweepOverdueTask moves ACTIVE loans past their due date to OVERDUE.
type SweepOverdueTask struct {
	RequestedBy uint `json:"requested_by"`
}

func (t SweepOverdueTask) Config() backlite.QueueConfig {
	return maintenanceQueue(TypeSweepOverdue)
}

func SweepOverdueProcessor(loans LoanMaintainer, logger *zap.Logger) backlite.QueueProcessor[SweepOverdueTask] {
	return func(ctx context.Context, task SweepOverdueTask) error {
		if loans == nil {
			return errNotConfigured
		}
		n, err := loans.SweepOverdue(ctx, taskPrincipal(task.RequestedBy))
		if err != nil {
			return err
		}
		logger.Info("overdue sweep task finished", zap.Int64("marked", n))
		return nil
	}
}

// RecalculateFinesTask persists today's fine on every open loan.
type RecalculateFinesTask struct {
	RequestedBy uint `json:"requested_by"`
}

func (t RecalculateFinesTask) Config() backlite.QueueConfig {
	return maintenanceQueue(TypeRecalculateFines)
}

func RecalculateFinesProcessor(loans LoanMaintainer, logger *zap.Logger) backlite.QueueProcessor[RecalculateFinesTask] {
	return func(ctx context.Context, task RecalculateFinesTask) error {
		if loans == nil {
			return errNotConfigured
		}
		n, err := loans.RecalculateFines(ctx, taskPrincipal(task.RequestedBy))
		if err != nil {
			return err
		}
		logger.Info("fine recalculation task finished", zap.Int64("updated", n))
		return nil
	}
}

// ExpireReadersTask moves readers with lapsed memberships to EXPIRED.
type ExpireReadersTask struct {
	RequestedBy uint `json:"requested_by"`
}

func (t ExpireReadersTask) Config() backlite.QueueConfig {
	return maintenanceQueue(TypeExpireReaders)
}

func ExpireReadersProcessor(readers MembershipExpirer, logger *zap.Logger) backlite.QueueProcessor[ExpireReadersTask] {
	return func(ctx context.Context, task ExpireReadersTask) error {
		if readers == nil {
			return errNotConfigured
		}
		n, err := readers.ExpireMemberships(ctx, taskPrincipal(task.RequestedBy))
		if err != nil {
			return err
		}
		logger.Info("reader expiry task finished", zap.Int64("expired", n))
		return nil
	}
}
