package circulation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mrlokans/biblioteca/internal/auth"
	"github.com/mrlokans/biblioteca/internal/database/settings"
	"github.com/mrlokans/biblioteca/internal/entities"
)

// MembershipExpirer moves readers whose membership lapsed to EXPIRED.
// catalog.Service satisfies it.
type MembershipExpirer interface {
	ExpireMemberships(ctx context.Context, actor auth.Principal) (int64, error)
}

// MaintenanceReport summarises one maintenance run.
type MaintenanceReport struct {
	RanAt           time.Time `json:"ran_at"`
	OverdueMarked   int64     `json:"overdue_marked"`
	FinesUpdated    int64     `json:"fines_updated"`
	ReadersExpired  int64     `json:"readers_expired"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// Maintenance runs the periodic housekeeping steps in order: overdue sweep,
// fine recalculation, membership expiry. The last report is kept in settings.
type Maintenance struct {
	loans    *Service
	readers  MembershipExpirer
	settings *settings.Repository
	logger   *zap.Logger
}

func NewMaintenance(loans *Service, readers MembershipExpirer, logger *zap.Logger) *Maintenance {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Maintenance{
		loans:    loans,
		readers:  readers,
		settings: settings.NewRepository(loans.db),
		logger:   logger,
	}
}

// Run executes every step. A failing step stops the run; earlier steps have
// already committed.
func (m *Maintenance) Run(ctx context.Context, actor auth.Principal) (*MaintenanceReport, error) {
	if err := actor.Require(auth.PermMaintenanceRun); err != nil {
		return nil, err
	}

	start := m.loans.now()
	report := &MaintenanceReport{RanAt: start}

	var err error
	if report.OverdueMarked, err = m.loans.SweepOverdue(ctx, actor); err != nil {
		return nil, err
	}
	if report.FinesUpdated, err = m.loans.RecalculateFines(ctx, actor); err != nil {
		return nil, err
	}
	if m.readers != nil {
		if report.ReadersExpired, err = m.readers.ExpireMemberships(ctx, actor); err != nil {
			return nil, err
		}
	}
	report.DurationSeconds = m.loans.now().Sub(start).Seconds()

	summary, err := json.Marshal(report)
	if err != nil {
		return nil, err
	}
	if err := m.settings.SetSettings(map[string]string{
		entities.SettingKeyMaintenanceLastAt:      start.Format(time.RFC3339),
		entities.SettingKeyMaintenanceLastSummary: string(summary),
	}); err != nil {
		return nil, fmt.Errorf("failed to record maintenance run: %w", err)
	}

	m.logger.Info("maintenance completed",
		zap.Int64("overdue_marked", report.OverdueMarked),
		zap.Int64("fines_updated", report.FinesUpdated),
		zap.Int64("readers_expired", report.ReadersExpired))
	return report, nil
}

// LastReport returns the report stored by the most recent Run, or nil when
// maintenance has never run.
func (m *Maintenance) LastReport(ctx context.Context) (*MaintenanceReport, error) {
	raw, err := settings.NewRepository(m.loans.db.WithContext(ctx)).
		GetValue(entities.SettingKeyMaintenanceLastSummary, "")
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var report MaintenanceReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return nil, fmt.Errorf("corrupt maintenance summary: %w", err)
	}
	return &report, nil
}
