// Package scheduler runs the timed database backup.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mrlokans/biblioteca/internal/audit"
	"github.com/mrlokans/biblioteca/internal/database"
	"github.com/mrlokans/biblioteca/internal/database/settings"
	"github.com/mrlokans/biblioteca/internal/entities"
	"github.com/mrlokans/biblioteca/internal/sysconfig"
)

const backupTimeLayout = "20060102T150405Z"

var ErrBackupInProgress = errors.New("a backup is already running")

// BackupScheduler snapshots the database on the cron schedule from the
// backup section of the system configuration and keeps the newest
// Retention files.
type BackupScheduler struct {
	db       *database.Database
	sys      *sysconfig.Manager
	settings *settings.Repository
	audit    *audit.Service
	logger   *zap.Logger
	now      func() time.Time

	cron      *cron.Cron
	entryID   cron.EntryID
	mu        sync.RWMutex
	isRunning bool
	backingUp bool
}

func NewBackupScheduler(db *database.Database, sys *sysconfig.Manager, auditSvc *audit.Service, logger *zap.Logger) *BackupScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackupScheduler{
		db:       db,
		sys:      sys,
		settings: settings.NewRepository(db.DB),
		audit:    auditSvc,
		logger:   logger.Named("backup"),
		now:      func() time.Time { return time.Now().UTC() },
		cron:     cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// Start schedules the job when backups are enabled. It is a no-op when
// already running or disabled.
func (s *BackupScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	cfg := s.sys.Current().Backup
	if !cfg.Enabled {
		s.logger.Info("backup scheduler disabled")
		return nil
	}

	entryID, err := s.cron.AddFunc(cfg.Schedule, func() {
		if _, err := s.RunNow(context.Background()); err != nil && !errors.Is(err, ErrBackupInProgress) {
			s.logger.Error("scheduled backup failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid backup schedule %q: %w", cfg.Schedule, err)
	}
	s.entryID = entryID
	s.cron.Start()
	s.isRunning = true

	s.logger.Info("backup scheduler started",
		zap.String("schedule", cfg.Schedule),
		zap.Time("next_run", s.cron.Entry(entryID).Next))
	return nil
}

// Stop waits for a running backup and stops the timer.
func (s *BackupScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}
	<-s.cron.Stop().Done()
	s.cron.Remove(s.entryID)
	s.isRunning = false
	s.logger.Info("backup scheduler stopped")
}

// Reschedule restarts the timer with the current configuration. It is
// registered as a sysconfig change listener.
func (s *BackupScheduler) Reschedule() error {
	s.Stop()
	return s.Start()
}

func (s *BackupScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRun returns when the next backup fires, or nil when not scheduled.
func (s *BackupScheduler) NextRun() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	next := s.cron.Entry(s.entryID).Next
	return &next
}

// RunNow writes one backup immediately and prunes old ones. It returns the
// path of the new file.
func (s *BackupScheduler) RunNow(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.backingUp {
		s.mu.Unlock()
		return "", ErrBackupInProgress
	}
	s.backingUp = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.backingUp = false
		s.mu.Unlock()
	}()

	cfg := s.sys.Current().Backup
	started := s.now()

	path, err := s.backup(ctx, cfg, started)
	var pruned []string
	if err == nil {
		pruned, err = prune(cfg.Directory, s.filePrefix(), cfg.Retention)
	}

	status, message := "success", fmt.Sprintf("Backup written to %s", path)
	if err != nil {
		status, message = "failed", err.Error()
	}
	if serr := s.settings.SetSettings(map[string]string{
		entities.SettingKeyBackupLastAt:      started.Format(time.RFC3339),
		entities.SettingKeyBackupLastStatus:  status,
		entities.SettingKeyBackupLastMessage: message,
		entities.SettingKeyBackupLastFile:    path,
	}); serr != nil {
		s.logger.Warn("failed to record backup status", zap.Error(serr))
	}
	s.audit.LogMaintenance(0, "database_backup", message,
		map[string]any{"file": path, "pruned": len(pruned)}, err)

	if err != nil {
		return "", err
	}
	s.logger.Info("backup completed", zap.String("file", path), zap.Int("pruned", len(pruned)),
		zap.Duration("duration", s.now().Sub(started)))
	return path, nil
}

func (s *BackupScheduler) backup(ctx context.Context, cfg sysconfig.BackupSection, at time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(cfg.Directory, 0o750); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}
	path := filepath.Join(cfg.Directory, s.filePrefix()+at.Format(backupTimeLayout)+".db")
	if err := s.db.Backup(path); err != nil {
		return "", err
	}
	return path, nil
}

// filePrefix is the database file name without extension plus a dash.
func (s *BackupScheduler) filePrefix() string {
	base := filepath.Base(s.db.Path())
	return strings.TrimSuffix(base, filepath.Ext(base)) + "-"
}

// prune removes the oldest backups beyond keep. Timestamps in the names
// sort lexically.
func prune(dir, prefix string, keep int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && isBackupName(e.Name(), prefix) {
			names = append(names, e.Name())
		}
	}
	if len(names) <= keep {
		return nil, nil
	}

	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	var removed []string
	for _, name := range names[keep:] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return removed, fmt.Errorf("failed to remove old backup %s: %w", name, err)
		}
		removed = append(removed, name)
	}
	return removed, nil
}

// isBackupName matches <prefix><timestamp>.db so that other files sharing
// the prefix, such as the task queue database, are never pruned.
func isBackupName(name, prefix string) bool {
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".db") {
		return false
	}
	_, err := time.Parse(backupTimeLayout, strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".db"))
	return err == nil
}
