package audit

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mrlokans/biblioteca/internal/database/audit"
	"github.com/mrlokans/biblioteca/internal/entities"
)

// Service provides high-level audit logging functionality.
// A nil *Service is valid and records nothing.
type Service struct {
	repo     *audit.Repository
	logger   *zap.Logger
	inflight sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger}
}

// Log records a generic audit event.
func (s *Service) Log(event *entities.AuditEvent) error {
	if s == nil {
		return nil
	}
	return s.repo.LogEvent(event)
}

// LogAsync records an audit event in the background. Failures are logged, never returned.
func (s *Service) LogAsync(event *entities.AuditEvent) {
	if s == nil {
		return
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if err := s.repo.LogEvent(event); err != nil {
			s.logger.Warn("failed to record audit event",
				zap.String("action", event.Action),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until all pending asynchronous events are written.
func (s *Service) Wait() {
	if s == nil {
		return
	}
	s.inflight.Wait()
}

// LogLoan records a circulation event on a single loan.
func (s *Service) LogLoan(userID uint, action string, loanID uint, description string, err error) {
	event := &entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventLoan,
		Action:      action,
		Description: description,
		EntityType:  "loan",
		EntityID:    idPtr(loanID),
	}
	s.LogAsync(withOutcome(event, err))
}

// LogFine records a fine payment.
func (s *Service) LogFine(userID uint, loanID uint, description string, err error) {
	event := &entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventFine,
		Action:      "fine_pay",
		Description: description,
		EntityType:  "loan",
		EntityID:    idPtr(loanID),
	}
	s.LogAsync(withOutcome(event, err))
}

// LogCatalog records a change to a book or reader.
func (s *Service) LogCatalog(userID uint, entityType, action string, entityID uint, description string) {
	eventType := entities.AuditEventCatalog
	if entityType == "reader" {
		eventType = entities.AuditEventReader
	}
	s.LogAsync(withOutcome(&entities.AuditEvent{
		UserID:      userID,
		EventType:   eventType,
		Action:      action,
		Description: description,
		EntityType:  entityType,
		EntityID:    idPtr(entityID),
	}, nil))
}

// LogMaintenance records a batch run such as the overdue sweep.
func (s *Service) LogMaintenance(userID uint, action, description string, metadata map[string]any, err error) {
	event := &entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventMaintenance,
		Action:      action,
		Description: description,
	}
	if metadata != nil {
		if mdBytes, e := json.Marshal(metadata); e == nil {
			event.Metadata = string(mdBytes)
		}
	}
	s.LogAsync(withOutcome(event, err))
}

// LogAuth records an authentication event.
func (s *Service) LogAuth(userID uint, action, username, ipAddr string, success bool) {
	event := &entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventAuth,
		Action:      action,
		Description: truncate(username, 100),
		IPAddress:   ipAddr,
		Status:      entities.AuditStatusSuccess,
	}
	if !success {
		event.Status = entities.AuditStatusFailed
	}
	s.LogAsync(event)
}

// LogUsers records a staff administration event.
func (s *Service) LogUsers(actorID uint, action string, targetID uint, description string) {
	s.LogAsync(withOutcome(&entities.AuditEvent{
		UserID:      actorID,
		EventType:   entities.AuditEventUsers,
		Action:      action,
		Description: description,
		EntityType:  "user",
		EntityID:    idPtr(targetID),
	}, nil))
}

// LogConfig records a system configuration change.
func (s *Service) LogConfig(userID uint, action, description string, err error) {
	s.LogAsync(withOutcome(&entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventConfig,
		Action:      action,
		Description: description,
	}, err))
}

// ListEvents retrieves paginated audit events.
func (s *Service) ListEvents(filter audit.Filter) ([]entities.AuditEvent, int64, error) {
	return s.repo.ListEvents(filter)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, fmt.Errorf("retention must be positive, got %s", retention)
	}
	cutoff := time.Now().UTC().Add(-retention)
	return s.repo.DeleteOldEvents(cutoff)
}

func withOutcome(event *entities.AuditEvent, err error) *entities.AuditEvent {
	event.Status = entities.AuditStatusSuccess
	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}
	return event
}

func idPtr(id uint) *uint {
	if id == 0 {
		return nil
	}
	return &id
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
