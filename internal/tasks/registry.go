package tasks

import (
	"errors"
	"fmt"

	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"
)

const (
	TypeSweepOverdue       = "sweep_overdue"
	TypeRecalculateFines   = "recalculate_fines"
	TypeExpireReaders      = "expire_readers"
	TypeCleanupAuditEvents = "cleanup_audit_events"
)

var ErrUnknownTaskType = errors.New("unknown task type")

// TypeInfo describes a task type that can be enqueued on demand.
type TypeInfo struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

var types = []TypeInfo{
	{Type: TypeSweepOverdue, Description: "Mark ACTIVE loans past their due date as OVERDUE"},
	{Type: TypeRecalculateFines, Description: "Persist the current fine on every open loan"},
	{Type: TypeExpireReaders, Description: "Expire readers whose membership has lapsed"},
	{Type: TypeCleanupAuditEvents, Description: "Delete audit events older than the retention period"},
}

// Types lists the task types in a stable order.
func Types() []TypeInfo {
	out := make([]TypeInfo, len(types))
	copy(out, types)
	return out
}

// Params are the optional inputs accepted when enqueuing a task.
type Params struct {
	RequestedBy   uint
	RetentionDays int
}

// Build returns the task value for taskType.
func Build(taskType string, p Params) (backlite.Task, error) {
	switch taskType {
	case TypeSweepOverdue:
		return SweepOverdueTask{RequestedBy: p.RequestedBy}, nil
	case TypeRecalculateFines:
		return RecalculateFinesTask{RequestedBy: p.RequestedBy}, nil
	case TypeExpireReaders:
		return ExpireReadersTask{RequestedBy: p.RequestedBy}, nil
	case TypeCleanupAuditEvents:
		return CleanupAuditEventsTask{RetentionDays: p.RetentionDays}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, taskType)
}

// Deps are the services queued tasks call into.
type Deps struct {
	Loans   LoanMaintainer
	Readers MembershipExpirer
	Audit   AuditEventCleaner
	Logger  *zap.Logger
}

// RegisterAll registers a queue for every task type.
func (c *Client) RegisterAll(d Deps) {
	logger := d.Logger
	if logger == nil {
		logger = c.logger
	}
	c.Register(
		backlite.NewQueue(SweepOverdueProcessor(d.Loans, logger)),
		backlite.NewQueue(RecalculateFinesProcessor(d.Loans, logger)),
		backlite.NewQueue(ExpireReadersProcessor(d.Readers, logger)),
		backlite.NewQueue(CleanupAuditEventsProcessor(d.Audit, logger)),
	)
}

// Enqueue builds and saves one task, returning its id.
func (c *Client) Enqueue(taskType string, p Params) (string, error) {
	if taskType == TypeCleanupAuditEvents && p.RetentionDays <= 0 {
		p.RetentionDays = c.config.AuditRetentionDays
	}
	task, err := Build(taskType, p)
	if err != nil {
		return "", err
	}
	ids, err := c.client.Add(task).Save()
	if err != nil {
		return "", fmt.Errorf("failed to enqueue %s: %w", taskType, err)
	}
	return ids[0], nil
}

// StatusString renders a backlite status for API responses.
func StatusString(status backlite.TaskStatus) string {
	switch status {
	case backlite.TaskStatusPending:
		return "pending"
	case backlite.TaskStatusRunning:
		return "running"
	case backlite.TaskStatusSuccess:
		return "success"
	case backlite.TaskStatusFailure:
		return "failure"
	case backlite.TaskStatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}
