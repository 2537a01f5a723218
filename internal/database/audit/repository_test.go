package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/biblioteca/internal/database/dbtest"
	"github.com/mrlokans/biblioteca/internal/entities"
)

func TestRepository_LogEvent(t *testing.T) {
	repo := NewRepository(dbtest.New(t).DB)

	event := &entities.AuditEvent{
		UserID:      1,
		EventType:   entities.AuditEventLoan,
		Action:      "loan_create",
		Description: "Issued PRES-000001",
		Status:      entities.AuditStatusSuccess,
	}

	err := repo.LogEvent(event)
	require.NoError(t, err)
	assert.NotZero(t, event.ID)
	assert.False(t, event.CreatedAt.IsZero())
}

func TestRepository_ListEvents(t *testing.T) {
	repo := NewRepository(dbtest.New(t).DB)

	loanID := uint(7)
	events := []*entities.AuditEvent{
		{UserID: 1, EventType: entities.AuditEventLoan, Action: "loan_create", EntityType: "loan", EntityID: &loanID, Status: entities.AuditStatusSuccess},
		{UserID: 1, EventType: entities.AuditEventLoan, Action: "loan_return", EntityType: "loan", EntityID: &loanID, Status: entities.AuditStatusSuccess},
		{UserID: 2, EventType: entities.AuditEventAuth, Action: "login", Status: entities.AuditStatusFailed},
	}
	for _, e := range events {
		require.NoError(t, repo.LogEvent(e))
	}

	all, total, err := repo.ListEvents(Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, "login", all[0].Action)

	_, total, err = repo.ListEvents(Filter{UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	_, total, err = repo.ListEvents(Filter{EventType: entities.AuditEventAuth})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, total, err = repo.ListEvents(Filter{EntityType: "loan", EntityID: loanID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	page, total, err := repo.ListEvents(Filter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 1)
}

func TestRepository_DeleteOldEvents(t *testing.T) {
	repo := NewRepository(dbtest.New(t).DB)

	old := &entities.AuditEvent{
		EventType: entities.AuditEventMaintenance,
		Action:    "overdue_sweep",
		Status:    entities.AuditStatusSuccess,
		CreatedAt: time.Now().UTC().AddDate(0, 0, -100),
	}
	recent := &entities.AuditEvent{
		EventType: entities.AuditEventMaintenance,
		Action:    "overdue_sweep",
		Status:    entities.AuditStatusSuccess,
	}
	require.NoError(t, repo.LogEvent(old))
	require.NoError(t, repo.LogEvent(recent))

	deleted, err := repo.DeleteOldEvents(time.Now().UTC().AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, total, err := repo.ListEvents(Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}
