package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/biblioteca/internal/tasks"
)

// TasksController enqueues maintenance tasks and reports their status.
type TasksController struct {
	client *tasks.Client
	logger *zap.Logger
}

func NewTasksController(client *tasks.Client, logger *zap.Logger) *TasksController {
	return &TasksController{client: client, logger: logger}
}

// ListTaskTypes handles GET /api/tasks/types.
func (tc *TasksController) ListTaskTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"task_types": tasks.Types()})
}

// GetTaskStatus handles GET /api/tasks/:id.
func (tc *TasksController) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, err := tc.client.Status(ctx, taskID)
	if err != nil {
		respondServiceError(c, tc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": taskID, "status": tasks.StatusString(status)})
}

type runTaskRequest struct {
	RetentionDays int `json:"retention_days"`
}

// RunTask handles POST /api/tasks/:type/run.
func (tc *TasksController) RunTask(c *gin.Context) {
	taskType := c.Param("type")

	var req runTaskRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	id, err := tc.client.Enqueue(taskType, tasks.Params{
		RequestedBy:   principal(c).UserID,
		RetentionDays: req.RetentionDays,
	})
	if err != nil {
		respondServiceError(c, tc.logger, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"task_id": id,
		"type":    taskType,
		"message": "task enqueued",
	})
}
