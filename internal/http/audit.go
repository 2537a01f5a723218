package http

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/biblioteca/internal/audit"
	auditrepo "github.com/mrlokans/biblioteca/internal/database/audit"
	"github.com/mrlokans/biblioteca/internal/entities"
)

type AuditController struct {
	audit  *audit.Service
	logger *zap.Logger
}

func NewAuditController(svc *audit.Service, logger *zap.Logger) *AuditController {
	return &AuditController{audit: svc, logger: logger}
}

// List handles GET /api/audit?type=&user_id=&entity_type=&entity_id=&since=
// where since is RFC 3339.
func (ac *AuditController) List(c *gin.Context) {
	limit, offset := pagination(c)
	filter := auditrepo.Filter{
		EventType:  entities.AuditEventType(c.Query("type")),
		EntityType: c.Query("entity_type"),
		Limit:      limit,
		Offset:     offset,
	}
	if v, err := strconv.ParseUint(c.Query("user_id"), 10, 64); err == nil {
		filter.UserID = uint(v)
	}
	if v, err := strconv.ParseUint(c.Query("entity_id"), 10, 64); err == nil {
		filter.EntityID = uint(v)
	}
	if s := c.Query("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			respondBadRequest(c, "invalid since: expected RFC 3339")
			return
		}
		filter.Since = since
	}

	events, total, err := ac.audit.ListEvents(filter)
	if err != nil {
		respondServiceError(c, ac.logger, err)
		return
	}
	respondPage(c, events, total, limit, offset)
}
