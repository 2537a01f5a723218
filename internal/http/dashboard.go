package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/biblioteca/internal/auth"
	"github.com/mrlokans/biblioteca/internal/circulation"
	"github.com/mrlokans/biblioteca/internal/sysconfig"
)

type DashboardController struct {
	circulation *circulation.Service
	maintenance *circulation.Maintenance
	sys         *sysconfig.Manager
	logger      *zap.Logger
}

func NewDashboardController(svc *circulation.Service, m *circulation.Maintenance, sys *sysconfig.Manager, logger *zap.Logger) *DashboardController {
	return &DashboardController{circulation: svc, maintenance: m, sys: sys, logger: logger}
}

type dashboardResponse struct {
	Maintenance     *circulation.MaintenanceReport `json:"maintenance,omitempty"`
	MaintenanceMode bool                           `json:"maintenance_mode"`
	Stats           any                            `json:"stats"`
}

// Dashboard handles GET /api/dashboard. It brings loan states, fines and
// memberships up to date, then returns the counters. In maintenance mode
// nothing is written and the last stored report is returned instead.
func (dc *DashboardController) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	actor := principal(c)
	resp := dashboardResponse{MaintenanceMode: dc.sys.Current().System.MaintenanceMode}

	var err error
	if resp.MaintenanceMode || !actor.Can(auth.PermMaintenanceRun) {
		resp.Maintenance, err = dc.maintenance.LastReport(ctx)
	} else {
		resp.Maintenance, err = dc.maintenance.Run(ctx, actor)
	}
	if err != nil {
		respondServiceError(c, dc.logger, err)
		return
	}

	stats, err := dc.circulation.Stats(ctx, actor)
	if err != nil {
		respondServiceError(c, dc.logger, err)
		return
	}
	resp.Stats = stats
	c.JSON(http.StatusOK, resp)
}

// Stats handles GET /api/stats without running maintenance.
func (dc *DashboardController) Stats(c *gin.Context) {
	stats, err := dc.circulation.Stats(c.Request.Context(), principal(c))
	if err != nil {
		respondServiceError(c, dc.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
