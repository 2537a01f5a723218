package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/biblioteca/internal/sysconfig"
)

// MaintenanceMode blocks writes while system.maintenance_mode is on.
// Reads, auth and configuration endpoints always pass so that an operator
// can log in and switch the mode off.
func MaintenanceMode(sys *sysconfig.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !sys.Current().System.MaintenanceMode {
			c.Next()
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		if allowedInMaintenance(c.Request.URL.Path) {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "the system is in maintenance mode",
			Code:  "maintenance_mode",
		})
	}
}

func allowedInMaintenance(path string) bool {
	for _, prefix := range []string{"/api/auth/", "/api/config/"} {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
