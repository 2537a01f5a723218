package http

import (
	"go.uber.org/zap"

	"github.com/mrlokans/biblioteca/internal/audit"
	"github.com/mrlokans/biblioteca/internal/auth"
	"github.com/mrlokans/biblioteca/internal/catalog"
	"github.com/mrlokans/biblioteca/internal/circulation"
	"github.com/mrlokans/biblioteca/internal/config"
	"github.com/mrlokans/biblioteca/internal/database"
	"github.com/mrlokans/biblioteca/internal/sysconfig"
	"github.com/mrlokans/biblioteca/internal/tasks"
)

// RouterConfig contains all dependencies needed to create the HTTP router.
type RouterConfig struct {
	Database *database.Database
	Version  string
	Logger   *zap.Logger

	// Live system configuration; drives maintenance mode and the dashboard.
	Sys *sysconfig.Manager

	// Authentication
	AuthService    *auth.Service
	SessionManager *auth.SessionManager
	AuthController *auth.AuthController
	AuthConfig     config.Auth // used when AuthController is nil
	CSRFSecret     []byte      // empty disables CSRF protection
	SecureCookies  bool

	Catalog     *catalog.Service
	Circulation *circulation.Service
	Maintenance *circulation.Maintenance
	Audit       *audit.Service

	// Task queue client (optional)
	TaskClient *tasks.Client
}
