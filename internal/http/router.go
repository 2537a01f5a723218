package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/biblioteca/internal/auth"
	"github.com/mrlokans/biblioteca/internal/logging"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(logging.GinLogger(logger))
	router.Use(auth.SecurityHeadersMiddleware())
	if cfg.SecureCookies {
		router.Use(auth.StrictTransportSecurityMiddleware(31536000))
	}

	// CSRF must run before the session middleware so that the session
	// context survives CSRF's request replacement.
	if len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.SecureCookies, cfg.AuthService))
	}
	if cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.SessionLoadSave())
	}
	router.Use(auth.NewMiddleware(cfg.AuthService, cfg.SessionManager).Handler())
	if cfg.Sys != nil {
		router.Use(MaintenanceMode(cfg.Sys))
	}

	health := NewHealthController(cfg.Database, cfg.Version)
	router.GET("/health", health.Status)
	router.GET("/ping", Ping)

	api := router.Group("/api")

	authController := cfg.AuthController
	if authController == nil {
		authController = auth.NewAuthController(cfg.AuthService, cfg.SessionManager, cfg.AuthConfig, logger)
	}
	authController.RegisterRoutes(api)

	books := NewBooksController(cfg.Catalog, logger)
	booksRead := api.Group("/books", auth.RequirePermission(auth.PermBooksRead))
	booksRead.GET("", books.List)
	booksRead.GET("/:id", books.Get)
	booksRead.GET("/isbn/:isbn", books.GetByISBN)
	booksManage := api.Group("/books", auth.RequirePermission(auth.PermBooksManage))
	booksManage.POST("", books.Create)
	booksManage.PUT("/:id", books.Update)
	booksManage.DELETE("/:id", books.Delete)

	readers := NewReadersController(cfg.Catalog, logger)
	readersRead := api.Group("/readers", auth.RequirePermission(auth.PermReadersRead))
	readersRead.GET("", readers.List)
	readersRead.GET("/:id", readers.Get)
	readersRead.GET("/code/:code", readers.GetByCode)
	readersManage := api.Group("/readers", auth.RequirePermission(auth.PermReadersManage))
	readersManage.POST("", readers.Create)
	readersManage.PUT("/:id", readers.Update)
	readersManage.POST("/:id/status", readers.SetStatus)
	readersManage.DELETE("/:id", readers.Delete)

	loans := NewLoansController(cfg.Circulation, logger)
	reports := auth.RequirePermission(auth.PermReportsView)
	api.GET("/loans", reports, loans.List)
	api.GET("/loans/overdue", reports, loans.Overdue)
	api.GET("/loans/due-soon", reports, loans.DueSoon)
	api.GET("/loans/fines", reports, loans.Fines)
	api.GET("/loans/:id", reports, loans.Get)
	api.POST("/loans", auth.RequirePermission(auth.PermLoansIssue), loans.Create)
	api.POST("/loans/:id/return", auth.RequirePermission(auth.PermLoansReturn), loans.Return)
	api.POST("/loans/:id/lost", auth.RequirePermission(auth.PermLoansLost), loans.MarkLost)
	api.POST("/loans/:id/pay", auth.RequirePermission(auth.PermFinesManage), loans.PayFine)
	api.DELETE("/loans/:id", auth.RequirePermission(auth.PermLoansDelete), loans.Delete)

	dashboard := NewDashboardController(cfg.Circulation, cfg.Maintenance, cfg.Sys, logger)
	api.GET("/dashboard", reports, dashboard.Dashboard)
	api.GET("/stats", reports, dashboard.Stats)

	if cfg.Sys != nil {
		sysController := NewSystemConfigController(cfg.Sys, cfg.Audit, logger)
		api.GET("/config", reports, sysController.Get)
		api.GET("/config/export", reports, sysController.Export)
		api.POST("/config/import", auth.RequirePermission(auth.PermConfigManage), sysController.Import)
	}

	if cfg.TaskClient != nil {
		tasksController := NewTasksController(cfg.TaskClient, logger)
		tasksGroup := api.Group("/tasks", auth.RequirePermission(auth.PermMaintenanceRun))
		tasksGroup.GET("/types", tasksController.ListTaskTypes)
		tasksGroup.GET("/:id", tasksController.GetTaskStatus)
		tasksGroup.POST("/:type/run", tasksController.RunTask)
	}

	if cfg.Audit != nil {
		auditController := NewAuditController(cfg.Audit, logger)
		api.GET("/audit", auth.RequirePermission(auth.PermUsersManage), auditController.List)
	}

	return router
}
