package entrypoint

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/biblioteca/internal/audit"
	"github.com/mrlokans/biblioteca/internal/auth"
	"github.com/mrlokans/biblioteca/internal/catalog"
	"github.com/mrlokans/biblioteca/internal/circulation"
	"github.com/mrlokans/biblioteca/internal/config"
	"github.com/mrlokans/biblioteca/internal/database"
	auditrepo "github.com/mrlokans/biblioteca/internal/database/audit"
	"github.com/mrlokans/biblioteca/internal/database/loans"
	"github.com/mrlokans/biblioteca/internal/database/users"
	http_controllers "github.com/mrlokans/biblioteca/internal/http"
	"github.com/mrlokans/biblioteca/internal/logging"
	"github.com/mrlokans/biblioteca/internal/scheduler"
	"github.com/mrlokans/biblioteca/internal/sysconfig"
	"github.com/mrlokans/biblioteca/internal/tasks"
)

// App holds the services shared by the HTTP server and the CLI commands.
type App struct {
	Config      *config.Config
	Logger      *zap.Logger
	Sys         *sysconfig.Manager
	DB          *database.Database
	Audit       *audit.Service
	Archive     *audit.Archive
	Auth        *auth.Service
	Catalog     *catalog.Service
	Circulation *circulation.Service
	Maintenance *circulation.Maintenance
	Backups     *scheduler.BackupScheduler
}

// Open loads the system configuration, opens and migrates the database and
// wires the domain services. The caller owns the returned App and must Close it.
func Open(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	sys, err := sysconfig.Load(cfg.SystemConfig.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load system configuration: %w", err)
	}

	pool := sys.Current().Database
	db, err := database.NewDatabase(cfg.Database.Path, database.Options{
		MaxIdleConns: pool.PoolMin,
		MaxOpenConns: pool.PoolMax,
		Debug:        strings.EqualFold(cfg.Logging.Level, "debug"),
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	auditSvc := audit.NewService(auditrepo.NewRepository(db.DB), logger)
	var archive *audit.Archive
	if cfg.Audit.ArchiveDir != "" {
		archive = audit.NewArchive(cfg.Audit.ArchiveDir)
	}

	catalogSvc := catalog.NewService(db.DB, sys, auditSvc, logger)
	circ := circulation.NewService(db.DB, sys, auditSvc, archive, logger)

	app := &App{
		Config:      cfg,
		Logger:      logger,
		Sys:         sys,
		DB:          db,
		Audit:       auditSvc,
		Archive:     archive,
		Auth:        auth.NewService(users.NewRepository(db.DB), loans.NewRepository(db.DB), cfg.Auth, sys, auditSvc, logger).WithArchive(archive),
		Catalog:     catalogSvc,
		Circulation: circ,
		Maintenance: circulation.NewMaintenance(circ, catalogSvc, logger),
		Backups:     scheduler.NewBackupScheduler(db, sys, auditSvc, logger),
	}
	return app, nil
}

// Close flushes pending audit events and closes the database.
func (a *App) Close() error {
	a.Backups.Stop()
	a.Audit.Wait()
	return a.DB.Close()
}

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs the HTTP server until SIGINT or SIGTERM, then shuts it down
// within the configured timeout.
func Serve(router *gin.Engine, cfg *config.Config, logger *zap.Logger, onShutdown ShutdownFunc) error {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second
	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case sig := <-quit:
		logger.Info("shutting down server", zap.String("signal", sig.String()), zap.Duration("timeout", timeout))
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if onShutdown != nil {
		onShutdown(ctx)
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("server exited")
	return nil
}

// Run starts the full service: HTTP API, task workers and the backup schedule.
func Run(cfg *config.Config, version string) error {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting biblioteca", zap.String("version", version))

	app, err := Open(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("error closing database", zap.Error(err))
		}
	}()

	hasUsers, err := app.Auth.HasUsers(context.Background())
	if err != nil {
		return err
	}
	if !hasUsers {
		logger.Warn("no staff accounts exist; run the create-admin command to bootstrap a superadmin")
	}

	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.ConfigFrom(cfg), logger)
		if err != nil {
			return fmt.Errorf("failed to initialize task queue: %w", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				logger.Warn("error closing task client", zap.Error(err))
			}
		}()
		taskClient.RegisterAll(tasks.Deps{
			Loans:   app.Circulation,
			Readers: app.Catalog,
			Audit:   app.Audit,
			Logger:  logger,
		})

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
	}

	if err := app.Backups.Start(); err != nil {
		return fmt.Errorf("failed to start backup scheduler: %w", err)
	}
	app.Sys.OnChange(func(sysconfig.Configuration) {
		if err := app.Backups.Reschedule(); err != nil {
			logger.Error("failed to reschedule backups", zap.Error(err))
		}
	})

	sqlDB, err := app.DB.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB for sessions: %w", err)
	}
	idle := time.Duration(app.Sys.Current().Session.TimeoutMinutes) * time.Minute
	sessionManager := auth.NewSessionManager(sqlDB, cfg.Auth, idle)

	csrfSecret, err := loadCSRFSecret(cfg.Auth, logger)
	if err != nil {
		return err
	}

	authController := auth.NewAuthController(app.Auth, sessionManager, cfg.Auth, logger)
	defer authController.Stop()

	router := http_controllers.NewRouter(http_controllers.RouterConfig{
		Database:       app.DB,
		Version:        version,
		Logger:         logger,
		Sys:            app.Sys,
		AuthService:    app.Auth,
		SessionManager: sessionManager,
		AuthController: authController,
		AuthConfig:     cfg.Auth,
		CSRFSecret:     csrfSecret,
		SecureCookies:  cfg.Auth.SecureCookies,
		Catalog:        app.Catalog,
		Circulation:    app.Circulation,
		Maintenance:    app.Maintenance,
		Audit:          app.Audit,
		TaskClient:     taskClient,
	})

	onShutdown := func(ctx context.Context) {
		app.Backups.Stop()
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	return Serve(router, cfg, logger, onShutdown)
}

// loadCSRFSecret returns nil when CSRF protection is disabled. Without a
// configured secret a random one is generated, which invalidates tokens on
// every restart.
func loadCSRFSecret(cfg config.Auth, logger *zap.Logger) ([]byte, error) {
	if !cfg.CSRFEnabled {
		logger.Warn("CSRF protection disabled")
		return nil, nil
	}
	if cfg.SessionSecret != "" {
		if secret, err := hex.DecodeString(cfg.SessionSecret); err == nil {
			return secret, nil
		}
		return []byte(cfg.SessionSecret), nil
	}
	generated, err := auth.GenerateSessionSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSRF secret: %w", err)
	}
	secret, err := hex.DecodeString(generated)
	if err != nil {
		return nil, err
	}
	logger.Warn("generated session secret (set AUTH_SESSION_SECRET to persist)")
	return secret, nil
}
