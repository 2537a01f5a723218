package database

import (
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// Options tunes the connection pool and query logging.
type Options struct {
	MaxIdleConns int
	MaxOpenConns int
	// Debug turns on gorm SQL logging.
	Debug  bool
	Logger *zap.Logger
}

type Database struct {
	DB     *gorm.DB
	path   string
	logger *zap.Logger
}

// NewDatabase opens the sqlite file at dbPath with foreign keys enforced and
// applies the embedded goose migrations.
func NewDatabase(dbPath string, opts Options) (*Database, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	logMode := logger.Silent
	if opts.Debug {
		logMode = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(dsn(dbPath)), &gorm.Config{
		Logger:  logger.Default.LogMode(logMode),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.Up(sqlDB, migrationsDir); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	version, err := goose.GetDBVersion(sqlDB)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to read schema version: %w", err)
	}

	log.Info("database initialized",
		zap.String("path", dbPath),
		zap.Int64("schema_version", version),
	)

	return &Database{DB: db, path: dbPath, logger: log}, nil
}

// dsn appends the connection parameters every connection in the pool needs.
// Foreign keys are a per-connection pragma in sqlite.
func dsn(dbPath string) string {
	params := "_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
	if strings.Contains(dbPath, "?") {
		return dbPath + "&" + params
	}
	return dbPath + "?" + params
}

func (d *Database) Path() string {
	return d.path
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Backup writes a consistent snapshot of the database to destPath.
func (d *Database) Backup(destPath string) error {
	if err := d.DB.Exec("VACUUM INTO ?", destPath).Error; err != nil {
		return fmt.Errorf("failed to back up database: %w", err)
	}
	return nil
}
