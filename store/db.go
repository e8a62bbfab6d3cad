package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultDSN is the SQLite file used when DATABASE_DSN is unset.
const DefaultDSN = "data/templates.db"

// OpenDatabaseFromEnv opens the database named by DATABASE_DRIVER and
// DATABASE_DSN. Without a DSN it falls back to a local SQLite file; without
// a driver it is inferred from the DSN.
func OpenDatabaseFromEnv() (*gorm.DB, error) {
	dsn := strings.TrimSpace(os.Getenv("DATABASE_DSN"))
	driver := strings.TrimSpace(os.Getenv("DATABASE_DRIVER"))
	if dsn == "" {
		dsn = DefaultDSN
		if driver == "" {
			driver = "sqlite"
		}
	}
	if driver == "" {
		driver = inferDriverFromDSN(dsn)
		if driver == "" {
			return nil, errors.New("store: DATABASE_DRIVER environment variable is required when DSN does not contain a scheme")
		}
	}
	return OpenDatabase(driver, dsn)
}

// OpenDatabase opens dsn with the named driver: sqlite, mysql or postgres.
// SQLite parent directories are created on demand.
func OpenDatabase(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
		Logger:  logger.Default.LogMode(logger.Warn),
	}
	switch strings.ToLower(driver) {
	case "postgres", "postgresql", "pg":
		return gorm.Open(postgres.Open(dsn), cfg)
	case "mysql":
		return gorm.Open(mysql.Open(dsn), cfg)
	case "sqlite", "sqlite3":
		path := strings.TrimPrefix(dsn, "sqlite://")
		if file, _, _ := strings.Cut(path, "?"); file != ":memory:" && !strings.HasPrefix(file, "file:") {
			if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
				return nil, fmt.Errorf("store: ensure database dir: %w", err)
			}
		}
		db, err := gorm.Open(sqlite.Open(path), cfg)
		if err != nil {
			return nil, err
		}
		if err := db.Exec("PRAGMA journal_mode = WAL").Error; err != nil {
			return nil, fmt.Errorf("store: enable wal: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("store: unsupported database driver %q", driver)
	}
}

func inferDriverFromDSN(dsn string) string {
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(lower, "mysql://"), strings.Contains(lower, "@tcp("):
		return "mysql"
	case strings.HasPrefix(lower, "sqlite://"), strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"):
		return "sqlite"
	default:
		return ""
	}
}
