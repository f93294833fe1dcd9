package db

import (
	"fmt"

	"github.com/bumpspot/server/config"
	"gorm.io/gorm"
)

const (
	ModeSQLite = "sqlite"
	ModeMySQL  = "mysql"
	// ModeMemory opens a shared in-memory SQLite database; used by tests
	// and local scratch runs.
	ModeMemory = "memory"
)

// Open returns a *gorm.DB for the configured database mode.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Mode {
	case ModeSQLite:
		return openSQLite(cfg.SQLitePath)
	case ModeMemory:
		// SQLitePath may carry a named in-memory DSN so callers (tests)
		// can isolate databases from each other.
		dsn := cfg.SQLitePath
		if dsn == "" {
			dsn = "file::memory:?cache=shared"
		}
		return openSQLite(dsn)
	case ModeMySQL:
		return openMySQL(cfg.MySQLDSN, cfg.MySQLMaxOpen, cfg.MySQLMaxIdle, cfg.MySQLMaxLife)
	default:
		return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
	}
}
