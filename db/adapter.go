package db

import (
	"fmt"
	"sync/atomic"

	"gorm.io/gorm"

	"github.com/mireska/ashfall/server/config"
	dbmysql "github.com/mireska/ashfall/server/db/mysql"
	dbsqlite "github.com/mireska/ashfall/server/db/sqlite"
)

const (
	ModeMemory = "memory"
	ModeSQLite = "sqlite"
	ModeMySQL  = "mysql"
)

// memSeq gives every memory-mode open its own database, so parallel tests
// do not see each other's tables.
var memSeq atomic.Int64

// Open returns a *gorm.DB for the configured database mode. Memory mode is
// an in-process SQLite database, used by tests and throwaway servers.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Mode {
	case ModeMemory:
		dsn := fmt.Sprintf("file:mem%d?mode=memory&cache=shared", memSeq.Add(1))
		return dbsqlite.Open(dsn)
	case ModeSQLite:
		return dbsqlite.Open(cfg.SQLitePath)
	case ModeMySQL:
		return dbmysql.Open(cfg.MySQLDSN, cfg.MySQLMaxOpen, cfg.MySQLMaxIdle, cfg.MySQLMaxLife)
	default:
		return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
	}
}
