package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mireska/ashfall/server/cache"
	"github.com/mireska/ashfall/server/config"
	dbadapter "github.com/mireska/ashfall/server/db"
	"github.com/mireska/ashfall/server/model"
)

// SetupTestDB creates an in-memory DB and runs AutoMigrate. It requires no
// external services.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := dbadapter.Open(config.DatabaseConfig{
		Mode: dbadapter.ModeMemory,
	})
	require.NoError(t, err, "SetupTestDB: Open")
	require.NoError(t, model.AutoMigrate(db), "SetupTestDB: AutoMigrate")
	return db
}

// SetupTestCache creates a LocalCache (no Redis required).
func SetupTestCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.NewCache(cache.CacheConfig{})
	require.NoError(t, err, "SetupTestCache: NewCache")
	return c
}
