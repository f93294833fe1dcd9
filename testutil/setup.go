package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/bumpspot/server/cache"
	"github.com/bumpspot/server/config"
	dbadapter "github.com/bumpspot/server/db"
	"github.com/bumpspot/server/model"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var dbSeq int64

// SetupTestDB creates an isolated in-memory SQLite DB and runs
// AutoMigrate. It requires no external services and is safe to use in
// parallel tests.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	n := atomic.AddInt64(&dbSeq, 1)
	db, err := dbadapter.Open(config.DatabaseConfig{
		Mode:       dbadapter.ModeMemory,
		SQLitePath: fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n),
	})
	require.NoError(t, err, "SetupTestDB: Open")
	require.NoError(t, model.AutoMigrate(db), "SetupTestDB: AutoMigrate")
	return db
}

// SetupTestCache creates a LocalCache and LocalPubSub (no Redis required).
func SetupTestCache(t *testing.T) (cache.Cache, cache.PubSub) {
	t.Helper()
	cfg := config.CacheConfig{} // empty RedisAddr → LocalCache
	c, err := cache.NewCache(cfg)
	require.NoError(t, err, "SetupTestCache: NewCache")
	ps, err := cache.NewPubSub(cfg)
	require.NoError(t, err, "SetupTestCache: NewPubSub")
	return c, ps
}
