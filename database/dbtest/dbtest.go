// Package dbtest opens migrated databases for tests.
//
// New is sqlite with one pooled connection, so transactions never overlap
// and it cannot catch a read-then-write race. Concurrency tests also run
// through Each, which adds a Postgres backend when TEST_POSTGRES_URL is set;
// that is where row locks and conditional updates actually contend.
package dbtest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"travel-marketplace/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PostgresEnv names a postgres:// URL used by Postgres.
const PostgresEnv = "TEST_POSTGRES_URL"

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}
}

// New returns a fresh, migrated database in t's temp dir. A single pooled
// connection serialises writers, which is what sqlite needs under the
// concurrent tests.
func New(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), gormConfig())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// Postgres returns a migrated database in a throwaway schema on the server
// named by TEST_POSTGRES_URL, and skips the test when it is unset. The pool
// is left unbounded.
func Postgres(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv(PostgresEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresEnv)
	}
	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	admin, err := gorm.Open(postgres.Open(dsn), gormConfig())
	require.NoError(t, err)
	require.NoError(t, admin.Exec("CREATE SCHEMA "+schema).Error)

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := gorm.Open(postgres.Open(dsn+sep+"search_path="+schema), gormConfig())
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		_ = admin.Exec("DROP SCHEMA " + schema + " CASCADE").Error
		if sqlDB, err := admin.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	require.NoError(t, database.Migrate(db))
	return db
}

// Each runs fn as a subtest against sqlite and, when configured, Postgres.
func Each(t *testing.T, fn func(t *testing.T, db *gorm.DB)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) { fn(t, New(t)) })
	t.Run("postgres", func(t *testing.T) { fn(t, Postgres(t)) })
}
