package testutil

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/absento/core"
	"github.com/trezcool/absento/storage/database"
)

// OpenDB connects to the migrated test database, closing it when the test ends.
// Tests calling it are skipped unless ENV=TEST. Connection settings are read like the app does (TEST_DBHOST...).
func OpenDB(t *testing.T) *sqlx.DB {
	t.Helper()
	if !strings.EqualFold(os.Getenv("ENV"), "TEST") {
		t.Skip("database tests run with ENV=TEST")
	}

	conf := core.NewConfig()
	if err := database.CreateIfNotExist(conf); err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	// test binaries of several packages migrate the same database
	ctx := context.Background()
	conn, err := db.Connx(ctx)
	if err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	defer func() { _ = conn.Close() }()
	if _, err = conn.ExecContext(ctx, "SELECT pg_advisory_lock(hashtext('absento_test_migrations'))"); err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	defer func() { _, _ = conn.ExecContext(ctx, "SELECT pg_advisory_unlock(hashtext('absento_test_migrations'))") }()

	if err = database.Migrate(ctx, db.DB, "up"); err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	return db
}

// UniqueID returns prefix followed by a random suffix, keeping rows of concurrent test runs apart.
func UniqueID(prefix string) string {
	return prefix + "-" + uuid.New().String()[:8]
}
