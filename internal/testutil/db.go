// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"context"
	"database/sql"
	"testing"

	"github.com/fkhayef/teamtasks/internal/database"
)

// OpenDB returns a migrated in-memory sqlite database closed at test cleanup.
func OpenDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.NewConnection(database.DriverSQLite, ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}
