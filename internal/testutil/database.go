package testutil

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"orderbot/internal/infrastructure/sqlite"
)

// SetupTestDB opens an in-memory SQLite database with the full schema
// applied. The single-connection limit keeps every query on the same
// in-memory database.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	if err := sqlite.InitSchema(db); err != nil {
		t.Fatalf("failed to init test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}
