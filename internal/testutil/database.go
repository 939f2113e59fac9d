package testutil

import (
	"testing"

	"snapsync/internal/backup"
	"snapsync/internal/database"
)

// NewTestDatabase creates a new in-memory SQLite database with migrations
// applied. The database is closed when the test completes.
func NewTestDatabase(t *testing.T) backup.Database {
	t.Helper()

	db, err := database.NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}
