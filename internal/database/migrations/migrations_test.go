package migrations

import (
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestLatestVersion(t *testing.T) {
	got, err := LatestVersion()
	if err != nil {
		t.Fatalf("LatestVersion() error = %v", err)
	}
	if got != 2 {
		t.Errorf("LatestVersion() = %d, want 2", got)
	}
}

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	for _, table := range []string{"transfers", "schema_migrations"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s was not created: %v", table, err)
		}
	}

	var index string
	if err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name='idx_transfers_slug'").Scan(&index); err != nil {
		t.Errorf("index idx_transfers_slug was not created: %v", err)
	}
}

func TestCheckStatus(t *testing.T) {
	t.Run("fresh database needs migration", func(t *testing.T) {
		db := openTestDB(t)
		if err := CheckStatus(db); !errors.Is(err, ErrNoSchema) {
			t.Errorf("CheckStatus() error = %v, want ErrNoSchema", err)
		}
	})

	t.Run("migrated database is current", func(t *testing.T) {
		db := openTestDB(t)
		if err := MigrateUp(db); err != nil {
			t.Fatalf("MigrateUp() failed: %v", err)
		}
		if err := CheckStatus(db); err != nil {
			t.Errorf("CheckStatus() after migration returned error: %v", err)
		}
	})

	t.Run("database ahead of binary", func(t *testing.T) {
		db := openTestDB(t)
		if err := MigrateUp(db); err != nil {
			t.Fatalf("MigrateUp() failed: %v", err)
		}
		if _, err := db.Exec("UPDATE schema_migrations SET version = 99"); err != nil {
			t.Fatal(err)
		}
		if err := CheckStatus(db); err == nil {
			t.Error("CheckStatus() expected error for database ahead of binary")
		}
	})
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("first MigrateUp() failed: %v", err)
	}
	if err := MigrateUp(db); err != nil {
		t.Errorf("second MigrateUp() failed: %v", err)
	}
}

func TestSchema_DirectionConstraint(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	_, err := db.Exec(`INSERT INTO transfers (slug, source_id, direction, started_at)
		VALUES ('abc', 'remote', 'sideways', datetime('now'))`)
	if err == nil {
		t.Error("expected CHECK constraint violation for unknown direction")
	}
}

// openTestDB opens an in-memory SQLite database on a single connection so
// every query sees the same database.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}
