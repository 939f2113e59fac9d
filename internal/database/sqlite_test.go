package database

import (
	"path/filepath"
	"testing"
	"time"

	"snapsync/internal/backup"
)

// newTestDB creates a new in-memory database with migrations applied.
func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()

	db, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestSQLiteDatabase_Transfers(t *testing.T) {
	started := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	t.Run("create and list transfers", func(t *testing.T) {
		db := newTestDB(t)

		first, err := db.CreateTransfer("aaa", backup.SourceRemote, backup.DirectionUpload, started)
		if err != nil {
			t.Fatalf("CreateTransfer() error = %v", err)
		}
		if first.ID == 0 {
			t.Error("transfer ID should be non-zero")
		}
		if first.Status != backup.TransferRunning {
			t.Errorf("Status = %q, want %q", first.Status, backup.TransferRunning)
		}

		second, err := db.CreateTransfer("bbb", backup.SourceLocal, backup.DirectionRestore, started.Add(time.Minute))
		if err != nil {
			t.Fatalf("CreateTransfer() error = %v", err)
		}

		transfers, err := db.ListTransfers(10)
		if err != nil {
			t.Fatalf("ListTransfers() error = %v", err)
		}
		if len(transfers) != 2 {
			t.Fatalf("got %d transfers, want 2", len(transfers))
		}
		if transfers[0].ID != second.ID {
			t.Errorf("expected newest first: got ID %d, want %d", transfers[0].ID, second.ID)
		}

		got := transfers[1]
		if got.Slug != "aaa" || got.SourceID != backup.SourceRemote || got.Direction != backup.DirectionUpload {
			t.Errorf("transfer = %+v", got)
		}
		if !got.StartedAt.Equal(started) {
			t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
		}
		if !got.FinishedAt.IsZero() {
			t.Errorf("FinishedAt = %v, want zero while running", got.FinishedAt)
		}
	})

	t.Run("finish transfer records outcome", func(t *testing.T) {
		db := newTestDB(t)

		tr, _ := db.CreateTransfer("aaa", backup.SourceRemote, backup.DirectionUpload, started)
		finished := started.Add(90 * time.Second)
		if err := db.FinishTransfer(tr.ID, backup.TransferFailed, 4096, "connection reset", finished); err != nil {
			t.Fatalf("FinishTransfer() error = %v", err)
		}

		transfers, _ := db.ListTransfers(1)
		got := transfers[0]
		if got.Status != backup.TransferFailed {
			t.Errorf("Status = %q, want %q", got.Status, backup.TransferFailed)
		}
		if got.Bytes != 4096 {
			t.Errorf("Bytes = %d, want 4096", got.Bytes)
		}
		if got.Error != "connection reset" {
			t.Errorf("Error = %q, want %q", got.Error, "connection reset")
		}
		if !got.FinishedAt.Equal(finished) {
			t.Errorf("FinishedAt = %v, want %v", got.FinishedAt, finished)
		}
	})

	t.Run("finish unknown transfer", func(t *testing.T) {
		db := newTestDB(t)
		if err := db.FinishTransfer(42, backup.TransferSuccess, 0, "", started); err == nil {
			t.Error("FinishTransfer() expected error for unknown id")
		}
	})

	t.Run("limit", func(t *testing.T) {
		db := newTestDB(t)
		for i := 0; i < 5; i++ {
			db.CreateTransfer("s", backup.SourceRemote, backup.DirectionUpload, started)
		}
		transfers, err := db.ListTransfers(3)
		if err != nil {
			t.Fatalf("ListTransfers() error = %v", err)
		}
		if len(transfers) != 3 {
			t.Errorf("got %d transfers, want 3", len(transfers))
		}
	})
}

func TestSQLiteDatabase_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	db, err := NewSQLiteDatabase(path)
	if err != nil {
		t.Fatalf("NewSQLiteDatabase() error = %v", err)
	}
	if _, err := db.CreateTransfer("aaa", backup.SourceRemote, backup.DirectionUpload, time.Now()); err != nil {
		t.Fatalf("CreateTransfer() error = %v", err)
	}
	db.Close()

	reopened, err := NewSQLiteDatabase(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer reopened.Close()

	transfers, err := reopened.ListTransfers(10)
	if err != nil {
		t.Fatalf("ListTransfers() error = %v", err)
	}
	if len(transfers) != 1 {
		t.Errorf("got %d transfers after reopen, want 1", len(transfers))
	}
}

func TestSQLiteDatabase_CheckMigrations(t *testing.T) {
	db := newTestDB(t)
	if err := db.CheckMigrations(); err != nil {
		t.Errorf("CheckMigrations() error = %v", err)
	}
}
