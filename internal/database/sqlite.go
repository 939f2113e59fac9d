package database

import (
	"database/sql"
	"fmt"
	"time"

	"snapsync/internal/backup"
	"snapsync/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements backup.Database using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase opens the database at path, or an in-memory database
// for ":memory:", and brings its schema up to date.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	return &SQLiteDatabase{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection without touching
// the schema. An in-memory database is limited to one connection, since each
// connection would otherwise see its own empty database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

func (s *SQLiteDatabase) CreateTransfer(slug, sourceID, direction string, startedAt time.Time) (*backup.Transfer, error) {
	res, err := s.db.Exec(
		`INSERT INTO transfers (slug, source_id, direction, started_at, status) VALUES (?, ?, ?, ?, ?)`,
		slug, sourceID, direction, startedAt.UTC(), backup.TransferRunning)
	if err != nil {
		return nil, fmt.Errorf("creating transfer: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("creating transfer: %w", err)
	}
	return &backup.Transfer{
		ID:        id,
		Slug:      slug,
		SourceID:  sourceID,
		Direction: direction,
		StartedAt: startedAt.UTC(),
		Status:    backup.TransferRunning,
	}, nil
}

func (s *SQLiteDatabase) FinishTransfer(id int64, status string, bytes int64, errMsg string, finishedAt time.Time) error {
	res, err := s.db.Exec(
		`UPDATE transfers SET status = ?, bytes = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, bytes, errMsg, finishedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("finishing transfer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing transfer: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finishing transfer: no transfer with id %d", id)
	}
	return nil
}

func (s *SQLiteDatabase) ListTransfers(limit int) ([]*backup.Transfer, error) {
	rows, err := s.db.Query(
		`SELECT id, slug, source_id, direction, started_at, finished_at, bytes, status, error
		 FROM transfers ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing transfers: %w", err)
	}
	defer rows.Close()

	var transfers []*backup.Transfer
	for rows.Next() {
		var t backup.Transfer
		var finished sql.NullTime
		if err := rows.Scan(&t.ID, &t.Slug, &t.SourceID, &t.Direction, &t.StartedAt,
			&finished, &t.Bytes, &t.Status, &t.Error); err != nil {
			return nil, fmt.Errorf("scanning transfer: %w", err)
		}
		if finished.Valid {
			t.FinishedAt = finished.Time
		}
		transfers = append(transfers, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing transfers: %w", err)
	}
	return transfers, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ backup.Database = (*SQLiteDatabase)(nil)
