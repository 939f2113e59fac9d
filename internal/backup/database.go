package backup

import "time"

// Transfer directions.
const (
	DirectionUpload  = "upload"
	DirectionRestore = "restore"
)

// Transfer statuses.
const (
	TransferRunning = "running"
	TransferSuccess = "success"
	TransferFailed  = "failed"
)

// Transfer is one recorded archive copy between sources.
type Transfer struct {
	ID         int64
	Slug       string
	SourceID   string // the source written to
	Direction  string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Bytes      int64
	Status     string
	Error      string
}

// Database stores the transfer history.
type Database interface {
	// CreateTransfer records a transfer that has just started.
	CreateTransfer(slug, sourceID, direction string, startedAt time.Time) (*Transfer, error)

	// FinishTransfer records the outcome of a transfer.
	FinishTransfer(id int64, status string, bytes int64, errMsg string, finishedAt time.Time) error

	// ListTransfers returns the most recent transfers, newest first.
	ListTransfers(limit int) ([]*Transfer, error)

	// Close closes the database connection.
	Close() error
}
