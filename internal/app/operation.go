package app

import "time"

// Operation statuses.
const (
	OperationSuccess = "success"
	OperationError   = "error"
)

// Operation tracks one CLI invocation. Its ID tags every log line the
// invocation writes, so a run can be followed through snapsync.log.
type Operation struct {
	ID        string
	Name      string
	StartedAt time.Time
	Status    string // "success" or "error"
}

// NewOperation creates an operation started at now. The ID is the start time
// in compact UTC form.
func NewOperation(name string, now time.Time) *Operation {
	return &Operation{
		ID:        now.UTC().Format("20060102T150405Z"),
		Name:      name,
		StartedAt: now,
		Status:    OperationSuccess,
	}
}

// Fail marks the operation as failed.
func (op *Operation) Fail() {
	op.Status = OperationError
}

// Failed reports whether any step of the operation failed.
func (op *Operation) Failed() bool {
	return op.Status == OperationError
}
