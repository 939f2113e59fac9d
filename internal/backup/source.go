package backup

import (
	"context"
	"errors"
	"io"
)

// ErrRecordNotFound is returned by a Source asked about a slug it does not hold.
var ErrRecordNotFound = errors.New("record not found")

// Source is one place snapshot archives live, such as a local directory or a
// bucket. Each configured Source has a stable ID that tags the records it
// returns.
type Source interface {
	// ID returns the source identifier, SourceLocal or SourceRemote.
	ID() string

	// List returns a record for every archive the source holds.
	List(ctx context.Context) ([]*Record, error)

	// Open returns a reader over the archive for rec.
	Open(ctx context.Context, rec *Record) (io.ReadCloser, error)

	// Put stores an archive read from r along with its metadata and returns
	// the record as the source now sees it. info.SourceID is ignored.
	Put(ctx context.Context, info RecordInfo, r io.Reader) (*Record, error)

	// Update rewrites the stored metadata for rec (retained, uploadable).
	Update(ctx context.Context, rec *Record) error

	// Delete removes the archive and metadata for rec.
	Delete(ctx context.Context, rec *Record) error

	// ValidateSetup verifies the source is reachable and usable.
	ValidateSetup(ctx context.Context) error
}
