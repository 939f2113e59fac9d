package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	"snapsync/internal/backup"
	"snapsync/internal/source"
)

// NewTestSource creates an empty in-memory source with the given id.
func NewTestSource(id string) *source.MemorySource {
	return source.NewMemorySource(id)
}

// SeedArchive stores an archive with the given slug, date and content in src
// and returns the record the source reports for it.
func SeedArchive(t *testing.T, src backup.Source, slug string, date time.Time, content string) *backup.Record {
	t.Helper()

	rec, err := src.Put(context.Background(), backup.RecordInfo{
		Name:         "Backup " + slug,
		Slug:         slug,
		Date:         date,
		Size:         backup.Bytes(int64(len(content))),
		SnapshotType: "Full",
		Uploadable:   true,
	}, strings.NewReader(content))
	if err != nil {
		t.Fatalf("seeding %s into %s: %v", slug, src.ID(), err)
	}
	return rec
}

// NewRecord builds a record for sourceID dated date with a byte size.
func NewRecord(sourceID, slug string, date time.Time, size int64) *backup.Record {
	return backup.NewRecord(backup.RecordInfo{
		Name:         "Backup " + slug,
		Slug:         slug,
		SourceID:     sourceID,
		Date:         date,
		Size:         backup.Bytes(size),
		SnapshotType: "Full",
	})
}
