package backup

import (
	"strconv"
	"strings"
	"time"
)

// Size is a snapshot size as reported by a source: either a byte count or a
// provider-native string that may or may not parse as one.
type Size struct {
	bytes int64
	text  string
	isStr bool
}

// Bytes returns a numeric Size.
func Bytes(n int64) Size {
	return Size{bytes: n}
}

// SizeText returns a Size holding a provider-native string.
func SizeText(s string) Size {
	return Size{text: s, isStr: true}
}

// IsText reports whether the size came from the source as a string.
func (s Size) IsText() bool {
	return s.isStr
}

// Text returns the raw string form; empty for numeric sizes.
func (s Size) Text() string {
	return s.text
}

// Int coerces the size to a byte count. Strings that do not parse as an
// integer yield 0, which callers should read as "unknown".
func (s Size) Int() int64 {
	if !s.isStr {
		return s.bytes
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s.text), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// RecordInfo carries the metadata a source knows about one snapshot.
// It is the input to NewRecord.
type RecordInfo struct {
	Name         string
	Slug         string
	SourceID     string
	Date         time.Time
	Size         Size
	Version      string // empty when the source does not know it
	SnapshotType string // "Full" or "Partial"
	Protected    bool
	Retained     bool
	Uploadable   bool
	Details      map[string]any
}

// Record is one source's view of a snapshot's metadata.
// The slug never changes after construction.
type Record struct {
	name         string
	slug         string
	sourceID     string
	date         time.Time
	size         Size
	version      string
	snapshotType string
	protected    bool
	retained     bool
	uploadable   bool
	details      map[string]any
	status       string
	options      *Options
}

// NewRecord creates a Record from the given metadata.
func NewRecord(info RecordInfo) *Record {
	details := info.Details
	if details == nil {
		details = map[string]any{}
	}
	return &Record{
		name:         info.Name,
		slug:         info.Slug,
		sourceID:     info.SourceID,
		date:         info.Date,
		size:         info.Size,
		version:      info.Version,
		snapshotType: info.SnapshotType,
		protected:    info.Protected,
		retained:     info.Retained,
		uploadable:   info.Uploadable,
		details:      details,
	}
}

func (r *Record) Name() string            { return r.name }
func (r *Record) Slug() string            { return r.slug }
func (r *Record) SourceID() string        { return r.sourceID }
func (r *Record) Date() time.Time         { return r.date }
func (r *Record) Size() Size              { return r.size }
func (r *Record) Version() string         { return r.version }
func (r *Record) SnapshotType() string    { return r.snapshotType }
func (r *Record) Protected() bool         { return r.protected }
func (r *Record) Retained() bool          { return r.retained }
func (r *Record) Uploadable() bool        { return r.uploadable }
func (r *Record) Details() map[string]any { return r.details }

// SizeInt returns the size as a byte count, or 0 when it cannot be parsed.
func (r *Record) SizeInt() int64 {
	return r.size.Int()
}

// SetRetained marks the record as exempt (or not) from automatic purges.
func (r *Record) SetRetained(retained bool) {
	r.retained = retained
}

// SetUploadable marks whether the record may be copied to another source.
func (r *Record) SetUploadable(uploadable bool) {
	r.uploadable = uploadable
}

// ConsiderForPurge reports whether retention may delete this copy.
func (r *Record) ConsiderForPurge() bool {
	return !r.retained
}

// Status returns the per-source status, or "" when the source has nothing to
// add and the logical snapshot should compute its own.
func (r *Record) Status() string {
	return r.status
}

// SetStatus sets an ephemeral per-source status such as "Deleting".
// Pass "" to clear it.
func (r *Record) SetStatus(status string) {
	r.status = status
}

// Options returns the shared options attached to this record, if any.
func (r *Record) Options() *Options {
	return r.options
}

// SetOptions attaches the shared options. The record does not own them.
func (r *Record) SetOptions(opts *Options) {
	r.options = opts
}

// Info returns a copy of the record's metadata, suitable for building a
// record for another source.
func (r *Record) Info() RecordInfo {
	details := make(map[string]any, len(r.details))
	for k, v := range r.details {
		details[k] = v
	}
	return RecordInfo{
		Name:         r.name,
		Slug:         r.slug,
		SourceID:     r.sourceID,
		Date:         r.date,
		Size:         r.size,
		Version:      r.version,
		SnapshotType: r.snapshotType,
		Protected:    r.protected,
		Retained:     r.retained,
		Uploadable:   r.uploadable,
		Details:      details,
	}
}
