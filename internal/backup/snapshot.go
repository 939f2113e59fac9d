package backup

import (
	"fmt"
	"strings"
	"time"
)

// Snapshot is the logical view of one backup across every source holding a
// copy of it. Copies are matched by slug outside this type; a Snapshot only
// aggregates the records it is given.
//
// A Snapshot does no locking. Its owner must serialize access.
type Snapshot struct {
	order   []string // source ids in first-insertion order
	sources map[string]*Record
	purges  map[string]bool
	options *Options

	override     *statusOverride
	statusDetail string

	uploadSourceID string
	uploadReporter ProgressReporter
	uploadFailure  any
}

// NewSnapshot creates a Snapshot seeded with the given records.
func NewSnapshot(records ...*Record) *Snapshot {
	s := &Snapshot{
		sources: make(map[string]*Record),
		purges:  make(map[string]bool),
	}
	for _, r := range records {
		s.AddSource(r)
	}
	return s
}

// AddSource inserts or replaces the record for r.SourceID(). A replaced
// source keeps its original position. The snapshot adopts r's options if it
// has none yet.
func (s *Snapshot) AddSource(r *Record) {
	id := r.SourceID()
	if _, ok := s.sources[id]; !ok {
		s.order = append(s.order, id)
	}
	s.sources[id] = r
	if r.Options() != nil {
		s.AdoptOptions(r.Options())
	}
}

// RemoveSource drops the record and purge flag for sourceID, if present.
func (s *Snapshot) RemoveSource(sourceID string) {
	if _, ok := s.sources[sourceID]; ok {
		delete(s.sources, sourceID)
		for i, id := range s.order {
			if id == sourceID {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	delete(s.purges, sourceID)
}

// Source returns the record for sourceID, or nil.
func (s *Snapshot) Source(sourceID string) *Record {
	return s.sources[sourceID]
}

// Records returns the records in first-insertion order.
func (s *Snapshot) Records() []*Record {
	records := make([]*Record, 0, len(s.order))
	for _, id := range s.order {
		records = append(records, s.sources[id])
	}
	return records
}

// SourceIDs returns the ids of the sources holding a copy, in insertion order.
func (s *Snapshot) SourceIDs() []string {
	return append([]string(nil), s.order...)
}

// IsDeleted reports whether no source holds a copy any more.
func (s *Snapshot) IsDeleted() bool {
	return len(s.sources) == 0
}

// UpdatePurge records whether the copy in sourceID should be deleted on the
// next cleanup pass. The source need not be present yet.
func (s *Snapshot) UpdatePurge(sourceID string, purge bool) {
	s.purges[sourceID] = purge
}

// Purges returns a copy of the purge flags keyed by source id.
func (s *Snapshot) Purges() map[string]bool {
	purges := make(map[string]bool, len(s.purges))
	for id, purge := range s.purges {
		purges[id] = purge
	}
	return purges
}

// Options returns the shared options, or nil.
func (s *Snapshot) Options() *Options {
	return s.options
}

// SetOptions replaces the shared options.
func (s *Snapshot) SetOptions(opts *Options) {
	s.options = opts
}

// AdoptOptions sets the shared options only if none are set yet.
func (s *Snapshot) AdoptOptions(opts *Options) {
	if s.options == nil {
		s.options = opts
	}
}

// first returns the first record in insertion order, or nil.
func (s *Snapshot) first() *Record {
	if len(s.order) == 0 {
		return nil
	}
	return s.sources[s.order[0]]
}

func (s *Snapshot) Name() string {
	if r := s.first(); r != nil {
		return r.Name()
	}
	return "error"
}

func (s *Snapshot) Slug() string {
	if r := s.first(); r != nil {
		return r.Slug()
	}
	return "error"
}

func (s *Snapshot) Size() Size {
	if r := s.first(); r != nil {
		return r.Size()
	}
	return Bytes(0)
}

func (s *Snapshot) SizeInt() int64 {
	if r := s.first(); r != nil {
		return r.SizeInt()
	}
	return 0
}

func (s *Snapshot) SnapshotType() string {
	if r := s.first(); r != nil {
		return r.SnapshotType()
	}
	return "error"
}

func (s *Snapshot) Protected() bool {
	if r := s.first(); r != nil {
		return r.Protected()
	}
	return false
}

// Date returns the creation date; the current time when no source is left.
func (s *Snapshot) Date() time.Time {
	if r := s.first(); r != nil {
		return r.Date()
	}
	return time.Now().UTC()
}

// Version returns the first version any source reports, or "".
func (s *Snapshot) Version() string {
	for _, id := range s.order {
		if v := s.sources[id].Version(); v != "" {
			return v
		}
	}
	return ""
}

// Details returns the first non-empty details map any source reports.
func (s *Snapshot) Details() map[string]any {
	for _, id := range s.order {
		if d := s.sources[id].Details(); len(d) > 0 {
			return d
		}
	}
	return map[string]any{}
}

// SizeString renders the size for display. Provider-native strings pass
// through unchanged; byte counts go through format (HumanSize when nil).
func (s *Snapshot) SizeString(format SizeFormatter) string {
	size := s.Size()
	if size.IsText() {
		return size.Text()
	}
	if format == nil {
		format = HumanSize
	}
	return format(size.Int())
}

func (s *Snapshot) String() string {
	return fmt.Sprintf("<Slug: %s %s %s>", s.Slug(), strings.Join(s.order, " "), s.Date().Format(time.RFC3339))
}
