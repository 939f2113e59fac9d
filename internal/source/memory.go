package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"snapsync/internal/backup"
)

// Operations a MemorySource can be told to fail.
const (
	OpList   = "list"
	OpOpen   = "open"
	OpPut    = "put"
	OpUpdate = "update"
	OpDelete = "delete"
)

type memoryEntry struct {
	info backup.RecordInfo
	data []byte
}

// MemorySource is an in-memory implementation of the backup.Source interface,
// useful for testing. It is safe for concurrent use.
type MemorySource struct {
	id      string
	entries map[string]*memoryEntry // slug -> archive
	failOn  map[string]error
	mu      sync.RWMutex
}

// NewMemorySource creates an empty in-memory source with the given id.
func NewMemorySource(id string) *MemorySource {
	return &MemorySource{
		id:      id,
		entries: make(map[string]*memoryEntry),
		failOn:  make(map[string]error),
	}
}

// FailOn makes every later call of op return err. A nil err clears it.
func (m *MemorySource) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failOn, op)
		return
	}
	m.failOn[op] = err
}

func (m *MemorySource) ID() string { return m.id }

// List returns the held records ordered by slug.
func (m *MemorySource) List(ctx context.Context) ([]*backup.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.failOn[OpList]; err != nil {
		return nil, err
	}

	records := make([]*backup.Record, 0, len(m.entries))
	for _, e := range m.entries {
		records = append(records, m.recordLocked(e))
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Slug() < records[j].Slug() })
	return records, nil
}

func (m *MemorySource) Open(ctx context.Context, rec *backup.Record) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.failOn[OpOpen]; err != nil {
		return nil, err
	}
	e, ok := m.entries[rec.Slug()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", backup.ErrRecordNotFound, rec.Slug())
	}
	return io.NopCloser(bytes.NewReader(e.data)), nil
}

// Put reads the archive fully, then stores it. A failed read stores nothing.
func (m *MemorySource) Put(ctx context.Context, info backup.RecordInfo, r io.Reader) (*backup.Record, error) {
	if !validSlug(info.Slug) {
		return nil, fmt.Errorf("invalid slug %q", info.Slug)
	}

	m.mu.RLock()
	err := m.failOn[OpPut]
	m.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	info.SourceID = m.id
	e := &memoryEntry{info: withSize(info, int64(len(data))), data: data}
	m.entries[info.Slug] = e
	return m.recordLocked(e), nil
}

func (m *MemorySource) Update(ctx context.Context, rec *backup.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failOn[OpUpdate]; err != nil {
		return err
	}
	e, ok := m.entries[rec.Slug()]
	if !ok {
		return fmt.Errorf("%w: %s", backup.ErrRecordNotFound, rec.Slug())
	}
	e.info.Retained = rec.Retained()
	e.info.Uploadable = rec.Uploadable()
	return nil
}

func (m *MemorySource) Delete(ctx context.Context, rec *backup.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failOn[OpDelete]; err != nil {
		return err
	}
	if _, ok := m.entries[rec.Slug()]; !ok {
		return fmt.Errorf("%w: %s", backup.ErrRecordNotFound, rec.Slug())
	}
	delete(m.entries, rec.Slug())
	return nil
}

// ValidateSetup always succeeds for an in-memory source.
func (m *MemorySource) ValidateSetup(ctx context.Context) error {
	return nil
}

// Content returns a copy of the stored archive for slug.
func (m *MemorySource) Content(slug string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[slug]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), e.data...), true
}

// recordLocked builds a fresh record so callers never share state with the
// stored entry. Must be called with m.mu held.
func (m *MemorySource) recordLocked(e *memoryEntry) *backup.Record {
	info := e.info
	details := make(map[string]any, len(info.Details))
	for k, v := range info.Details {
		details[k] = v
	}
	info.Details = details
	return backup.NewRecord(info)
}

var _ backup.Source = (*MemorySource)(nil)
