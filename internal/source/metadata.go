package source

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"snapsync/internal/backup"
)

const (
	archiveExt  = ".tar"
	metadataExt = ".toml"
)

// metadata is the sidecar document stored next to every archive.
type metadata struct {
	Name       string         `toml:"name"`
	Slug       string         `toml:"slug"`
	Date       time.Time      `toml:"date"`
	Size       int64          `toml:"size"`
	SizeText   string         `toml:"size_text,omitempty"`
	Version    string         `toml:"version,omitempty"`
	Type       string         `toml:"type"`
	Protected  bool           `toml:"protected"`
	Retained   bool           `toml:"retained"`
	Uploadable bool           `toml:"uploadable"`
	Details    map[string]any `toml:"details,omitempty"`
}

func metadataFromInfo(info backup.RecordInfo) metadata {
	m := metadata{
		Name:       info.Name,
		Slug:       info.Slug,
		Date:       info.Date.UTC(),
		Version:    info.Version,
		Type:       info.SnapshotType,
		Protected:  info.Protected,
		Retained:   info.Retained,
		Uploadable: info.Uploadable,
		Details:    info.Details,
	}
	if info.Size.IsText() {
		m.SizeText = info.Size.Text()
	} else {
		m.Size = info.Size.Int()
	}
	return m
}

func (m metadata) record(sourceID string) *backup.Record {
	size := backup.Bytes(m.Size)
	if m.SizeText != "" {
		size = backup.SizeText(m.SizeText)
	}
	return backup.NewRecord(backup.RecordInfo{
		Name:         m.Name,
		Slug:         m.Slug,
		SourceID:     sourceID,
		Date:         m.Date,
		Size:         size,
		Version:      m.Version,
		SnapshotType: m.Type,
		Protected:    m.Protected,
		Retained:     m.Retained,
		Uploadable:   m.Uploadable,
		Details:      m.Details,
	})
}

func encodeMetadata(info backup.RecordInfo) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(metadataFromInfo(info)); err != nil {
		return nil, fmt.Errorf("encoding metadata for %s: %w", info.Slug, err)
	}
	return buf.Bytes(), nil
}

func decodeMetadata(r io.Reader, sourceID string) (*backup.Record, error) {
	var m metadata
	if _, err := toml.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	if m.Slug == "" {
		return nil, fmt.Errorf("decoding metadata: missing slug")
	}
	return m.record(sourceID), nil
}

// validSlug reports whether slug can be used as an object or file name.
func validSlug(slug string) bool {
	return slug != "" && slug != "." && slug != ".." && !strings.ContainsAny(slug, `/\`)
}

// withSize returns info with a byte size of n, keeping provider-native text
// sizes as they are.
func withSize(info backup.RecordInfo, n int64) backup.RecordInfo {
	if !info.Size.IsText() {
		info.Size = backup.Bytes(n)
	}
	return info
}

// countingReader counts the bytes read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
