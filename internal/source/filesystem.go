package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"snapsync/internal/backup"
)

// FileSystemSource keeps archives in a single directory:
//
//	<root>/
//	  <stem>.tar     (the archive)
//	  <stem>.toml    (its metadata sidecar)
//
// Archives written by Put use the slug as stem. Archives found without a
// sidecar are adopted: they get a generated slug and a sidecar describing the
// file, and keep their original file name. Archives whose file name matches
// an ignore pattern, from SetIgnore or <root>/.snapsyncignore, are not listed.
type FileSystemSource struct {
	id     string
	root   string
	idgen  backup.IDGenerator
	ignore *IgnoreMatcher

	mu    sync.Mutex
	stems map[string]string // slug -> file stem, filled by List
}

// NewFileSystemSource creates a source rooted at root, creating the directory
// if needed.
func NewFileSystemSource(id, root string, idgen backup.IDGenerator) (*FileSystemSource, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create source directory: %w", err)
	}
	return &FileSystemSource{
		id:    id,
		root:  root,
		idgen: idgen,
		stems: make(map[string]string),
	}, nil
}

func (f *FileSystemSource) ID() string { return f.id }

// SetIgnore sets the configured ignore patterns.
func (f *FileSystemSource) SetIgnore(patterns []string) {
	f.ignore = NewIgnoreMatcher(patterns)
}

// List reads every sidecar in root, adopting archives that have none.
func (f *FileSystemSource) List(ctx context.Context) ([]*backup.Record, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("reading source directory: %w", err)
	}
	extra, err := ParseIgnoreFile(filepath.Join(f.root, IgnoreFile))
	if err != nil {
		return nil, err
	}
	ignore := f.ignore.With(extra)

	f.mu.Lock()
	defer f.mu.Unlock()

	stems := make(map[string]string)
	var records []*backup.Record
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, archiveExt) || ignore.Match(name) {
			continue
		}
		stem := strings.TrimSuffix(name, archiveExt)

		rec, err := f.readMetadata(stem)
		if errors.Is(err, os.ErrNotExist) {
			rec, err = f.adopt(stem, entry)
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		stems[rec.Slug()] = stem
		records = append(records, rec)
	}
	f.stems = stems

	sort.Slice(records, func(i, j int) bool { return records[i].Slug() < records[j].Slug() })
	return records, nil
}

func (f *FileSystemSource) Open(ctx context.Context, rec *backup.Record) (io.ReadCloser, error) {
	file, err := os.Open(f.archivePath(rec.Slug()))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", backup.ErrRecordNotFound, rec.Slug())
		}
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return file, nil
}

// Put writes the archive and then its sidecar, each atomically. The sidecar
// is written last so a half-stored archive is never listed with metadata.
func (f *FileSystemSource) Put(ctx context.Context, info backup.RecordInfo, r io.Reader) (*backup.Record, error) {
	if !validSlug(info.Slug) {
		return nil, fmt.Errorf("invalid slug %q", info.Slug)
	}

	written, err := writeFileAtomic(filepath.Join(f.root, info.Slug+archiveExt), r)
	if err != nil {
		return nil, err
	}

	info.SourceID = f.id
	info = withSize(info, written)
	if err := f.writeMetadata(info.Slug, info); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.stems[info.Slug] = info.Slug
	f.mu.Unlock()

	return backup.NewRecord(info), nil
}

// Update rewrites the sidecar for rec.
func (f *FileSystemSource) Update(ctx context.Context, rec *backup.Record) error {
	stem := f.stem(rec.Slug())
	if _, err := os.Stat(filepath.Join(f.root, stem+archiveExt)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", backup.ErrRecordNotFound, rec.Slug())
		}
		return fmt.Errorf("checking archive: %w", err)
	}
	return f.writeMetadata(stem, rec.Info())
}

// Delete removes the archive, then the sidecar.
func (f *FileSystemSource) Delete(ctx context.Context, rec *backup.Record) error {
	stem := f.stem(rec.Slug())
	if err := os.Remove(filepath.Join(f.root, stem+archiveExt)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", backup.ErrRecordNotFound, rec.Slug())
		}
		return fmt.Errorf("failed to delete archive: %w", err)
	}
	if err := os.Remove(filepath.Join(f.root, stem+metadataExt)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete metadata: %w", err)
	}

	f.mu.Lock()
	delete(f.stems, rec.Slug())
	f.mu.Unlock()
	return nil
}

// ValidateSetup verifies that the root exists, is a directory and is writable.
func (f *FileSystemSource) ValidateSetup(ctx context.Context) error {
	info, err := os.Stat(f.root)
	if err != nil {
		return fmt.Errorf("source root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source root is not a directory: %s", f.root)
	}

	tmp, err := os.CreateTemp(f.root, ".snapsync-check-*")
	if err != nil {
		return fmt.Errorf("source root not writable: %w", err)
	}
	tmp.Close()
	return os.Remove(tmp.Name())
}

func (f *FileSystemSource) stem(slug string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stem, ok := f.stems[slug]; ok {
		return stem
	}
	return slug
}

func (f *FileSystemSource) archivePath(slug string) string {
	return filepath.Join(f.root, f.stem(slug)+archiveExt)
}

func (f *FileSystemSource) readMetadata(stem string) (*backup.Record, error) {
	file, err := os.Open(filepath.Join(f.root, stem+metadataExt))
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return decodeMetadata(file, f.id)
}

func (f *FileSystemSource) writeMetadata(stem string, info backup.RecordInfo) error {
	data, err := encodeMetadata(info)
	if err != nil {
		return err
	}
	if _, err := writeFileAtomic(filepath.Join(f.root, stem+metadataExt), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing metadata for %s: %w", info.Slug, err)
	}
	return nil
}

// adopt describes an archive that has no sidecar and writes one for it.
func (f *FileSystemSource) adopt(stem string, entry os.DirEntry) (*backup.Record, error) {
	fi, err := entry.Info()
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	info := backup.RecordInfo{
		Name:         stem,
		Slug:         f.idgen.New(),
		SourceID:     f.id,
		Date:         fi.ModTime().UTC(),
		Size:         backup.Bytes(fi.Size()),
		SnapshotType: "Full",
		Uploadable:   true,
	}
	if err := f.writeMetadata(stem, info); err != nil {
		return nil, err
	}
	return backup.NewRecord(info), nil
}

// writeFileAtomic copies r into destPath through a temp file and rename, and
// returns the number of bytes written.
func writeFileAtomic(destPath string, r io.Reader) (int64, error) {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return 0, fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return 0, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return 0, fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return written, nil
}

var _ backup.Source = (*FileSystemSource)(nil)
