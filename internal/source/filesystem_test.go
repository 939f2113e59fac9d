package source

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"snapsync/internal/backup"
)

func newTestFileSystemSource(t *testing.T) (*FileSystemSource, string) {
	t.Helper()
	root := t.TempDir()
	f, err := NewFileSystemSource(backup.SourceLocal, root, &seqIDs{})
	if err != nil {
		t.Fatalf("NewFileSystemSource() error = %v", err)
	}
	return f, root
}

func TestNewFileSystemSource(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "archives")

	f, err := NewFileSystemSource("local", root, &seqIDs{})
	if err != nil {
		t.Fatalf("NewFileSystemSource() error = %v", err)
	}
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root directory not created: %v", err)
	}
	if err := f.ValidateSetup(context.Background()); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}
}

func TestFileSystemSource_PutAndList(t *testing.T) {
	ctx := context.Background()
	f, root := newTestFileSystemSource(t)

	info := testInfo("abc123")
	info.Protected = true
	info.Details["encrypted"] = true
	if _, err := f.Put(ctx, info, strings.NewReader("archive bytes")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	for _, name := range []string{"abc123.tar", "abc123.toml"} {
		if _, err := os.Stat(filepath.Join(root, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}

	records, err := f.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(List()) = %d, want 1", len(records))
	}

	got := records[0]
	if got.Slug() != "abc123" || got.Name() != "Backup abc123" {
		t.Errorf("record = %s/%s, want abc123/Backup abc123", got.Slug(), got.Name())
	}
	if got.SourceID() != backup.SourceLocal {
		t.Errorf("SourceID() = %q, want %q", got.SourceID(), backup.SourceLocal)
	}
	if !got.Date().Equal(testDate) {
		t.Errorf("Date() = %v, want %v", got.Date(), testDate)
	}
	if got.SizeInt() != int64(len("archive bytes")) {
		t.Errorf("SizeInt() = %d, want %d", got.SizeInt(), len("archive bytes"))
	}
	if got.Version() != "2024.1.0" || got.SnapshotType() != "Full" || !got.Protected() || !got.Uploadable() {
		t.Errorf("metadata not round-tripped: %+v", got.Info())
	}
	if enc, _ := got.Details()["encrypted"].(bool); !enc {
		t.Errorf("Details()[encrypted] = %v, want true", got.Details()["encrypted"])
	}

	rc, err := f.Open(ctx, got)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "archive bytes" {
		t.Errorf("Open() content = %q, want %q", data, "archive bytes")
	}
}

func TestFileSystemSource_AdoptsArchiveWithoutSidecar(t *testing.T) {
	ctx := context.Background()
	f, root := newTestFileSystemSource(t)

	archive := filepath.Join(root, "manual-copy.tar")
	if err := os.WriteFile(archive, []byte("0123456789"), 0644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Date(2023, 6, 1, 8, 0, 0, 0, time.UTC)
	if err := os.Chtimes(archive, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	records, err := f.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(List()) = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.Slug() != "adopted-1" {
		t.Errorf("Slug() = %q, want %q", rec.Slug(), "adopted-1")
	}
	if rec.Name() != "manual-copy" {
		t.Errorf("Name() = %q, want %q", rec.Name(), "manual-copy")
	}
	if rec.SizeInt() != 10 {
		t.Errorf("SizeInt() = %d, want 10", rec.SizeInt())
	}
	if !rec.Date().Equal(mtime) {
		t.Errorf("Date() = %v, want %v", rec.Date(), mtime)
	}
	if _, err := os.Stat(filepath.Join(root, "manual-copy.toml")); err != nil {
		t.Errorf("sidecar not written for adopted archive: %v", err)
	}

	// The generated slug is stable across listings.
	records, err = f.List(ctx)
	if err != nil {
		t.Fatalf("second List() error = %v", err)
	}
	if records[0].Slug() != "adopted-1" {
		t.Errorf("second List() slug = %q, want %q", records[0].Slug(), "adopted-1")
	}

	rc, err := f.Open(ctx, records[0])
	if err != nil {
		t.Fatalf("Open() adopted archive error = %v", err)
	}
	rc.Close()

	if err := f.Delete(ctx, records[0]); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(archive); !os.IsNotExist(err) {
		t.Errorf("adopted archive still present after Delete(): %v", err)
	}
}

func TestFileSystemSource_Update(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFileSystemSource(t)

	rec, err := f.Put(ctx, testInfo("a"), strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	rec.SetRetained(true)
	rec.SetUploadable(false)
	if err := f.Update(ctx, rec); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	records, _ := f.List(ctx)
	if !records[0].Retained() || records[0].Uploadable() {
		t.Errorf("after Update() retained=%v uploadable=%v, want true/false",
			records[0].Retained(), records[0].Uploadable())
	}

	missing := backup.NewRecord(testInfo("missing"))
	if err := f.Update(ctx, missing); !errors.Is(err, backup.ErrRecordNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrRecordNotFound", err)
	}
}

func TestFileSystemSource_Delete(t *testing.T) {
	ctx := context.Background()
	f, root := newTestFileSystemSource(t)

	rec, _ := f.Put(ctx, testInfo("a"), strings.NewReader("x"))
	if err := f.Delete(ctx, rec); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	entries, _ := os.ReadDir(root)
	if len(entries) != 0 {
		t.Errorf("root not empty after Delete(): %d entries", len(entries))
	}
	if err := f.Delete(ctx, rec); !errors.Is(err, backup.ErrRecordNotFound) {
		t.Errorf("second Delete() error = %v, want ErrRecordNotFound", err)
	}
}

func TestFileSystemSource_FailedPutLeavesNothing(t *testing.T) {
	ctx := context.Background()
	f, root := newTestFileSystemSource(t)

	_, err := f.Put(ctx, testInfo("a"), io.MultiReader(strings.NewReader("partial"), errReader{}))
	if err == nil {
		t.Fatal("Put() expected error from failing reader")
	}

	entries, _ := os.ReadDir(root)
	if len(entries) != 0 {
		t.Errorf("root not empty after failed Put(): %d entries", len(entries))
	}
}

func TestFileSystemSource_IgnoresOtherFiles(t *testing.T) {
	ctx := context.Background()
	f, root := newTestFileSystemSource(t)

	os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hi"), 0644)
	os.WriteFile(filepath.Join(root, ".tmp-123"), []byte("partial"), 0644)
	os.Mkdir(filepath.Join(root, "sub.tar"), 0755)

	records, err := f.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("len(List()) = %d, want 0", len(records))
	}
}

func TestFileSystemSource_IgnorePatterns(t *testing.T) {
	ctx := context.Background()
	f, root := newTestFileSystemSource(t)
	f.SetIgnore([]string{"*.partial.tar"})

	for _, name := range []string{"keep.tar", "upload.partial.tar", "scratch.tar"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, IgnoreFile), []byte("# local\nscratch.tar\n"), 0644); err != nil {
		t.Fatal(err)
	}

	records, err := f.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 1 || records[0].Name() != "keep" {
		t.Fatalf("List() = %d records, want only keep", len(records))
	}
	if _, err := os.Stat(filepath.Join(root, "scratch.toml")); !os.IsNotExist(err) {
		t.Error("ignored archive was adopted")
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("read failed") }
