package backup_test

import (
	"testing"

	"snapsync/internal/backup"
	"snapsync/internal/testutil"
)

func TestSize_Int(t *testing.T) {
	tests := []struct {
		name string
		size backup.Size
		want int64
	}{
		{name: "bytes", size: backup.Bytes(2048), want: 2048},
		{name: "numeric text", size: backup.SizeText("4096"), want: 4096},
		{name: "padded numeric text", size: backup.SizeText(" 12 "), want: 12},
		{name: "provider text", size: backup.SizeText("1.2 GB"), want: 0},
		{name: "empty text", size: backup.SizeText(""), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.size.Int(); got != tt.want {
				t.Errorf("Int() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNewRecord(t *testing.T) {
	rec := backup.NewRecord(backup.RecordInfo{Slug: "abc", SourceID: backup.SourceLocal})

	if rec.Details() == nil {
		t.Error("Details() = nil, want empty map")
	}
	if !rec.ConsiderForPurge() {
		t.Error("ConsiderForPurge() = false for unretained record")
	}

	rec.SetRetained(true)
	if rec.ConsiderForPurge() {
		t.Error("ConsiderForPurge() = true for retained record")
	}
}

func TestRecord_InfoIsACopy(t *testing.T) {
	rec := backup.NewRecord(backup.RecordInfo{
		Slug:    "abc",
		Details: map[string]any{"folders": "share"},
	})

	info := rec.Info()
	info.Details["folders"] = "changed"

	if got := rec.Details()["folders"]; got != "share" {
		t.Errorf("record details changed through Info(): %v", got)
	}
}

func TestRecord_Status(t *testing.T) {
	rec := testutil.NewRecord(backup.SourceLocal, "abc", testutil.FixedClock().Now(), 10)

	if rec.Status() != "" {
		t.Errorf("Status() = %q, want empty", rec.Status())
	}
	rec.SetStatus("Deleting")
	if rec.Status() != "Deleting" {
		t.Errorf("Status() = %q, want %q", rec.Status(), "Deleting")
	}
}
