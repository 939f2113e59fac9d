package backup_test

import (
	"strconv"
	"testing"

	"snapsync/internal/backup"
)

func TestSnapshot_StatusFromPresence(t *testing.T) {
	tests := []struct {
		name    string
		records []*backup.Record
		want    string
	}{
		{name: "both", records: []*backup.Record{localRecord("a"), remoteRecord("a")}, want: backup.StatusBackedUp},
		{name: "remote only", records: []*backup.Record{remoteRecord("a")}, want: backup.StatusRemoteOnly},
		{name: "local only", records: []*backup.Record{localRecord("a")}, want: backup.StatusLocalOnly},
		{name: "none", records: nil, want: backup.StatusDeleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := backup.NewSnapshot(tt.records...).Status(); got != tt.want {
				t.Errorf("Status() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSnapshot_StatusLiteralValues(t *testing.T) {
	want := map[string]string{
		backup.StatusBackedUp:   "Backed Up",
		backup.StatusRemoteOnly: "Drive Only",
		backup.StatusLocalOnly:  "HA Only",
		backup.StatusDeleted:    "Deleted",
	}
	for got, w := range want {
		if got != w {
			t.Errorf("status constant = %q, want %q", got, w)
		}
	}
}

func TestSnapshot_RecordStatusWins(t *testing.T) {
	local := localRecord("a")
	remote := remoteRecord("a")
	snap := backup.NewSnapshot(local, remote)

	remote.SetStatus("Uploading")
	if got := snap.Status(); got != "Uploading" {
		t.Errorf("Status() = %q, want %q", got, "Uploading")
	}

	local.SetStatus("Deleting")
	if got := snap.Status(); got != "Deleting" {
		t.Errorf("Status() = %q, want the first record's status %q", got, "Deleting")
	}
}

func TestSnapshot_OverrideStatus(t *testing.T) {
	tests := []struct {
		name     string
		template string
		args     []any
		want     string
	}{
		{name: "indexed", template: "Deleting from {0}", args: []any{"remote"}, want: "Deleting from remote"},
		{name: "sequential", template: "{} of {}", args: []any{3, 7}, want: "3 of 7"},
		{name: "reordered", template: "{1} before {0}", args: []any{"a", "b"}, want: "b before a"},
		{name: "escaped braces", template: "{{literal}} {0}", args: []any{"x"}, want: "{literal} x"},
		{name: "missing argument", template: "Syncing {2}", args: []any{"a"}, want: "Syncing {2}"},
		{name: "not a placeholder", template: "{name}", args: []any{"a"}, want: "{name}"},
		{name: "unterminated", template: "Loading {0", args: []any{"a"}, want: "Loading {0"},
		{name: "no placeholders", template: "Paused", want: "Paused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := backup.NewSnapshot(localRecord("a"))
			snap.OverrideStatus(tt.template, tt.args...)
			if got := snap.Status(); got != tt.want {
				t.Errorf("Status() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSnapshot_OverrideBeatsRecordStatus(t *testing.T) {
	local := localRecord("a")
	local.SetStatus("Deleting")
	snap := backup.NewSnapshot(local)

	snap.OverrideStatus("Deleting from {0}", backup.SourceLocal)
	if got := snap.Status(); got != "Deleting from local" {
		t.Errorf("Status() = %q, want override", got)
	}

	snap.ClearStatus()
	if got := snap.Status(); got != "Deleting" {
		t.Errorf("Status() after ClearStatus() = %q, want record status", got)
	}
}

func TestSnapshot_OverrideArgsRenderedOnRead(t *testing.T) {
	snap := backup.NewSnapshot(localRecord("a"))
	counter := &countingArg{}
	snap.OverrideStatus("step {0}", counter)

	if got := snap.Status(); got != "step 1" {
		t.Errorf("first Status() = %q, want %q", got, "step 1")
	}
	if got := snap.Status(); got != "step 2" {
		t.Errorf("second Status() = %q, want %q", got, "step 2")
	}
}

func TestSnapshot_StatusDetail(t *testing.T) {
	snap := backup.NewSnapshot(localRecord("a"))
	snap.SetStatusDetail("delete from remote failed")

	if snap.StatusDetail() != "delete from remote failed" {
		t.Errorf("StatusDetail() = %q", snap.StatusDetail())
	}
	if snap.Status() != backup.StatusLocalOnly {
		t.Errorf("Status() = %q, detail must not affect it", snap.Status())
	}
}

// countingArg renders as the number of times it has been rendered.
type countingArg struct{ n int }

func (c *countingArg) String() string {
	c.n++
	return strconv.Itoa(c.n)
}
