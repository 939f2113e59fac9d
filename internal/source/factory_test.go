package source

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"snapsync/internal/backup"
	"snapsync/internal/config"
)

func TestNewSourceFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.SourceConfig
		wantErr bool
	}{
		{
			name: "memory source",
			cfg:  config.SourceConfig{Role: "local", Type: "memory"},
		},
		{
			name: "filesystem source",
			cfg:  config.SourceConfig{Role: "local", Type: "filesystem", Root: filepath.Join(t.TempDir(), "archives")},
		},
		{
			name:    "filesystem source without root",
			cfg:     config.SourceConfig{Role: "local", Type: "filesystem"},
			wantErr: true,
		},
		{
			name:    "s3 source without bucket",
			cfg:     config.SourceConfig{Role: "remote", Type: "s3"},
			wantErr: true,
		},
		{
			name:    "unknown role",
			cfg:     config.SourceConfig{Role: "cloud", Type: "memory"},
			wantErr: true,
		},
		{
			name:    "unknown source type",
			cfg:     config.SourceConfig{Role: "remote", Type: "ftp"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			got, err := NewSourceFromConfig(ctx, tt.cfg, &seqIDs{})

			if (err != nil) != tt.wantErr {
				t.Fatalf("NewSourceFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if got != nil {
					t.Errorf("NewSourceFromConfig() = %v, want nil", got)
				}
				return
			}

			if got.ID() != tt.cfg.Role {
				t.Errorf("ID() = %q, want %q", got.ID(), tt.cfg.Role)
			}
			if err := got.ValidateSetup(ctx); err != nil {
				t.Errorf("ValidateSetup() error = %v", err)
			}
		})
	}
}

func TestNewSourceFromConfig_AppliesIgnore(t *testing.T) {
	root := t.TempDir()
	cfg := config.SourceConfig{Role: "local", Type: "filesystem", Root: root, Ignore: []string{"*.partial.tar"}}

	src, err := NewSourceFromConfig(context.Background(), cfg, &seqIDs{})
	if err != nil {
		t.Fatalf("NewSourceFromConfig() error = %v", err)
	}
	fs, ok := src.(*FileSystemSource)
	if !ok {
		t.Fatalf("source type = %T, want *FileSystemSource", src)
	}
	if !fs.ignore.Match("x.partial.tar") {
		t.Error("configured ignore patterns not applied")
	}
}

// seqIDs hands out "adopted-1", "adopted-2", ...
type seqIDs struct{ n int }

func (s *seqIDs) New() string {
	s.n++
	return "adopted-" + strconv.Itoa(s.n)
}

var _ backup.IDGenerator = (*seqIDs)(nil)
