package source

import (
	"context"
	"fmt"

	"snapsync/internal/backup"
	"snapsync/internal/config"
)

// NewSourceFromConfig creates a Source for cfg.Role backed by the store cfg.Type names.
func NewSourceFromConfig(ctx context.Context, cfg config.SourceConfig, idgen backup.IDGenerator) (backup.Source, error) {
	switch cfg.Role {
	case backup.SourceLocal, backup.SourceRemote:
	default:
		return nil, fmt.Errorf("unknown source role: %q", cfg.Role)
	}

	switch cfg.Type {
	case "memory":
		return NewMemorySource(cfg.Role), nil
	case "filesystem":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem source requires root to be set")
		}
		src, err := NewFileSystemSource(cfg.Role, cfg.Root, idgen)
		if err != nil {
			return nil, err
		}
		src.SetIgnore(cfg.Ignore)
		return src, nil
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 source requires s3_bucket to be set")
		}
		client, err := NewS3ClientFromConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		src := NewS3Source(cfg.Role, cfg.S3Bucket, cfg.S3Prefix, client)
		src.SetIgnore(cfg.Ignore)
		return src, nil
	default:
		return nil, fmt.Errorf("unknown source type: %s", cfg.Type)
	}
}
