package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"snapsync/internal/backup"
	"snapsync/internal/config"
	"snapsync/internal/database"
	"snapsync/internal/encryption"
	"snapsync/internal/source"
)

// SnapApp is the application layer between the CLI and SyncService.
// It constructs all dependencies from config, exposes high-level operations
// keyed by slug, and manages the DB and log file lifecycle on Close.
type SnapApp struct {
	cfg       *config.Config
	db        *database.SQLiteDatabase
	sources   map[string]backup.Source
	encryptor backup.Encryptor
	service   *backup.SyncService
	logger    backup.Logger
	op        *Operation
	logFile   *os.File
}

// NewSnapApp creates a fully wired SnapApp from the given config.
// operation identifies the CLI command being run (e.g. "Sync", "Restore").
// The caller must call Close when done.
func NewSnapApp(ctx context.Context, cfg *config.Config, operation string) (*SnapApp, error) {
	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("no sources configured")
	}

	clock := backup.RealClock{}
	op := NewOperation(operation, clock.Now())

	level, err := LogLevel()
	if err != nil {
		return nil, err
	}
	slogger, logFile, err := newLogger(cfg.LogDir, op.ID, level)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	closeLog := func() {
		if logFile != nil {
			logFile.Close()
		}
	}

	sources := make(map[string]backup.Source, len(cfg.Sources))
	var ordered []backup.Source
	for _, sc := range cfg.Sources {
		src, err := source.NewSourceFromConfig(ctx, sc, backup.UUIDGenerator{})
		if err != nil {
			closeLog()
			return nil, fmt.Errorf("creating %s source: %w", sc.Role, err)
		}
		sources[src.ID()] = src
		ordered = append(ordered, src)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.HostID)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.CheckMigrations(); err != nil {
		db.Close()
		closeLog()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	opts := &backup.Options{Keep: map[string]int{
		backup.SourceLocal:  cfg.Retention.KeepLocal,
		backup.SourceRemote: cfg.Retention.KeepRemote,
	}}

	svc := backup.NewSyncService(ordered, enc, db, opts, logger, clock)
	logger.Info("operation started", "operation", op.Name)

	return &SnapApp{
		cfg:       cfg,
		db:        db,
		sources:   sources,
		encryptor: enc,
		service:   svc,
		logger:    logger,
		op:        op,
		logFile:   logFile,
	}, nil
}

// track marks the operation failed when err is non-nil and returns err.
func (a *SnapApp) track(err error) error {
	if err != nil {
		a.op.Fail()
	}
	return err
}

// ValidateSources checks that every configured source is reachable.
func (a *SnapApp) ValidateSources(ctx context.Context) error {
	var errs []error
	for id, src := range a.sources {
		if err := src.ValidateSetup(ctx); err != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", id, err))
		}
	}
	return a.track(errors.Join(errs...))
}

// SetupKeys generates the encryption key pair protected by passphrase.
func (a *SnapApp) SetupKeys(passphrase string) error {
	if err := a.encryptor.Setup(passphrase); err != nil {
		return a.track(fmt.Errorf("setting up keys: %w", err))
	}
	a.logger.Info("encryption keys created")
	return nil
}

// EncryptionEnabled reports whether archives are encrypted on upload, and so
// whether a restore may need a passphrase.
func (a *SnapApp) EncryptionEnabled() bool {
	return a.encryptor.Enabled()
}

// Status refreshes the catalog, plans purges and returns a view of every
// snapshot, newest first.
func (a *SnapApp) Status(ctx context.Context) ([]backup.SnapshotView, error) {
	if _, err := a.service.Refresh(ctx); err != nil {
		return nil, a.track(err)
	}
	a.service.PlanPurges()
	return a.service.Views(backup.HumanSize), nil
}

// SyncResult summarizes a Sync run.
type SyncResult struct {
	Uploaded int
	Purged   int
}

// Sync uploads every pending snapshot and then applies retention. Upload
// failures do not stop the purge pass; both are returned joined.
func (a *SnapApp) Sync(ctx context.Context) (SyncResult, error) {
	var result SyncResult
	if _, err := a.service.Refresh(ctx); err != nil {
		return result, a.track(err)
	}

	uploaded, uploadErr := a.service.UploadPending(ctx)
	result.Uploaded = uploaded

	a.service.PlanPurges()
	purged, purgeErr := a.service.Purge(ctx)
	result.Purged = purged

	a.logger.Info("sync finished", "uploaded", uploaded, "purged", purged)
	return result, a.track(errors.Join(uploadErr, purgeErr))
}

// Upload copies one snapshot to the remote source.
func (a *SnapApp) Upload(ctx context.Context, slug string) error {
	if _, err := a.service.Refresh(ctx); err != nil {
		return a.track(err)
	}
	return a.track(a.service.Upload(ctx, slug))
}

// Restore copies one snapshot back from the remote source. passphrase unlocks
// the private key; leave it empty when the remote copy is not encrypted.
func (a *SnapApp) Restore(ctx context.Context, slug, passphrase string) error {
	if _, err := a.service.Refresh(ctx); err != nil {
		return a.track(err)
	}

	var dctx backup.DecryptionContext
	if passphrase != "" {
		var err error
		dctx, err = a.encryptor.Unlock(passphrase)
		if err != nil {
			return a.track(fmt.Errorf("unlocking private key: %w", err))
		}
	}
	return a.track(a.service.Restore(ctx, slug, dctx))
}

// SetRetained marks the copy of slug held by sourceID as retained or not.
func (a *SnapApp) SetRetained(ctx context.Context, slug, sourceID string, retained bool) error {
	if _, err := a.service.Refresh(ctx); err != nil {
		return a.track(err)
	}
	return a.track(a.service.SetRetained(ctx, slug, sourceID, retained))
}

// Delete removes the copy of slug held by sourceID.
func (a *SnapApp) Delete(ctx context.Context, slug, sourceID string) error {
	if _, err := a.service.Refresh(ctx); err != nil {
		return a.track(err)
	}
	return a.track(a.service.Delete(ctx, slug, sourceID))
}

// History returns the most recent transfers.
func (a *SnapApp) History(limit int) ([]*backup.Transfer, error) {
	transfers, err := a.service.History(limit)
	return transfers, a.track(err)
}

// Close logs the outcome of the operation and closes all resources.
func (a *SnapApp) Close() error {
	a.logger.Info("operation finished", "operation", a.op.Name, "status", a.op.Status)

	var firstErr error
	if err := a.db.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
