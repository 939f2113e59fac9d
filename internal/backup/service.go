package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"snapsync/internal/transfer"
)

var (
	// ErrSnapshotNotFound is returned for a slug no source holds.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrSourceNotConfigured is returned when an operation needs a source role
	// that has not been configured.
	ErrSourceNotConfigured = errors.New("source not configured")
)

// DetailEncrypted marks, in a record's details, an archive stored encrypted.
const DetailEncrypted = "encrypted"

var _ ProgressReporter = (*transfer.Progress)(nil)

// SyncService reconciles the records listed by each source into logical
// snapshots and moves archives between sources. It owns every Snapshot it
// hands out and serializes access to them.
type SyncService struct {
	mu        sync.Mutex
	order     []string
	sources   map[string]Source
	encryptor Encryptor
	database  Database
	options   *Options
	logger    Logger
	clock     Clock
	catalog   map[string]*Snapshot
}

// NewSyncService creates a SyncService over the given sources. Records from
// earlier sources take precedence in merged views. encryptor and database may
// be nil: archives are then copied as-is and transfers are not recorded.
func NewSyncService(sources []Source, encryptor Encryptor, database Database, options *Options, logger Logger, clock Clock) *SyncService {
	s := &SyncService{
		sources:   make(map[string]Source, len(sources)),
		encryptor: encryptor,
		database:  database,
		options:   options,
		logger:    logger,
		clock:     clock,
		catalog:   make(map[string]*Snapshot),
	}
	for _, src := range sources {
		if _, ok := s.sources[src.ID()]; !ok {
			s.order = append(s.order, src.ID())
		}
		s.sources[src.ID()] = src
	}
	return s
}

// Refresh lists every source and brings the catalog in line with what they
// hold. Snapshots no source holds any more are dropped unless an upload is
// still tracked on them. It returns the catalog newest first.
func (s *SyncService) Refresh(ctx context.Context) ([]*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.order {
		records, err := s.sources[id].List(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing source %s: %w", id, err)
		}

		seen := make(map[string]bool, len(records))
		for _, rec := range records {
			seen[rec.Slug()] = true
			rec.SetOptions(s.options)
			snap, ok := s.catalog[rec.Slug()]
			if !ok {
				snap = NewSnapshot()
				s.catalog[rec.Slug()] = snap
				s.logger.Debug("snapshot discovered", "slug", rec.Slug(), "source", id)
			}
			snap.AddSource(rec)
		}

		for slug, snap := range s.catalog {
			if snap.Source(id) != nil && !seen[slug] {
				snap.RemoveSource(id)
				s.logger.Info("snapshot copy disappeared", "slug", slug, "source", id)
			}
		}
	}

	s.dropDeletedLocked()
	return s.sortedLocked(), nil
}

// Snapshots returns the catalog newest first.
func (s *SyncService) Snapshots() []*Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

// Snapshot returns the snapshot with the given slug, or nil.
func (s *SyncService) Snapshot(slug string) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog[slug]
}

// SnapshotView is a point-in-time copy of a snapshot's merged state, safe to
// use while transfers continue.
type SnapshotView struct {
	Slug     string
	Name     string
	Date     time.Time
	Type     string
	Version  string
	Size     string
	Status   string
	Detail   string
	Sources  []string
	Retained map[string]bool
	Purges   map[string]bool
	Upload   map[string]any
}

// Views returns a view of every snapshot, newest first. Sizes are rendered
// with format (HumanSize when nil).
func (s *SyncService) Views(format SizeFormatter) []SnapshotView {
	s.mu.Lock()
	defer s.mu.Unlock()

	formatter := RelativeClock{Clock: s.clock}
	snaps := s.sortedLocked()
	views := make([]SnapshotView, 0, len(snaps))
	for _, snap := range snaps {
		v := SnapshotView{
			Slug:     snap.Slug(),
			Name:     snap.Name(),
			Date:     snap.Date(),
			Type:     snap.SnapshotType(),
			Version:  snap.Version(),
			Size:     snap.SizeString(format),
			Status:   snap.Status(),
			Detail:   snap.StatusDetail(),
			Sources:  snap.SourceIDs(),
			Retained: make(map[string]bool),
			Purges:   make(map[string]bool),
			Upload:   snap.GetUploadInfo(formatter),
		}
		for _, rec := range snap.Records() {
			v.Retained[rec.SourceID()] = rec.Retained()
		}
		for id, purge := range snap.Purges() {
			v.Purges[id] = purge
		}
		views = append(views, v)
	}
	return views
}

// Upload copies the local archive for slug to the remote source, encrypting
// it when encryption is enabled. Progress is tracked on the snapshot while
// the copy runs. A snapshot already present remotely is left alone.
func (s *SyncService) Upload(ctx context.Context, slug string) error {
	return s.copyArchive(ctx, slug, SourceLocal, SourceRemote, DirectionUpload, nil)
}

// UploadPending uploads every snapshot held only locally whose local record
// is uploadable. It keeps going past failures and returns them joined.
func (s *SyncService) UploadPending(ctx context.Context) (int, error) {
	s.mu.Lock()
	var pending []string
	for _, snap := range s.sortedLocked() {
		local := snap.Source(SourceLocal)
		if local != nil && snap.Source(SourceRemote) == nil && local.Uploadable() && !snap.TransferActive() {
			pending = append(pending, snap.Slug())
		}
	}
	s.mu.Unlock()

	var errs []error
	uploaded := 0
	for _, slug := range pending {
		if err := s.Upload(ctx, slug); err != nil {
			errs = append(errs, err)
			continue
		}
		uploaded++
	}
	return uploaded, errors.Join(errs...)
}

// Restore copies the remote archive for slug back into the local source.
// dctx is required when the remote copy is encrypted.
func (s *SyncService) Restore(ctx context.Context, slug string, dctx DecryptionContext) error {
	return s.copyArchive(ctx, slug, SourceRemote, SourceLocal, DirectionRestore, dctx)
}

// copyArchive streams the archive for slug from one source to another.
func (s *SyncService) copyArchive(ctx context.Context, slug, fromID, toID, direction string, dctx DecryptionContext) error {
	from, to := s.sources[fromID], s.sources[toID]
	if from == nil {
		return fmt.Errorf("%w: %s", ErrSourceNotConfigured, fromID)
	}
	if to == nil {
		return fmt.Errorf("%w: %s", ErrSourceNotConfigured, toID)
	}

	s.mu.Lock()
	snap := s.catalog[slug]
	if snap == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, slug)
	}
	rec := snap.Source(fromID)
	if rec == nil {
		s.mu.Unlock()
		return fmt.Errorf("snapshot %s has no %s copy", slug, fromID)
	}
	if snap.Source(toID) != nil {
		s.mu.Unlock()
		s.logger.Debug("snapshot already present", "slug", slug, "source", toID)
		return nil
	}
	if snap.TransferActive() {
		s.mu.Unlock()
		return fmt.Errorf("starting transfer of %s: %w", slug, ErrUploadInProgress)
	}

	encrypted, _ := rec.Details()[DetailEncrypted].(bool)
	if encrypted && dctx == nil {
		s.mu.Unlock()
		return fmt.Errorf("snapshot %s is encrypted: passphrase required", slug)
	}

	rc, err := from.Open(ctx, rec)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("opening %s copy of %s: %w", fromID, slug, err)
	}
	defer rc.Close()

	progress := transfer.NewProgress(rc, rec.SizeInt(), s.clock)
	if err := snap.SetUploadSource(toID, progress); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("starting transfer of %s: %w", slug, err)
	}
	info := rec.Info()
	s.mu.Unlock()

	info.Retained = false
	info.Uploadable = false
	delete(info.Details, DetailEncrypted)

	var body io.Reader = progress
	switch {
	case encrypted:
		body = s.pipe(progress, dctx.Decrypt)
	case direction == DirectionUpload && s.encryptor != nil && s.encryptor.Enabled():
		body = s.pipe(progress, s.encryptor.Encrypt)
		info.Details[DetailEncrypted] = true
	}

	s.logger.Info("transfer started", "slug", slug, "from", fromID, "to", toID)
	started := s.clock.Now()
	historyID := s.startTransfer(slug, toID, direction, started)

	newRec, err := to.Put(ctx, info, body)
	if c, ok := body.(io.Closer); ok {
		c.Close()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		snap.UploadFailure(err.Error())
		s.finishTransfer(historyID, TransferFailed, progress.Position(), err.Error())
		s.logger.Error("transfer failed", "slug", slug, "to", toID, "error", err)
		return fmt.Errorf("copying %s to %s: %w", slug, toID, err)
	}

	newRec.SetOptions(s.options)
	snap.AddSource(newRec)
	snap.ClearUploadSource()
	s.finishTransfer(historyID, TransferSuccess, progress.Position(), "")
	s.logger.Info("transfer complete", "slug", slug, "to", toID, "bytes", progress.Position(),
		"elapsed", s.clock.Now().Sub(started).String())
	return nil
}

// pipe runs transform over r in a goroutine and returns the read side of its
// output. Closing the returned reader stops the goroutine.
func (s *SyncService) pipe(r io.Reader, transform func(io.Reader, io.Writer) error) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(transform(r, pw))
	}()
	return pr
}

// PlanPurges flags, per source with a retention limit, the copies beyond that
// limit, newest first. Retained copies are never flagged and do not count
// against the limit. It returns the number of copies flagged.
func (s *SyncService) PlanPurges() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	flagged := 0
	for _, id := range s.order {
		keep := s.options.KeepFor(id)

		var held []*Snapshot
		for _, snap := range s.catalog {
			if snap.Source(id) != nil {
				held = append(held, snap)
			}
		}
		sort.Slice(held, func(i, j int) bool {
			return newer(held[i].Source(id).Date(), held[j].Source(id).Date(), held[i].Slug(), held[j].Slug())
		})

		counted := 0
		for _, snap := range held {
			if !snap.Source(id).ConsiderForPurge() {
				snap.UpdatePurge(id, false)
				continue
			}
			counted++
			purge := keep > 0 && counted > keep
			snap.UpdatePurge(id, purge)
			if purge {
				flagged++
			}
		}
	}
	return flagged
}

// Purge deletes every copy flagged by PlanPurges. It keeps going past
// failures and returns them joined.
func (s *SyncService) Purge(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	deleted := 0
	for _, snap := range s.sortedLocked() {
		for _, id := range s.order {
			if !snap.Purges()[id] {
				continue
			}
			if err := s.deleteLocked(ctx, snap, id); err != nil {
				errs = append(errs, err)
				continue
			}
			deleted++
		}
	}
	s.dropDeletedLocked()
	return deleted, errors.Join(errs...)
}

// Delete removes the copy of slug held by sourceID.
func (s *SyncService) Delete(ctx context.Context, slug, sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.catalog[slug]
	if snap == nil {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, slug)
	}
	if err := s.deleteLocked(ctx, snap, sourceID); err != nil {
		return err
	}
	s.dropDeletedLocked()
	return nil
}

// deleteLocked deletes one copy while the status reads "Deleting from <id>".
// It must be called with s.mu held and releases it for the source call.
func (s *SyncService) deleteLocked(ctx context.Context, snap *Snapshot, sourceID string) error {
	src := s.sources[sourceID]
	if src == nil {
		return fmt.Errorf("%w: %s", ErrSourceNotConfigured, sourceID)
	}
	rec := snap.Source(sourceID)
	if rec == nil {
		snap.RemoveSource(sourceID)
		return nil
	}

	snap.OverrideStatus("Deleting from {0}", sourceID)
	s.mu.Unlock()
	err := src.Delete(ctx, rec)
	s.mu.Lock()
	snap.ClearStatus()

	if err != nil {
		snap.SetStatusDetail(fmt.Sprintf("delete from %s failed: %v", sourceID, err))
		return fmt.Errorf("deleting %s from %s: %w", rec.Slug(), sourceID, err)
	}
	snap.SetStatusDetail("")
	snap.RemoveSource(sourceID)
	s.logger.Info("snapshot copy deleted", "slug", rec.Slug(), "source", sourceID)
	return nil
}

// SetRetained marks the copy of slug in sourceID as retained or not and
// persists the flag through the source.
func (s *SyncService) SetRetained(ctx context.Context, slug, sourceID string, retained bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.catalog[slug]
	if snap == nil {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, slug)
	}
	rec := snap.Source(sourceID)
	if rec == nil {
		return fmt.Errorf("snapshot %s has no %s copy", slug, sourceID)
	}

	previous := rec.Retained()
	rec.SetRetained(retained)
	if err := s.sources[sourceID].Update(ctx, rec); err != nil {
		rec.SetRetained(previous)
		return fmt.Errorf("updating %s metadata in %s: %w", slug, sourceID, err)
	}
	if retained {
		snap.UpdatePurge(sourceID, false)
	}
	return nil
}

// History returns the most recent transfers.
func (s *SyncService) History(limit int) ([]*Transfer, error) {
	if s.database == nil {
		return nil, nil
	}
	transfers, err := s.database.ListTransfers(limit)
	if err != nil {
		return nil, fmt.Errorf("listing transfers: %w", err)
	}
	return transfers, nil
}

// startTransfer records a transfer in the history, returning its id or 0.
// History failures are logged, not returned: they must not stop a copy.
func (s *SyncService) startTransfer(slug, sourceID, direction string, started time.Time) int64 {
	if s.database == nil {
		return 0
	}
	t, err := s.database.CreateTransfer(slug, sourceID, direction, started)
	if err != nil {
		s.logger.Warn("recording transfer", "slug", slug, "error", err)
		return 0
	}
	return t.ID
}

func (s *SyncService) finishTransfer(id int64, status string, bytes int64, errMsg string) {
	if s.database == nil || id == 0 {
		return
	}
	if err := s.database.FinishTransfer(id, status, bytes, errMsg, s.clock.Now()); err != nil {
		s.logger.Warn("finishing transfer record", "id", id, "error", err)
	}
}

// dropDeletedLocked forgets snapshots no source holds and no transfer is
// running for. A recorded failure alone does not keep a snapshot.
func (s *SyncService) dropDeletedLocked() {
	for slug, snap := range s.catalog {
		if snap.IsDeleted() && !snap.TransferActive() {
			delete(s.catalog, slug)
		}
	}
}

func (s *SyncService) sortedLocked() []*Snapshot {
	snaps := make([]*Snapshot, 0, len(s.catalog))
	for _, snap := range s.catalog {
		snaps = append(snaps, snap)
	}
	sort.Slice(snaps, func(i, j int) bool {
		return newer(snaps[i].Date(), snaps[j].Date(), snaps[i].Slug(), snaps[j].Slug())
	})
	return snaps
}

// newer orders by date descending, then slug ascending.
func newer(a, b time.Time, slugA, slugB string) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return slugA < slugB
}
