package backup

import (
	"errors"
	"time"
)

// UploadSpeedWindow is the trailing window upload speed is averaged over.
const UploadSpeedWindow = 20 * time.Second

// ErrUploadInProgress is returned when an upload to one source is started
// while another source's upload is still being tracked.
var ErrUploadInProgress = errors.New("upload already in progress")

// ErrNoUploadSource is returned when an upload is started without a target
// source id.
var ErrNoUploadSource = errors.New("upload source id is empty")

// ProgressReporter reports on a transfer that may be running concurrently.
// Implementations must be safe to read while the transfer advances.
type ProgressReporter interface {
	// Progress returns completion as a percentage, 0 to 100.
	Progress() int
	// Speed returns the transfer rate in bytes per second over the trailing window.
	Speed(window time.Duration) float64
	// Position returns the number of bytes transferred so far.
	Position() int64
	// StartTime returns when the transfer started.
	StartTime() time.Time
}

// SetUploadSource starts tracking an upload into sourceID and clears any
// earlier failure. Restarting an upload into the same source is allowed;
// starting one into a different source while a reporter is still active
// returns ErrUploadInProgress and changes nothing. An empty sourceID is
// rejected with ErrNoUploadSource.
func (s *Snapshot) SetUploadSource(sourceID string, reporter ProgressReporter) error {
	if sourceID == "" {
		return ErrNoUploadSource
	}
	if s.uploadReporter != nil && s.uploadSourceID != sourceID && s.uploadReporter.Progress() < 100 {
		return ErrUploadInProgress
	}
	s.uploadSourceID = sourceID
	s.uploadReporter = reporter
	s.uploadFailure = nil
	return nil
}

// ClearUploadSource stops tracking the upload, forgetting any failure.
func (s *Snapshot) ClearUploadSource() {
	s.uploadSourceID = ""
	s.uploadReporter = nil
	s.uploadFailure = nil
}

// UploadFailure records that the tracked upload failed. The target source id
// is kept so the failure can be shown against it.
func (s *Snapshot) UploadFailure(info any) {
	s.uploadReporter = nil
	s.uploadFailure = info
}

// UploadSourceID returns the source the tracked upload targets, or "".
func (s *Snapshot) UploadSourceID() string {
	return s.uploadSourceID
}

// Uploading reports whether an upload is being tracked, failed or not.
func (s *Snapshot) Uploading() bool {
	return s.uploadSourceID != ""
}

// TransferActive reports whether a reporter is attached: a transfer has been
// started and has neither been cleared nor failed.
func (s *Snapshot) TransferActive() bool {
	return s.uploadReporter != nil
}

// UploadInfo returns {"progress": p} while an upload is running and has not
// reached 100%, and an empty map otherwise.
func (s *Snapshot) UploadInfo() map[string]any {
	if s.uploadReporter == nil {
		return map[string]any{}
	}
	progress := s.uploadReporter.Progress()
	if progress == 100 {
		return map[string]any{}
	}
	return map[string]any{"progress": progress}
}

// GetUploadInfo describes the tracked upload for display, or returns nil when
// none has been started. A recorded failure is reported instead of progress.
//
// Between UploadFailure and the next SetUploadSource or ClearUploadSource
// call the result holds the failure; if neither a reporter nor a failure is
// present only the name is returned. Empty failure values ("", false) count
// as no failure.
func (s *Snapshot) GetUploadInfo(formatter TimeFormatter) map[string]any {
	if s.uploadSourceID == "" {
		return nil
	}
	info := map[string]any{"name": s.uploadSourceID}
	if failed(s.uploadFailure) {
		info["failure"] = s.uploadFailure
		return info
	}
	if s.uploadReporter != nil {
		info["progress"] = s.uploadReporter.Progress()
		info["speed"] = s.uploadReporter.Speed(UploadSpeedWindow)
		info["total"] = s.uploadReporter.Position()
		if formatter == nil {
			formatter = RelativeClock{}
		}
		info["started"] = formatter.FormatDelta(s.uploadReporter.StartTime())
	}
	return info
}

func failed(info any) bool {
	switch v := info.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case bool:
		return v
	}
	return true
}
