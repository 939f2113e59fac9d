package backup

import "github.com/dustin/go-humanize"

// Well-known source identifiers. Every configured source is bound to one of
// these roles; status computation compares against them.
const (
	SourceLocal  = "local"
	SourceRemote = "remote"
)

// Options is the engine-wide configuration shared by records and snapshots.
// The snapshot model stores and propagates it but never reads it.
type Options struct {
	// Keep is the number of copies retention keeps per source id.
	// A missing or non-positive entry means no limit.
	Keep map[string]int
}

// KeepFor returns the retention limit for a source, or 0 for no limit.
func (o *Options) KeepFor(sourceID string) int {
	if o == nil {
		return 0
	}
	return o.Keep[sourceID]
}

// SizeFormatter renders a byte count for display.
type SizeFormatter func(n int64) string

// HumanSize renders sizes in IEC units ("1.5 GiB").
func HumanSize(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}
