package backup

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// Clock abstracts time retrieval so business logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// TimeFormatter renders a timestamp relative to the present for display.
type TimeFormatter interface {
	FormatDelta(t time.Time) string
}

// RelativeClock formats timestamps relative to its Clock, e.g. "3 minutes ago".
type RelativeClock struct {
	Clock Clock
}

// FormatDelta renders t relative to the clock's current time.
func (c RelativeClock) FormatDelta(t time.Time) string {
	now := c.Clock
	if now == nil {
		now = RealClock{}
	}
	return humanize.RelTime(t, now.Now(), "ago", "from now")
}

// IDGenerator abstracts unique ID generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }
