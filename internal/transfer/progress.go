package transfer

import (
	"errors"
	"io"
	"sync"
	"time"
)

const (
	// sampleInterval is the minimum spacing between recorded samples.
	sampleInterval = 250 * time.Millisecond
	// sampleRetention bounds how far back Speed can look.
	sampleRetention = 5 * time.Minute
)

// Clock abstracts time retrieval so progress is deterministic in tests.
type Clock interface {
	Now() time.Time
}

type sample struct {
	at       time.Time
	position int64
}

// Progress counts the bytes read through it and reports how far a transfer
// of a known total size has got. Reads happen on the transfer goroutine; the
// reporting methods are safe to call from any goroutine.
type Progress struct {
	mu       sync.Mutex
	r        io.Reader
	clock    Clock
	total    int64
	position int64
	start    time.Time
	samples  []sample
	done     bool
}

// NewProgress wraps r. total is the expected number of bytes; when it is not
// positive Progress reports 0 until r is exhausted.
func NewProgress(r io.Reader, total int64, clock Clock) *Progress {
	now := clock.Now()
	return &Progress{
		r:       r,
		clock:   clock,
		total:   total,
		start:   now,
		samples: []sample{{at: now, position: 0}},
	}
}

// Read reads from the wrapped reader and records the bytes transferred.
func (p *Progress) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.position += int64(n)
	if errors.Is(err, io.EOF) {
		p.done = true
	}

	now := p.clock.Now()
	last := p.samples[len(p.samples)-1]
	if now.Sub(last.at) >= sampleInterval {
		p.samples = append(p.samples, sample{at: now, position: p.position})
		p.pruneLocked(now)
	}
	return n, err
}

// Progress returns completion as a percentage from 0 to 100. It reaches 100
// only once every expected byte has been read or the reader is exhausted.
func (p *Progress) Progress() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done || (p.total > 0 && p.position >= p.total) {
		return 100
	}
	if p.total <= 0 {
		return 0
	}
	return int(p.position * 100 / p.total)
}

// Speed returns bytes per second averaged over the trailing window.
func (p *Progress) Speed(window time.Duration) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	cutoff := now.Add(-window)

	// Baseline is the newest sample at or before the cutoff, or the oldest
	// one kept when the transfer is younger than the window.
	base := p.samples[0]
	for _, s := range p.samples {
		if s.at.After(cutoff) {
			break
		}
		base = s
	}

	elapsed := now.Sub(base.at).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(p.position-base.position) / elapsed
}

// Position returns the number of bytes read so far.
func (p *Progress) Position() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// Total returns the expected number of bytes.
func (p *Progress) Total() int64 {
	return p.total
}

// StartTime returns when the Progress was created.
func (p *Progress) StartTime() time.Time {
	return p.start
}

// pruneLocked drops samples too old to matter, keeping one before the
// retention cutoff as a baseline. Must be called with p.mu held.
func (p *Progress) pruneLocked(now time.Time) {
	cutoff := now.Add(-sampleRetention)
	i := 0
	for i+1 < len(p.samples) && !p.samples[i+1].at.After(cutoff) {
		i++
	}
	p.samples = p.samples[i:]
}
