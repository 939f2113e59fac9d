package testutil

import (
	"sync"
	"time"
)

// StubProgress is a ProgressReporter whose readings are set by the test.
type StubProgress struct {
	mu       sync.Mutex
	progress int
	speed    float64
	position int64
	start    time.Time
}

// NewStubProgress creates a StubProgress at 0% that started at start.
func NewStubProgress(start time.Time) *StubProgress {
	return &StubProgress{start: start}
}

// Set updates the percentage, speed and byte position reported.
func (p *StubProgress) Set(progress int, speed float64, position int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress = progress
	p.speed = speed
	p.position = position
}

func (p *StubProgress) Progress() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

func (p *StubProgress) Speed(time.Duration) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speed
}

func (p *StubProgress) Position() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

func (p *StubProgress) StartTime() time.Time {
	return p.start
}
