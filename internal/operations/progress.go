package operations

import (
	"math"
	"sync"

	"neuropipe/internal/processing"
)

// ProgressTracker forwards progress reports for one job. Values are clamped
// to [0, 100]; NaN and values that do not move forward are dropped, so the
// sink only ever sees a strictly increasing sequence.
type ProgressTracker struct {
	mu      sync.Mutex
	current float64
	started bool
	sink    func(percent float64)
}

// NewProgressTracker creates a tracker that forwards to sink. sink may be nil.
func NewProgressTracker(sink func(percent float64)) *ProgressTracker {
	return &ProgressTracker{sink: sink}
}

// Update reports percent and returns whether it was forwarded.
func (p *ProgressTracker) Update(percent float64) bool {
	if math.IsNaN(percent) {
		return false
	}
	percent = math.Max(0, math.Min(100, percent))

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started && percent <= p.current {
		return false
	}
	p.current = percent
	p.started = true
	if p.sink != nil {
		p.sink(percent)
	}
	return true
}

// Current returns the last forwarded value
func (p *ProgressTracker) Current() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Func adapts the tracker to the processor callback signature
func (p *ProgressTracker) Func() processing.ProgressFunc {
	return func(percent float64) { p.Update(percent) }
}
