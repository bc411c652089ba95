package engine

import (
	"sync"
	"time"
)

// Profile phase names recorded by the step runners.
const (
	PhaseGoto       = "goto"
	PhaseNavigate   = "navigate"
	PhaseScreenshot = "screenshot"
	PhaseDiff       = "diff"
)

// Profiler accumulates elapsed time per named phase.
//
// Each Harness owns its own Profiler, so independent harnesses can run
// concurrently without sharing totals. Totals only grow; the only way to
// reset them is to construct a new Profiler.
//
// Profiling is diagnostic. Nothing in the engine branches on it.
//
// Thread-safety: all methods are safe for concurrent use.
type Profiler struct {
	clock Clock

	mu     sync.Mutex
	starts map[string]time.Time
	totals map[string]time.Duration
}

// NewProfiler creates an empty profiler reading time from clock.
func NewProfiler(clock Clock) *Profiler {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Profiler{
		clock:  clock,
		starts: make(map[string]time.Time),
		totals: make(map[string]time.Duration),
	}
}

// Start marks the beginning of an interval for name.
// An unfinished earlier Start for the same name is overwritten.
func (p *Profiler) Start(name string) {
	now := p.clock.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.starts[name] = now
}

// Stop closes the open interval for name and adds it to the running total.
// Stop without a matching Start is a no-op.
func (p *Profiler) Stop(name string) {
	now := p.clock.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	start, ok := p.starts[name]
	if !ok {
		return
	}
	delete(p.starts, name)
	p.totals[name] += now.Sub(start)
}

// Total returns the accumulated time for name (zero if never stopped).
func (p *Profiler) Total(name string) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totals[name]
}

// Totals returns a copy of every accumulated phase.
func (p *Profiler) Totals() map[string]time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]time.Duration, len(p.totals))
	for name, d := range p.totals {
		out[name] = d
	}
	return out
}

// Summary returns the accumulated totals in whole milliseconds.
func (p *Profiler) Summary() map[string]int64 {
	totals := p.Totals()
	out := make(map[string]int64, len(totals))
	for name, d := range totals {
		out[name] = d.Milliseconds()
	}
	return out
}
