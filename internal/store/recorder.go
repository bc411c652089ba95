package store

import (
	"context"
	"sync"

	"github.com/roach88/twinshot/internal/engine"
)

// Recorder writes executor events for one run into the ledger.
// It implements engine.Observer.
//
// Observer callbacks cannot fail, so the first write error is kept and
// later events are dropped; check Err once the run is over.
//
// Thread-safety: Recorder is safe for concurrent use via internal mutex.
type Recorder struct {
	store *Store
	runID string

	// ctx bounds every write. Observer callbacks carry no context of their own.
	ctx context.Context

	mu          sync.Mutex
	steps       int
	comparisons int
	err         error
}

var _ engine.Observer = (*Recorder)(nil)

// NewRecorder creates a recorder for runID. The run must already exist.
func (s *Store) NewRecorder(ctx context.Context, runID string) *Recorder {
	return &Recorder{store: s, runID: runID, ctx: ctx}
}

// StepFinished records a finished step.
func (r *Recorder) StepFinished(e engine.StepEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}
	r.steps++
	r.err = r.store.WriteStep(r.ctx, r.runID, r.steps, e)
}

// Compared records a judged capture.
func (r *Recorder) Compared(c engine.Comparison) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}
	r.comparisons++
	r.err = r.store.WriteComparison(r.ctx, r.runID, r.comparisons, c)
}

// Err returns the first write error, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
