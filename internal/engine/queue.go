package engine

import (
	"context"
	"fmt"
	"sync"
)

// Pass identifies which host a traversal of the queue runs against.
type Pass int

const (
	// PassBase is the first traversal. It writes the reference artifacts.
	PassBase Pass = iota + 1
	// PassTest is the second traversal. It writes and compares.
	PassTest
)

// passOrder is the fixed order Execute traverses the queue in.
var passOrder = [...]Pass{PassBase, PassTest}

// String returns "base" or "test". The value doubles as the artifact role.
func (p Pass) String() string {
	switch p {
	case PassBase:
		return "base"
	case PassTest:
		return "test"
	default:
		return fmt.Sprintf("pass(%d)", int(p))
	}
}

// InteractFunc is a caller-supplied interaction run by a navigate step.
// It receives the pass so it can act differently per host.
type InteractFunc func(ctx context.Context, d Driver, pass Pass) error

// StepKind distinguishes step variants.
type StepKind int

const (
	// StepGoto loads Path on the pass's host.
	StepGoto StepKind = iota + 1
	// StepNavigate runs Interact between two settle delays.
	StepNavigate
	// StepScreenshot captures Name and, on PassTest, compares it.
	StepScreenshot
)

// String returns the lower-case kind name used in logs and traces.
func (k StepKind) String() string {
	switch k {
	case StepGoto:
		return "goto"
	case StepNavigate:
		return "navigate"
	case StepScreenshot:
		return "screenshot"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Step is one recorded action. Only the fields for its Kind are set.
//
// Threshold is resolved when the step is recorded, so a screenshot step
// always carries the threshold it will be judged by.
type Step struct {
	Kind StepKind

	// Path is the host-relative destination (StepGoto).
	Path string

	// Interact is the interaction callback (StepNavigate).
	Interact InteractFunc

	// Name is the capture name (StepScreenshot).
	Name string

	// Threshold is the maximum allowed diff percentage (StepScreenshot).
	Threshold float64
}

// Describe returns a short human-readable label for logs.
func (s Step) Describe() string {
	switch s.Kind {
	case StepGoto:
		return "goto " + s.Path
	case StepNavigate:
		return "navigate"
	case StepScreenshot:
		return "screenshot " + s.Name
	default:
		return s.Kind.String()
	}
}

// Queue is the ordered list of recorded steps.
//
// Steps are appended by the recording API and read by Execute. The queue
// never reorders or edits a step; it is emptied as a whole by Drain or
// Discard.
//
// Thread-safety: the mutex lets recording and inspection happen from any
// goroutine, but a Harness only executes one snapshot at a time.
type Queue struct {
	mu    sync.Mutex
	steps []Step
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{steps: make([]Step, 0, 16)}
}

// Append adds steps to the back of the queue, preserving their order.
func (q *Queue) Append(steps ...Step) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.steps = append(q.steps, steps...)
}

// Snapshot returns a copy of the queued steps in order.
func (q *Queue) Snapshot() []Step {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Step, len(q.steps))
	copy(out, q.steps)
	return out
}

// Len returns the number of queued steps.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.steps)
}

// Drain removes the first n steps. Execute calls it with the length of the
// snapshot it ran, so steps recorded while it was running stay queued.
func (q *Queue) Drain(n int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n > len(q.steps) {
		n = len(q.steps)
	}
	rest := copy(q.steps, q.steps[n:])
	// Zero the vacated tail so drained closures can be collected.
	clear(q.steps[rest:])
	q.steps = q.steps[:rest]
}

// Discard empties the queue.
func (q *Queue) Discard() {
	q.mu.Lock()
	defer q.mu.Unlock()
	clear(q.steps)
	q.steps = q.steps[:0]
}
