package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// State is the execution state of a Harness.
type State int

const (
	// StateIdle means no Execute is running.
	StateIdle State = iota
	// StateRunningBase means Execute is traversing the queue for PassBase.
	StateRunningBase
	// StateRunningTest means Execute is traversing the queue for PassTest.
	StateRunningTest
	// StateFailed means the last Execute stopped on an error.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunningBase:
		return "running_base"
	case StateRunningTest:
		return "running_test"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func runningState(p Pass) State {
	if p == PassTest {
		return StateRunningTest
	}
	return StateRunningBase
}

// Config holds everything needed to construct a Harness.
type Config struct {
	// BaseHost and TestHost are prefixed to every goto path,
	// e.g. "https://example.com".
	BaseHost string
	TestHost string

	// Driver is the browser session. Required.
	Driver Driver

	// Differ compares artifacts. Required.
	Differ Differ

	// Options are the harness-wide settings. Use DefaultOptions() as a base.
	Options Options

	// ArtifactDir is where screenshots and diffs are written.
	// Defaults to DefaultArtifactDir().
	ArtifactDir string

	// Clock defaults to SystemClock.
	Clock Clock

	// Logger defaults to a discarding logger.
	Logger *slog.Logger

	// Observer receives step and comparison events. Optional.
	Observer Observer
}

// Harness records a queue of steps and replays it against two hosts.
//
// A Harness is meant for one scenario. Record steps, call Execute (as many
// times as there are recorded batches), then call End exactly once.
type Harness struct {
	baseHost string
	testHost string

	driver     Driver
	comparator *Comparator
	profiler   *Profiler
	clock      Clock
	artifacts  Artifacts
	logger     *slog.Logger
	observer   Observer

	threshold float64
	queue     *Queue

	mu    sync.Mutex
	state State
	ended bool
}

// New validates cfg and creates a Harness.
func New(cfg Config) (*Harness, error) {
	if strings.TrimSpace(cfg.BaseHost) == "" {
		return nil, fmt.Errorf("base host is required")
	}
	if strings.TrimSpace(cfg.TestHost) == "" {
		return nil, fmt.Errorf("test host is required")
	}
	if cfg.Driver == nil {
		return nil, fmt.Errorf("driver is required")
	}
	if cfg.Differ == nil {
		return nil, fmt.Errorf("differ is required")
	}
	if err := cfg.Options.Validate(); err != nil {
		return nil, err
	}

	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = discardLogger()
	}

	profiler := NewProfiler(clock)

	return &Harness{
		baseHost:   cfg.BaseHost,
		testHost:   cfg.TestHost,
		driver:     cfg.Driver,
		comparator: NewComparator(cfg.Differ, profiler, logger),
		profiler:   profiler,
		clock:      clock,
		artifacts:  NewArtifacts(cfg.ArtifactDir),
		logger:     logger,
		observer:   Observers(cfg.Observer),
		threshold:  cfg.Options.Threshold,
		queue:      NewQueue(),
		state:      StateIdle,
	}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Goto records a navigation to path on the pass's host.
func (h *Harness) Goto(path string) *Harness {
	h.queue.Append(Step{Kind: StepGoto, Path: path})
	return h
}

// GotoAndScreenshot records a navigation to path followed by a capture
// named name at the default threshold.
func (h *Harness) GotoAndScreenshot(path, name string) *Harness {
	h.queue.Append(
		Step{Kind: StepGoto, Path: path},
		Step{Kind: StepScreenshot, Name: name, Threshold: h.threshold},
	)
	return h
}

// Navigate records a custom interaction.
func (h *Harness) Navigate(fn InteractFunc) *Harness {
	h.queue.Append(Step{Kind: StepNavigate, Interact: fn})
	return h
}

// Screenshot records a capture at the default threshold.
func (h *Harness) Screenshot(name string) *Harness {
	return h.ScreenshotWithThreshold(name, h.threshold)
}

// ScreenshotWithThreshold records a capture judged against threshold.
// The threshold is used as given; 0 allows no difference at all.
func (h *Harness) ScreenshotWithThreshold(name string, threshold float64) *Harness {
	h.queue.Append(Step{Kind: StepScreenshot, Name: name, Threshold: threshold})
	return h
}

// CaptureWithDefaultThreshold is Navigate(fn).Screenshot(name).
func (h *Harness) CaptureWithDefaultThreshold(name string, fn InteractFunc) *Harness {
	return h.Navigate(fn).Screenshot(name)
}

// CaptureWithThreshold is Navigate(fn).ScreenshotWithThreshold(name, threshold).
func (h *Harness) CaptureWithThreshold(name string, threshold float64, fn InteractFunc) *Harness {
	return h.Navigate(fn).ScreenshotWithThreshold(name, threshold)
}

// Pending returns a copy of the queued steps.
func (h *Harness) Pending() []Step {
	return h.queue.Snapshot()
}

// Discard drops every queued step. Use it to abandon a queue that failed.
func (h *Harness) Discard() {
	h.queue.Discard()
}

// State returns the current execution state.
func (h *Harness) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Profiler returns the harness's profiler.
func (h *Harness) Profiler() *Profiler {
	return h.profiler
}

// Artifacts returns the artifact layout the harness writes to.
func (h *Harness) Artifacts() Artifacts {
	return h.artifacts
}

// Execute replays the queue against the base host and then the test host.
//
// Steps run strictly in recorded order, and the test pass never starts
// before the base pass has finished. The first error stops everything:
// remaining steps and the test pass are skipped and the queue is kept so
// the caller can inspect it, retry, or Discard it. On success the executed
// steps are removed from the queue.
//
// Errors are *StepError for infrastructure failures, *ThresholdExceededError
// when a capture differs too much, or a wrapped ctx.Err() when ctx ends
// between steps.
func (h *Harness) Execute(ctx context.Context) error {
	h.mu.Lock()
	if h.ended {
		h.mu.Unlock()
		return ErrEnded
	}
	if h.state == StateRunningBase || h.state == StateRunningTest {
		h.mu.Unlock()
		return ErrBusy
	}
	h.state = StateRunningBase
	h.mu.Unlock()

	steps := h.queue.Snapshot()

	for _, pass := range passOrder {
		h.setState(runningState(pass))
		h.logger.Debug("pass started", "pass", pass, "steps", len(steps))

		for i, step := range steps {
			if err := ctx.Err(); err != nil {
				h.setState(StateFailed)
				return fmt.Errorf("%s pass interrupted before step %d: %w", pass, i, err)
			}

			start := h.clock.Now()
			err := h.runStep(ctx, pass, i, step)
			h.observer.StepFinished(StepEvent{
				Pass:     pass,
				Index:    i,
				Step:     step,
				Duration: h.clock.Now().Sub(start),
				Err:      err,
			})
			if err != nil {
				h.setState(StateFailed)
				h.logger.Error("step failed",
					"pass", pass,
					"step", i,
					"action", step.Describe(),
					"error", err,
				)
				return err
			}
		}

		h.logger.Debug("pass completed", "pass", pass)
	}

	h.queue.Drain(len(steps))
	h.setState(StateIdle)
	return nil
}

func (h *Harness) setState(s State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = s
}

// End closes the driver session and logs the accumulated profile.
// Calling End more than once is a no-op.
func (h *Harness) End(ctx context.Context) error {
	h.mu.Lock()
	if h.ended {
		h.mu.Unlock()
		return nil
	}
	if h.state == StateRunningBase || h.state == StateRunningTest {
		h.mu.Unlock()
		return ErrBusy
	}
	h.ended = true
	h.mu.Unlock()

	closeErr := h.driver.Close(ctx)

	summary := h.profiler.Summary()
	h.logger.Info("profile",
		"goto_ms", summary[PhaseGoto],
		"navigate_ms", summary[PhaseNavigate],
		"screenshot_ms", summary[PhaseScreenshot],
		"diff_ms", summary[PhaseDiff],
	)

	if closeErr != nil {
		return fmt.Errorf("close driver: %w", closeErr)
	}
	return nil
}
