package store

import (
	"time"

	"github.com/roach88/twinshot/internal/engine"
)

// Run is one executed scenario.
type Run struct {
	ID       string
	Scenario string
	BaseHost string
	TestHost string
	Options  engine.Options

	StartedAt time.Time

	// Finished is false while the scenario is still executing, or if the
	// process died before FinishRun.
	Finished   bool
	FinishedAt time.Time
	Passed     bool
	Error      string
}

// StepRecord is one finished step as the executor reported it.
type StepRecord struct {
	Seq        int
	Pass       string
	Index      int
	Action     string
	DurationMS int64
	Error      string
}

// RunReport is a run with everything recorded under it.
type RunReport struct {
	Run         Run
	Steps       []StepRecord
	Comparisons []engine.Comparison
	Profile     map[string]int64
}

// Failed returns the comparisons that exceeded their threshold.
func (r RunReport) Failed() []engine.Comparison {
	var out []engine.Comparison
	for _, c := range r.Comparisons {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

// Report is the full content of a ledger file, runs in execution order.
type Report struct {
	Runs []RunReport
}

// Passed reports whether every run finished and passed.
func (r Report) Passed() bool {
	for _, run := range r.Runs {
		if !run.Run.Finished || !run.Run.Passed {
			return false
		}
	}
	return true
}
