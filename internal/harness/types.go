package harness

import "github.com/roach88/twinshot/internal/engine"

// TraceEvent is one finished step as it appears in a result trace.
type TraceEvent struct {
	Seq    int    `json:"seq"`
	Pass   string `json:"pass"`
	Index  int    `json:"index"`
	Action string `json:"action"`
	Error  string `json:"error,omitempty"`
}

// Result is the outcome of running one scenario.
type Result struct {
	// Scenario is the scenario's name.
	Scenario string `json:"scenario"`

	// Pass is true if every step ran and every capture was within its
	// threshold.
	Pass bool `json:"pass"`

	// Errors holds failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Trace lists every finished step, base pass first.
	Trace []TraceEvent `json:"trace"`

	// Comparisons lists every judged capture in execution order.
	Comparisons []engine.Comparison `json:"comparisons"`

	// Profile holds phase totals in milliseconds.
	Profile map[string]int64 `json:"profile"`

	// Err is the error that failed the scenario, for errors.As inspection.
	Err error `json:"-"`
}

// NewResult creates a new passing result.
func NewResult(scenario string) *Result {
	return &Result{
		Scenario:    scenario,
		Pass:        true,
		Errors:      []string{},
		Trace:       []TraceEvent{},
		Comparisons: []engine.Comparison{},
		Profile:     map[string]int64{},
	}
}

// AddError records a failure and marks the result as failed.
// The first error is kept in Err.
func (r *Result) AddError(err error) {
	if r.Err == nil {
		r.Err = err
	}
	r.Errors = append(r.Errors, err.Error())
	r.Pass = false
}

// Failed returns the comparisons that exceeded their threshold.
func (r *Result) Failed() []engine.Comparison {
	var out []engine.Comparison
	for _, c := range r.Comparisons {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

// traceObserver collects engine events into a Result.
type traceObserver struct {
	result *Result
}

func (o *traceObserver) StepFinished(e engine.StepEvent) {
	ev := TraceEvent{
		Seq:    len(o.result.Trace) + 1,
		Pass:   e.Pass.String(),
		Index:  e.Index,
		Action: e.Step.Describe(),
	}
	if e.Err != nil {
		ev.Error = e.Err.Error()
	}
	o.result.Trace = append(o.result.Trace, ev)
}

func (o *traceObserver) Compared(c engine.Comparison) {
	o.result.Comparisons = append(o.result.Comparisons, c)
}
