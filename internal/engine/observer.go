package engine

import "time"

// StepEvent describes one finished step run.
type StepEvent struct {
	Pass     Pass
	Index    int
	Step     Step
	Duration time.Duration

	// Err is nil when the step succeeded.
	Err error
}

// Comparison is the outcome of one test-pass diff, pass or fail.
type Comparison struct {
	Name        string
	Differences int
	Total       int
	Percentage  float64
	Threshold   float64
	BasePath    string
	TestPath    string
	DiffPath    string
	Passed      bool
}

// Observer receives execution events. Observers must not block; they run
// on the executing goroutine between steps.
type Observer interface {
	StepFinished(StepEvent)
	Compared(Comparison)
}

// nopObserver discards events.
type nopObserver struct{}

func (nopObserver) StepFinished(StepEvent) {}
func (nopObserver) Compared(Comparison)    {}

// multiObserver fans events out in order.
type multiObserver []Observer

func (m multiObserver) StepFinished(e StepEvent) {
	for _, o := range m {
		o.StepFinished(e)
	}
}

func (m multiObserver) Compared(c Comparison) {
	for _, o := range m {
		o.Compared(c)
	}
}

// Observers combines observers, skipping nils.
func Observers(obs ...Observer) Observer {
	var out multiObserver
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	switch len(out) {
	case 0:
		return nopObserver{}
	case 1:
		return out[0]
	default:
		return out
	}
}
