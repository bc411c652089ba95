package engine

import (
	"errors"
	"fmt"
	"math"
)

// Sentinel errors for harness lifecycle misuse.
var (
	// ErrBusy is returned when Execute is called while another Execute on
	// the same harness is still running.
	ErrBusy = errors.New("harness is already executing")

	// ErrEnded is returned when Execute is called after End.
	ErrEnded = errors.New("harness has ended")
)

// ErrorKind categorizes step failures.
type ErrorKind string

const (
	// KindNavigation indicates the driver failed to load a destination.
	KindNavigation ErrorKind = "NAVIGATION_ERROR"

	// KindInteraction indicates a navigate callback failed.
	KindInteraction ErrorKind = "INTERACTION_ERROR"

	// KindCapture indicates settling or screenshot capture failed.
	KindCapture ErrorKind = "CAPTURE_ERROR"

	// KindDiff indicates the differ could not compare two artifacts.
	KindDiff ErrorKind = "DIFF_COMPUTATION_ERROR"
)

// StepError is an infrastructure failure raised by a step runner.
//
// It identifies where execution stopped (pass, queue index, step) and
// wraps the collaborator's error. Threshold failures are reported as
// *ThresholdExceededError instead.
type StepError struct {
	// Kind identifies the error category.
	Kind ErrorKind

	// Pass is the pass the step ran in.
	Pass Pass

	// Index is the step's position in the queue.
	Index int

	// Step is the failing step.
	Step Step

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s pass, step %d (%s): %v", e.Kind, e.Pass, e.Index, e.Step.Describe(), e.Err)
}

// Unwrap exposes the underlying error to errors.Is and errors.As.
func (e *StepError) Unwrap() error {
	return e.Err
}

// ThresholdExceededError reports a capture whose diff percentage is above
// its threshold. This is the test-failure signal, as opposed to the
// infrastructure failures carried by StepError.
type ThresholdExceededError struct {
	// Name is the capture name.
	Name string

	// Percentage is the computed difference, 0-100.
	Percentage float64

	// Threshold is the limit the capture was judged by.
	Threshold float64

	// DiffPath is the diff artifact to open for triage.
	DiffPath string
}

// Error implements the error interface.
func (e *ThresholdExceededError) Error() string {
	return fmt.Sprintf("%q: %s%% different (> %s%% threshold), open %s",
		e.Name, formatPercent(e.Percentage), formatPercent(e.Threshold), e.DiffPath)
}

// formatPercent truncates to four decimal places and drops trailing zeros.
func formatPercent(p float64) string {
	return fmt.Sprintf("%v", math.Floor(p*10000)/10000)
}

func newStepError(kind ErrorKind, pass Pass, index int, step Step, err error) *StepError {
	return &StepError{Kind: kind, Pass: pass, Index: index, Step: step, Err: err}
}

func isKind(err error, kind ErrorKind) bool {
	var se *StepError
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// IsNavigationError reports whether err is a navigation failure.
// Uses errors.As to handle wrapped errors.
func IsNavigationError(err error) bool {
	return isKind(err, KindNavigation)
}

// IsInteractionError reports whether err is a failed navigate callback.
func IsInteractionError(err error) bool {
	return isKind(err, KindInteraction)
}

// IsCaptureError reports whether err is a settle or screenshot failure.
func IsCaptureError(err error) bool {
	return isKind(err, KindCapture)
}

// IsDiffError reports whether err is a diff computation failure.
func IsDiffError(err error) bool {
	return isKind(err, KindDiff)
}

// IsThresholdError reports whether err is a threshold failure.
func IsThresholdError(err error) bool {
	var te *ThresholdExceededError
	return errors.As(err, &te)
}
