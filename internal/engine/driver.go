package engine

import (
	"context"
	"time"

	"github.com/roach88/twinshot/internal/imagediff"
)

// Driver is the browser session a Harness drives.
//
// Goto, WaitIdle and Screenshot are used by the step runners. Click, Fill
// and Evaluate are the interaction surface handed to InteractFunc
// callbacks. Every method may block and may fail.
type Driver interface {
	// Goto loads url and returns once the page has loaded.
	Goto(ctx context.Context, url string) error

	// WaitIdle waits at most timeout for the page to settle.
	// Running out of time is not an error.
	WaitIdle(ctx context.Context, timeout time.Duration) error

	// Screenshot writes a PNG of the current viewport to path.
	Screenshot(ctx context.Context, path string) error

	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error

	// Fill replaces the value of the input matching selector.
	Fill(ctx context.Context, selector, text string) error

	// Evaluate runs script in the page.
	Evaluate(ctx context.Context, script string) error

	// Close tears the session down.
	Close(ctx context.Context) error
}

// Differ compares two PNG artifacts and writes a diff artifact.
type Differ interface {
	// Diff compares basePath and testPath, writes a visual diff to
	// diffPath and reports how many pixels differ out of the total.
	Diff(ctx context.Context, basePath, testPath, diffPath string) (imagediff.Result, error)
}

// DifferFunc adapts a function to the Differ interface.
type DifferFunc func(ctx context.Context, basePath, testPath, diffPath string) (imagediff.Result, error)

// Diff calls f.
func (f DifferFunc) Diff(ctx context.Context, basePath, testPath, diffPath string) (imagediff.Result, error) {
	return f(ctx, basePath, testPath, diffPath)
}
