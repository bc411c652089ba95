package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/roach88/twinshot/internal/imagediff"
)

// DiffCall is one recorded FakeDiffer invocation.
type DiffCall struct {
	BasePath string
	TestPath string
	DiffPath string
}

// FakeDiffer returns canned results without reading images.
//
// Results are looked up by the diff artifact's file name
// (e.g. "home-diff.png"), falling back to Default. The diff file is
// always created, mirroring a real differ.
type FakeDiffer struct {
	Log     *CallLog
	Default imagediff.Result
	Results map[string]imagediff.Result
	Err     error

	mu    sync.Mutex
	calls []DiffCall
}

// NewFakeDiffer creates a differ reporting def for every capture.
func NewFakeDiffer(log *CallLog, def imagediff.Result) *FakeDiffer {
	return &FakeDiffer{
		Log:     log,
		Default: def,
		Results: make(map[string]imagediff.Result),
	}
}

// Diff records the call and returns the configured result.
func (d *FakeDiffer) Diff(ctx context.Context, basePath, testPath, diffPath string) (imagediff.Result, error) {
	d.Log.Add("diff " + filepath.Base(basePath) + " " + filepath.Base(testPath) + " " + filepath.Base(diffPath))

	d.mu.Lock()
	d.calls = append(d.calls, DiffCall{BasePath: basePath, TestPath: testPath, DiffPath: diffPath})
	d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return imagediff.Result{}, err
	}
	if d.Err != nil {
		return imagediff.Result{}, d.Err
	}
	if err := os.WriteFile(diffPath, nil, 0o644); err != nil {
		return imagediff.Result{}, err
	}

	if res, ok := d.Results[filepath.Base(diffPath)]; ok {
		return res, nil
	}
	return d.Default, nil
}

// Calls returns the recorded calls in order.
func (d *FakeDiffer) Calls() []DiffCall {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]DiffCall, len(d.calls))
	copy(out, d.calls)
	return out
}
