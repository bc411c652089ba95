package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/twinshot/internal/engine"
)

// Runtime supplies the collaborators a scenario runs against.
type Runtime struct {
	// Driver is the browser session. Run ends it, closing the driver.
	Driver engine.Driver

	// Differ compares artifacts. Required.
	Differ engine.Differ

	// Overrides win over the scenario file.
	Overrides Overrides

	// ArtifactDir defaults to engine.DefaultArtifactDir().
	ArtifactDir string

	// Clock defaults to engine.SystemClock.
	Clock engine.Clock

	// Logger defaults to a discarding logger.
	Logger *slog.Logger

	// Observer also receives every engine event. Optional.
	Observer engine.Observer
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Resolve hosts and options
// 2. Create an engine harness and record the steps
// 3. Execute both passes
// 4. End the harness (closing the driver) and collect the profile
//
// Step failures and threshold failures make Result.Pass false; the error
// return is reserved for problems that prevent the scenario from running
// at all, such as invalid settings.
func Run(ctx context.Context, scenario *Scenario, rt Runtime) (*Result, error) {
	settings, err := scenario.Settings(rt.Overrides)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
	}

	logger := rt.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("scenario", scenario.Name)

	result := NewResult(scenario.Name)

	h, err := engine.New(engine.Config{
		BaseHost:    settings.BaseHost,
		TestHost:    settings.TestHost,
		Driver:      rt.Driver,
		Differ:      rt.Differ,
		Options:     settings.Options,
		ArtifactDir: rt.ArtifactDir,
		Clock:       rt.Clock,
		Logger:      logger,
		Observer:    engine.Observers(&traceObserver{result: result}, rt.Observer),
	})
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
	}

	if err := scenario.Record(h, rt.Clock); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
	}

	logger.Info("scenario started",
		"base", settings.BaseHost,
		"test", settings.TestHost,
		"steps", len(h.Pending()),
	)

	if err := h.Execute(ctx); err != nil {
		result.AddError(err)
	}
	if err := h.End(ctx); err != nil {
		result.AddError(err)
	}

	result.Profile = h.Profiler().Summary()

	logger.Info("scenario finished",
		"pass", result.Pass,
		"captures", len(result.Comparisons),
		"failed", len(result.Failed()),
	)

	return result, nil
}
