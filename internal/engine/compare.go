package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
)

// Comparator diffs a capture's base and test artifacts and applies the
// threshold policy.
type Comparator struct {
	differ   Differ
	profiler *Profiler
	logger   *slog.Logger
}

// NewComparator creates a comparator. profiler and logger may be nil.
func NewComparator(differ Differ, profiler *Profiler, logger *slog.Logger) *Comparator {
	if logger == nil {
		logger = discardLogger()
	}
	return &Comparator{differ: differ, profiler: profiler, logger: logger}
}

// Compare diffs basePath and testPath into diffPath.
//
// The percentage is differences/total*100 and the capture fails only when
// it is strictly greater than threshold, so a difference equal to the
// threshold passes. A threshold of 0 therefore tolerates no difference.
//
// The returned Comparison is populated whenever the differ succeeded,
// including when the threshold is exceeded. The error is a
// *ThresholdExceededError for threshold failures and a plain wrapped error
// when the differ itself failed.
func (c *Comparator) Compare(ctx context.Context, name, basePath, testPath, diffPath string, threshold float64) (Comparison, error) {
	cmp := Comparison{
		Name:      name,
		Threshold: threshold,
		BasePath:  basePath,
		TestPath:  testPath,
		DiffPath:  diffPath,
	}

	if c.profiler != nil {
		c.profiler.Start(PhaseDiff)
	}
	res, err := c.differ.Diff(ctx, basePath, testPath, diffPath)
	if c.profiler != nil {
		c.profiler.Stop(PhaseDiff)
	}
	if err != nil {
		return cmp, fmt.Errorf("diff %q: %w", name, err)
	}
	if res.Total <= 0 {
		return cmp, fmt.Errorf("diff %q: image has no pixels", name)
	}

	cmp.Differences = res.Differences
	cmp.Total = res.Total
	cmp.Percentage = float64(res.Differences) / float64(res.Total) * 100

	c.logger.Debug("capture diffed",
		"capture", name,
		"percentage", math.Abs(cmp.Percentage),
		"threshold", threshold,
		"diff_path", diffPath,
	)

	// Judged on the signed ratio. Counts are non-negative, so this only
	// differs from the logged magnitude if a differ misreports.
	if cmp.Percentage > threshold {
		return cmp, &ThresholdExceededError{
			Name:       name,
			Percentage: cmp.Percentage,
			Threshold:  threshold,
			DiffPath:   diffPath,
		}
	}

	cmp.Passed = true
	return cmp, nil
}
