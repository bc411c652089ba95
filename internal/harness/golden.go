package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot is the machine-independent part of a Result: artifact
// paths and timings are left out so snapshots are stable across hosts.
type TraceSnapshot struct {
	ScenarioName string            `json:"scenario_name"`
	Pass         bool              `json:"pass"`
	Errors       []string          `json:"errors,omitempty"`
	Trace        []TraceEvent      `json:"trace"`
	Comparisons  []ComparisonEntry `json:"comparisons"`
}

// ComparisonEntry is a comparison without paths.
type ComparisonEntry struct {
	Name        string  `json:"name"`
	Differences int     `json:"differences"`
	Total       int     `json:"total"`
	Percentage  float64 `json:"percentage"`
	Threshold   float64 `json:"threshold"`
	Passed      bool    `json:"passed"`
}

// Snapshot builds the snapshot of result.
func Snapshot(scenarioName string, result *Result) TraceSnapshot {
	snap := TraceSnapshot{
		ScenarioName: scenarioName,
		Pass:         result.Pass,
		Errors:       result.Errors,
		Trace:        result.Trace,
		Comparisons:  make([]ComparisonEntry, len(result.Comparisons)),
	}
	for i, c := range result.Comparisons {
		snap.Comparisons[i] = ComparisonEntry{
			Name:        c.Name,
			Differences: c.Differences,
			Total:       c.Total,
			Percentage:  c.Percentage,
			Threshold:   c.Threshold,
			Passed:      c.Passed,
		}
	}
	return snap
}

// AssertGolden compares the result's snapshot against
// testdata/golden/{scenarioName}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := json.MarshalIndent(Snapshot(scenarioName, result), "", "  ")
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
