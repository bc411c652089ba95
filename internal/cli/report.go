package cli

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/twinshot/internal/store"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Database string
}

// ReportRun is one ledger run in JSON output.
type ReportRun struct {
	ID         string           `json:"id"`
	Scenario   string           `json:"scenario"`
	BaseHost   string           `json:"base_host"`
	TestHost   string           `json:"test_host"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	Passed     bool             `json:"passed"`
	Error      string           `json:"error,omitempty"`
	Steps      int              `json:"steps"`
	Captures   []CaptureResult  `json:"captures"`
	Profile    map[string]int64 `json:"profile"`
}

// ReportResult is the JSON payload of the report command.
type ReportResult struct {
	Runs   []ReportRun `json:"runs"`
	Passed bool        `json:"passed"`
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the ledger of the last run",
		Long: `Print every scenario recorded in a run ledger written by 'twinshot run --db'.

Exits 1 when any recorded run failed or never finished, so the command can
gate CI on a ledger produced elsewhere.

Examples:
  twinshot report --db ./twinshot.db
  twinshot report --db ./twinshot.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the run ledger (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runReport(opts *ReportOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	// Open would create a fresh ledger; a missing file is a user error.
	if _, err := os.Stat(opts.Database); err != nil {
		return out.Fail(ExitCommandError, CodeLedger, fmt.Sprintf("ledger not found: %s", opts.Database), err)
	}

	ledger, err := store.Open(opts.Database)
	if err != nil {
		return out.Fail(ExitCommandError, CodeLedger, "failed to open ledger", err)
	}
	defer ledger.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	report, err := ledger.ReadReport(ctx)
	if err != nil {
		return out.Fail(ExitCommandError, CodeLedger, "failed to read ledger", err)
	}

	if out.JSON() {
		return outputReportJSON(out, report)
	}
	return outputReportText(out, report)
}

func toReportRun(rr store.RunReport) ReportRun {
	run := ReportRun{
		ID:        rr.Run.ID,
		Scenario:  rr.Run.Scenario,
		BaseHost:  rr.Run.BaseHost,
		TestHost:  rr.Run.TestHost,
		StartedAt: rr.Run.StartedAt,
		Passed:    rr.Run.Finished && rr.Run.Passed,
		Error:     rr.Run.Error,
		Steps:     len(rr.Steps),
		Captures:  make([]CaptureResult, 0, len(rr.Comparisons)),
		Profile:   rr.Profile,
	}
	if rr.Run.Finished {
		finished := rr.Run.FinishedAt
		run.FinishedAt = &finished
	}
	for _, c := range rr.Comparisons {
		run.Captures = append(run.Captures, CaptureResult{
			Name:       c.Name,
			Percentage: c.Percentage,
			Threshold:  c.Threshold,
			Passed:     c.Passed,
			DiffPath:   c.DiffPath,
		})
	}
	return run
}

func outputReportJSON(out *OutputFormatter, report store.Report) error {
	result := ReportResult{
		Runs:   make([]ReportRun, 0, len(report.Runs)),
		Passed: report.Passed(),
	}
	for _, rr := range report.Runs {
		result.Runs = append(result.Runs, toReportRun(rr))
	}

	var cliErr *CLIError
	if !result.Passed {
		cliErr = &CLIError{Code: CodeRunFailed, Message: "ledger records failed runs"}
	}
	if err := out.Respond(result, cliErr); err != nil {
		return err
	}
	if !result.Passed {
		return NewExitError(ExitFailure, "ledger records failed runs")
	}
	return nil
}

func outputReportText(out *OutputFormatter, report store.Report) error {
	w := out.Writer

	if len(report.Runs) == 0 {
		fmt.Fprintln(w, "Ledger is empty.")
		return nil
	}

	failed := 0
	for i, rr := range report.Runs {
		run := toReportRun(rr)
		if !run.Passed {
			failed++
		}

		suffix := ""
		if run.FinishedAt == nil {
			suffix = " (unfinished)"
		}
		fmt.Fprintf(w, "%s %s [run %d of %d]%s\n", mark(run.Passed), run.Scenario, i+1, len(report.Runs), suffix)
		fmt.Fprintf(w, "  base: %s\n", run.BaseHost)
		fmt.Fprintf(w, "  test: %s\n", run.TestHost)
		fmt.Fprintf(w, "  started: %s\n", run.StartedAt.UTC().Format(time.RFC3339))
		if run.FinishedAt != nil {
			fmt.Fprintf(w, "  finished: %s\n", run.FinishedAt.UTC().Format(time.RFC3339))
		}
		fmt.Fprintf(w, "  steps: %d\n", run.Steps)
		if out.Verbose {
			for _, s := range rr.Steps {
				fmt.Fprintf(w, "    %s %d %s (%dms)", s.Pass, s.Index, s.Action, s.DurationMS)
				if s.Error != "" {
					fmt.Fprintf(w, ": %s", s.Error)
				}
				fmt.Fprintln(w)
			}
		}
		for _, c := range run.Captures {
			fmt.Fprintf(w, "  %s %s\n", mark(c.Passed), formatCapture(c.Name, c.Percentage, c.Threshold))
			if !c.Passed {
				fmt.Fprintf(w, "    diff: %s\n", c.DiffPath)
			}
		}
		if len(run.Profile) > 0 {
			fmt.Fprintf(w, "  profile: %s\n", formatProfile(run.Profile))
		}
		if run.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", run.Error)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Ledger Summary: %d passed, %d failed, %d total\n",
		len(report.Runs)-failed, failed, len(report.Runs))

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d run(s) failed", failed))
	}
	return nil
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

// formatCapture renders a capture verdict like "home 0.0000% (threshold 0.2%)".
func formatCapture(name string, percentage, threshold float64) string {
	return fmt.Sprintf("%s %.4f%% (threshold %g%%)", name, percentage, threshold)
}

// formatProfile renders phase totals sorted by phase name.
func formatProfile(profile map[string]int64) string {
	phases := make([]string, 0, len(profile))
	for phase := range profile {
		phases = append(phases, phase)
	}
	slices.Sort(phases)

	parts := make([]string, 0, len(phases))
	for _, phase := range phases {
		parts = append(parts, fmt.Sprintf("%s=%dms", phase, profile[phase]))
	}
	return strings.Join(parts, " ")
}
