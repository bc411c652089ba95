package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/twinshot/internal/harness"
)

// ScenarioCheck is the validation outcome for one scenario file.
type ScenarioCheck struct {
	File  string `json:"file"`
	Name  string `json:"name,omitempty"`
	Steps int    `json:"steps,omitempty"`
	Error string `json:"error,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool            `json:"valid"`
	Scenarios []ScenarioCheck `json:"scenarios"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario-file-or-dir>",
		Short: "Validate scenario files without running them",
		Long: `Validate scenario files without starting a browser.

Every file is checked against the scenario schema and the step rules, and
every problem is reported rather than stopping at the first. Hosts are not
required here since they may be supplied to 'twinshot run' as flags.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	files, err := harness.ScenarioFiles(path)
	if err != nil {
		return out.Fail(ExitCommandError, CodeInvalidScenario, "failed to find scenarios", err)
	}

	result := ValidationResult{Valid: true, Scenarios: make([]ScenarioCheck, 0, len(files))}
	seen := make(map[string]string, len(files))
	for _, f := range files {
		check := ScenarioCheck{File: f}

		sc, err := harness.LoadScenario(f)
		switch {
		case err != nil:
			check.Error = err.Error()
		case seen[sc.Name] != "":
			check.Name = sc.Name
			check.Error = fmt.Sprintf("duplicate scenario name %q (also in %s)", sc.Name, seen[sc.Name])
		default:
			check.Name = sc.Name
			check.Steps = len(sc.Steps)
			seen[sc.Name] = f
		}

		if check.Error != "" {
			result.Valid = false
		}
		result.Scenarios = append(result.Scenarios, check)
	}

	if out.JSON() {
		var cliErr *CLIError
		if !result.Valid {
			cliErr = &CLIError{Code: CodeInvalidScenario, Message: "validation failed"}
		}
		if err := out.Respond(result, cliErr); err != nil {
			return err
		}
	} else {
		outputValidateText(out, result)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}

func outputValidateText(out *OutputFormatter, result ValidationResult) {
	w := out.Writer
	invalid := 0
	for _, c := range result.Scenarios {
		if c.Error != "" {
			invalid++
			fmt.Fprintf(w, "✗ %s\n", c.File)
			fmt.Fprintf(w, "  %s\n", c.Error)
			continue
		}
		fmt.Fprintf(w, "✓ %s (%d steps)\n", c.Name, c.Steps)
		if out.Verbose {
			fmt.Fprintf(w, "  %s\n", c.File)
		}
	}

	fmt.Fprintln(w)
	if invalid > 0 {
		fmt.Fprintf(w, "✗ %d of %d scenario file(s) invalid\n", invalid, len(result.Scenarios))
		return
	}
	fmt.Fprintf(w, "✓ All %d scenario(s) valid\n", len(result.Scenarios))
}
