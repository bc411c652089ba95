package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/twinshot/internal/browser"
	"github.com/roach88/twinshot/internal/engine"
	"github.com/roach88/twinshot/internal/harness"
	"github.com/roach88/twinshot/internal/imagediff"
	"github.com/roach88/twinshot/internal/publish"
	"github.com/roach88/twinshot/internal/store"
)

// DriverOpener launches the browser session for one scenario.
type DriverOpener func(ctx context.Context, name string, opts browser.Options) (engine.Driver, error)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Base      string
	Test      string
	Width     int
	Height    int
	Threshold float64
	Show      bool
	Driver    string
	Out       string
	Database  string
	Filter    string

	// Artifact publishing. Enabled when PublishBucket is set.
	PublishBucket   string
	PublishPrefix   string
	PublishEndpoint string
	PublishRegion   string
	PublishURL      string
	PublishAll      bool

	// OpenDriver overrides browser launching (for testing).
	// If nil, defaults to browser.Open.
	OpenDriver DriverOpener

	// Differ overrides the pixel differ (for testing).
	// If nil, defaults to an exact imagediff.Differ.
	Differ engine.Differ

	// Clock overrides the time source (for testing).
	Clock engine.Clock

	// IDs overrides run ID generation (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs store.IDGenerator

	// Publisher overrides the publisher built from the publish flags
	// (for testing).
	Publisher *publish.Publisher
}

// CaptureResult is one judged capture in the run output.
type CaptureResult struct {
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
	Threshold  float64 `json:"threshold"`
	Passed     bool    `json:"passed"`
	DiffPath   string  `json:"diff_path"`

	Published *publish.Published `json:"published,omitempty"`
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name     string           `json:"name"`
	Pass     bool             `json:"pass"`
	RunID    string           `json:"run_id,omitempty"`
	Captures []CaptureResult  `json:"captures"`
	Errors   []string         `json:"errors,omitempty"`
	Profile  map[string]int64 `json:"profile,omitempty"`
}

// RunResult holds the overall run result.
type RunResult struct {
	Scenarios   []ScenarioResult `json:"scenarios"`
	Passed      int              `json:"passed"`
	Failed      int              `json:"failed"`
	Total       int              `json:"total"`
	ArtifactDir string           `json:"artifact_dir"`
	Database    string           `json:"database,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

// newRunCommand builds the run command around opts so tests can inject
// a driver, differ, clock and ID generator.
func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario-file-or-dir>",
		Short: "Run scenarios against the base and test hosts",
		Long: `Run visual regression scenarios.

Each scenario replays its steps against the base host, then against the
test host, screenshots both and diffs every capture. Flags override the
scenario file, which overrides the built-in defaults.

Exit codes:
  0 - All captures within threshold
  1 - A capture exceeded its threshold or a step failed
  2 - Command error (bad flags, invalid scenario, browser failed to start)

Examples:
  twinshot run ./scenarios --base https://prod.example.com --test http://localhost:3000
  twinshot run ./scenarios/home.yaml --threshold 0.5 --db ./twinshot.db
  twinshot run ./scenarios --filter "checkout-*" --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args[0], cmd)
		},
	}

	defaults := engine.DefaultOptions()
	cmd.Flags().StringVar(&opts.Base, "base", "", "base (reference) host, overrides the scenario file")
	cmd.Flags().StringVar(&opts.Test, "test", "", "test (candidate) host, overrides the scenario file")
	cmd.Flags().IntVar(&opts.Width, "width", defaults.Width, "viewport width in pixels")
	cmd.Flags().IntVar(&opts.Height, "height", defaults.Height, "viewport height in pixels")
	cmd.Flags().Float64Var(&opts.Threshold, "threshold", defaults.Threshold, "default maximum diff percentage per capture")
	cmd.Flags().BoolVar(&opts.Show, "show", false, "show the browser window")
	cmd.Flags().StringVar(&opts.Driver, "driver", browser.NamePlaywright,
		fmt.Sprintf("browser driver (%s)", strings.Join(browser.Names(), "|")))
	cmd.Flags().StringVar(&opts.Out, "out", "", "artifact directory (default <tmp>/twinshot)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "write a run ledger to this SQLite file (recreated each run)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenarios whose name matches this glob")
	cmd.Flags().StringVar(&opts.PublishBucket, "publish-bucket", "", "upload failed captures to this S3 bucket")
	cmd.Flags().StringVar(&opts.PublishPrefix, "publish-prefix", "", "object key prefix for uploads")
	cmd.Flags().StringVar(&opts.PublishEndpoint, "publish-endpoint", "", "S3-compatible endpoint URL (enables path-style addressing)")
	cmd.Flags().StringVar(&opts.PublishRegion, "publish-region", "us-east-1", "S3 region")
	cmd.Flags().StringVar(&opts.PublishURL, "publish-url", "", "public base URL uploads are served from")
	cmd.Flags().BoolVar(&opts.PublishAll, "publish-all", false, "upload every capture, not only failed ones")

	return cmd
}

// overrides collects the flags the user actually set. Unset flags leave
// the scenario file in charge.
func (o *RunOptions) overrides(cmd *cobra.Command) harness.Overrides {
	ov := harness.Overrides{BaseHost: o.Base, TestHost: o.Test}
	flags := cmd.Flags()
	if flags.Changed("width") {
		ov.Options.Width = &o.Width
	}
	if flags.Changed("height") {
		ov.Options.Height = &o.Height
	}
	if flags.Changed("threshold") {
		ov.Options.Threshold = &o.Threshold
	}
	if flags.Changed("show") {
		ov.Options.Show = &o.Show
	}
	return ov
}

func runScenarios(opts *RunOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	if !slices.Contains(browser.Names(), opts.Driver) {
		return out.Fail(ExitCommandError, CodeRunFailed,
			fmt.Sprintf("unknown driver %q", opts.Driver), browser.ErrUnknownDriver)
	}

	scenarios, err := harness.LoadScenarios(path)
	if err != nil {
		return out.Fail(ExitCommandError, CodeInvalidScenario, "failed to load scenarios", err)
	}
	scenarios, err = filterScenarios(scenarios, opts.Filter)
	if err != nil {
		return out.Fail(ExitCommandError, CodeInvalidScenario, "invalid filter pattern", err)
	}

	artifactDir := opts.Out
	if artifactDir == "" {
		artifactDir = engine.DefaultArtifactDir()
	}
	result := RunResult{
		Scenarios:   make([]ScenarioResult, 0, len(scenarios)),
		Total:       len(scenarios),
		ArtifactDir: artifactDir,
		Database:    opts.Database,
	}

	if len(scenarios) == 0 {
		if out.JSON() {
			return out.Respond(result, nil)
		}
		fmt.Fprintln(out.Writer, "No scenarios found.")
		return nil
	}

	// Resolve every scenario up front so a bad host or option fails the
	// command before any browser starts.
	overrides := opts.overrides(cmd)
	settings := make([]harness.Settings, len(scenarios))
	for i, sc := range scenarios {
		st, err := sc.Settings(overrides)
		if err != nil {
			return out.Fail(ExitCommandError, CodeInvalidScenario,
				fmt.Sprintf("scenario %q", sc.Name), err)
		}
		settings[i] = st
	}

	r := newRunner(opts, overrides, artifactDir, logger)

	if opts.Database != "" {
		ledger, err := store.Create(opts.Database)
		if err != nil {
			return out.Fail(ExitCommandError, CodeLedger, "failed to create ledger", err)
		}
		defer func() {
			if closeErr := ledger.Close(); closeErr != nil {
				logger.Error("error closing ledger", "error", closeErr)
			}
		}()
		r.ledger = ledger
	}

	// Use command's context if available (for testing), otherwise create one.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	if r.publisher == nil && opts.PublishBucket != "" {
		pub, err := publish.New(parentCtx, publish.Config{
			Bucket:       opts.PublishBucket,
			Prefix:       opts.PublishPrefix,
			Endpoint:     opts.PublishEndpoint,
			Region:       opts.PublishRegion,
			PublicURL:    opts.PublishURL,
			UsePathStyle: opts.PublishEndpoint != "",
		})
		if err != nil {
			return out.Fail(ExitCommandError, CodeRunFailed, "failed to configure publishing", err)
		}
		r.publisher = pub
	}

	// Setup signal handling for graceful shutdown.
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	for i, sc := range scenarios {
		sr, err := r.run(ctx, sc, settings[i])
		if err != nil {
			return out.Fail(ExitCommandError, CodeRunFailed,
				fmt.Sprintf("scenario %q could not run", sc.Name), err)
		}
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		if !out.JSON() {
			printScenario(out, sr)
		}
	}

	if out.JSON() {
		return outputRunJSON(out, result)
	}
	return outputRunText(out, result)
}

// filterScenarios keeps the scenarios whose name matches pattern.
// An empty pattern keeps everything.
func filterScenarios(scenarios []*harness.Scenario, pattern string) ([]*harness.Scenario, error) {
	if pattern == "" {
		return scenarios, nil
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, err
	}

	kept := make([]*harness.Scenario, 0, len(scenarios))
	for _, sc := range scenarios {
		if ok, _ := filepath.Match(pattern, sc.Name); ok {
			kept = append(kept, sc)
		}
	}
	return kept, nil
}

// runner executes scenarios one at a time, each in its own browser.
type runner struct {
	openDriver  DriverOpener
	driverName  string
	differ      engine.Differ
	clock       engine.Clock
	ids         store.IDGenerator
	overrides   harness.Overrides
	artifactDir string
	logger      *slog.Logger
	ledger      *store.Store
	publisher   *publish.Publisher
	publishAll  bool
}

func newRunner(opts *RunOptions, overrides harness.Overrides, artifactDir string, logger *slog.Logger) *runner {
	r := &runner{
		openDriver:  opts.OpenDriver,
		driverName:  opts.Driver,
		differ:      opts.Differ,
		clock:       opts.Clock,
		ids:         opts.IDs,
		overrides:   overrides,
		artifactDir: artifactDir,
		logger:      logger,
		publisher:   opts.Publisher,
		publishAll:  opts.PublishAll,
	}
	if r.openDriver == nil {
		r.openDriver = browser.Open
	}
	if r.differ == nil {
		r.differ = imagediff.New(0)
	}
	if r.clock == nil {
		r.clock = engine.SystemClock{}
	}
	if r.ids == nil {
		r.ids = store.UUIDv7Generator{}
	}
	return r
}

// run executes one scenario. Capture and step failures are reported in
// the ScenarioResult; the error return means the scenario never ran.
func (r *runner) run(ctx context.Context, sc *harness.Scenario, st harness.Settings) (ScenarioResult, error) {
	driver, err := r.openDriver(ctx, r.driverName, browser.FromEngine(st.Options))
	if err != nil {
		return ScenarioResult{}, fmt.Errorf("failed to start browser: %w", err)
	}

	rt := harness.Runtime{
		Driver:      driver,
		Differ:      r.differ,
		Overrides:   r.overrides,
		ArtifactDir: r.artifactDir,
		Clock:       r.clock,
		Logger:      r.logger,
	}

	var (
		runID    string
		recorder *store.Recorder
	)
	if r.ledger != nil {
		runID = r.ids.Generate()
		err := r.ledger.BeginRun(ctx, store.Run{
			ID:        runID,
			Scenario:  sc.Name,
			BaseHost:  st.BaseHost,
			TestHost:  st.TestHost,
			Options:   st.Options,
			StartedAt: r.clock.Now(),
		})
		if err != nil {
			return ScenarioResult{}, errors.Join(err, driver.Close(ctx))
		}
		recorder = r.ledger.NewRecorder(ctx, runID)
		rt.Observer = recorder
	}

	res, err := harness.Run(ctx, sc, rt)
	if err != nil {
		return ScenarioResult{}, errors.Join(err, driver.Close(ctx))
	}

	if r.ledger != nil {
		r.finishLedger(ctx, runID, recorder, res)
	}

	sr := toScenarioResult(res, runID)
	if r.publisher != nil {
		if err := r.publish(ctx, sc.Name, res, &sr); err != nil {
			return ScenarioResult{}, err
		}
	}
	return sr, nil
}

// publish uploads the artifacts of failed captures, or of every capture
// with --publish-all, and records where they went.
func (r *runner) publish(ctx context.Context, scenario string, res *harness.Result, sr *ScenarioResult) error {
	for i, c := range res.Comparisons {
		if c.Passed && !r.publishAll {
			continue
		}
		pub, err := r.publisher.PublishCapture(ctx, scenario, c)
		if err != nil {
			return fmt.Errorf("failed to publish artifacts: %w", err)
		}
		r.logger.Debug("capture published", "capture", c.Name, "diff_url", pub.Diff)
		sr.Captures[i].Published = &pub
	}
	return nil
}

// finishLedger closes out a run in the ledger. Ledger write failures are
// logged and never change the scenario's verdict.
func (r *runner) finishLedger(ctx context.Context, runID string, recorder *store.Recorder, res *harness.Result) {
	// Ledger writes outlive a cancelled run so the ledger shows why it stopped.
	ctx = context.WithoutCancel(ctx)
	if err := recorder.Err(); err != nil {
		r.logger.Warn("ledger missed events", "run_id", runID, "error", err)
	}
	if err := r.ledger.WriteProfile(ctx, runID, res.Profile); err != nil {
		r.logger.Warn("ledger profile write failed", "run_id", runID, "error", err)
	}
	if err := r.ledger.FinishRun(ctx, runID, r.clock.Now(), res.Err); err != nil {
		r.logger.Warn("ledger finish failed", "run_id", runID, "error", err)
	}
}

func toScenarioResult(res *harness.Result, runID string) ScenarioResult {
	sr := ScenarioResult{
		Name:     res.Scenario,
		Pass:     res.Pass,
		RunID:    runID,
		Captures: make([]CaptureResult, 0, len(res.Comparisons)),
		Errors:   res.Errors,
		Profile:  res.Profile,
	}
	for _, c := range res.Comparisons {
		sr.Captures = append(sr.Captures, CaptureResult{
			Name:       c.Name,
			Percentage: c.Percentage,
			Threshold:  c.Threshold,
			Passed:     c.Passed,
			DiffPath:   c.DiffPath,
		})
	}
	return sr
}

// printScenario writes one scenario's verdict as soon as it finishes.
func printScenario(out *OutputFormatter, sr ScenarioResult) {
	w := out.Writer
	fmt.Fprintf(w, "%s %s\n", mark(sr.Pass), sr.Name)
	for _, c := range sr.Captures {
		fmt.Fprintf(w, "  %s %s\n", mark(c.Passed), formatCapture(c.Name, c.Percentage, c.Threshold))
		if !c.Passed {
			fmt.Fprintf(w, "    diff: %s\n", c.DiffPath)
		}
		if c.Published != nil {
			fmt.Fprintf(w, "    published: %s\n", c.Published.Diff)
		}
	}
	for _, e := range sr.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	if out.Verbose && len(sr.Profile) > 0 {
		fmt.Fprintf(w, "  profile: %s\n", formatProfile(sr.Profile))
	}
}

// outputRunJSON outputs the run result as JSON.
func outputRunJSON(out *OutputFormatter, result RunResult) error {
	var cliErr *CLIError
	if result.Failed > 0 {
		cliErr = &CLIError{
			Code:    CodeRunFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}
	if err := out.Respond(result, cliErr); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputRunText outputs the run summary as text.
func outputRunText(out *OutputFormatter, result RunResult) error {
	w := out.Writer

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Run Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	fmt.Fprintf(w, "Artifacts: %s\n", result.ArtifactDir)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All captures within threshold")
	return nil
}
