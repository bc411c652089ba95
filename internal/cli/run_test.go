package cli

import (
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/twinshot/internal/publish"
	"github.com/roach88/twinshot/internal/store"
	"github.com/roach88/twinshot/internal/testutil"
)

var red = testutil.SolidImage(8, 8, color.RGBA{R: 255, A: 255})

func TestRun_AllCapturesPass(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "home.yaml", homepageScenario)
	out := filepath.Join(dir, "artifacts")

	browsers := &fakeBrowsers{}
	cmd, buf := newTestRunCommand("text", browsers)
	cmd.SetArgs([]string{"--out", out, path})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "✓ homepage")
	assert.Contains(t, output, "✓ home 0.0000% (threshold 0.2%)")
	assert.Contains(t, output, "Run Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, output, "Artifacts: "+out)
	assert.Contains(t, output, "✓ All captures within threshold")

	require.Len(t, browsers.drivers, 1)
	assert.True(t, browsers.drivers[0].Closed(), "driver must be closed after the scenario")
	assert.FileExists(t, filepath.Join(out, "home-diff.png"))
}

func TestRun_ThresholdFailureExitsOne(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "home.yaml", homepageScenario)
	out := filepath.Join(dir, "artifacts")

	browsers := &fakeBrowsers{Pages: map[string]image.Image{testHost + "/": red}}
	cmd, buf := newTestRunCommand("text", browsers)
	cmd.SetArgs([]string{"--out", out, path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	output := buf.String()
	assert.Contains(t, output, "✗ homepage")
	assert.Contains(t, output, "✗ home 100.0000% (threshold 0.2%)")
	assert.Contains(t, output, "diff: "+filepath.Join(out, "home-diff.png"))
	assert.Contains(t, output, `"home": 100% different (> 0.2% threshold)`)
	assert.Contains(t, output, "Run Summary: 0 passed, 1 failed, 1 total")
}

func TestRun_FlagsOverrideScenario(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "home.yaml", `
name: homepage
options:
  width: 800
  height: 600
steps:
  - goto: /
    screenshot: home
`)

	browsers := &fakeBrowsers{}
	cmd, _ := newTestRunCommand("text", browsers)
	cmd.SetArgs([]string{
		"--out", t.TempDir(),
		"--base", "http://flag-base.test/",
		"--test", "http://flag-test.test",
		"--width", "1024",
		path,
	})

	require.NoError(t, cmd.Execute())

	require.Len(t, browsers.opened, 1)
	assert.Equal(t, 1024, browsers.opened[0].Width, "flag wins over scenario")
	assert.Equal(t, 600, browsers.opened[0].Height, "unset flag keeps scenario value")
	assert.Equal(t, "http://flag-test.test/", browsers.drivers[0].URL())
}

func TestRun_UnsetFlagsKeepDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "home.yaml", homepageScenario)

	browsers := &fakeBrowsers{}
	cmd, _ := newTestRunCommand("text", browsers)
	cmd.SetArgs([]string{"--out", t.TempDir(), path})

	require.NoError(t, cmd.Execute())

	require.Len(t, browsers.opened, 1)
	assert.Equal(t, 1400, browsers.opened[0].Width)
	assert.Equal(t, 1000, browsers.opened[0].Height)
	assert.False(t, browsers.opened[0].Show)
}

func TestRun_ThresholdFlagLoosensCapture(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "home.yaml", homepageScenario)

	browsers := &fakeBrowsers{Pages: map[string]image.Image{testHost + "/": red}}
	cmd, buf := newTestRunCommand("text", browsers)
	cmd.SetArgs([]string{"--out", t.TempDir(), "--threshold", "100", path})

	require.NoError(t, cmd.Execute(), "a difference equal to the threshold passes")
	assert.Contains(t, buf.String(), "✓ home 100.0000% (threshold 100%)")
}

func TestRun_MissingHostIsCommandError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "home.yaml", "name: nohost\nsteps:\n  - goto: /\n")

	browsers := &fakeBrowsers{}
	cmd, buf := newTestRunCommand("text", browsers)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "base host is required")
	assert.Contains(t, buf.String(), "Error ["+CodeInvalidScenario+"]")
	assert.Empty(t, browsers.opened, "no browser starts for an unresolvable scenario")
}

func TestRun_InvalidScenarioIsCommandError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.yaml", "name: bad\nsteps:\n  - gotoo: /\n")

	cmd, _ := newTestRunCommand("text", &fakeBrowsers{})
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load scenarios")
}

func TestRun_BrowserStartFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "home.yaml", homepageScenario)

	browsers := &fakeBrowsers{Err: errors.New("chromium not installed")}
	cmd, _ := newTestRunCommand("text", browsers)
	cmd.SetArgs([]string{"--out", t.TempDir(), path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to start browser")
	assert.Contains(t, err.Error(), "chromium not installed")
}

func TestRun_UnknownDriver(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "home.yaml", homepageScenario)

	cmd, _ := newTestRunCommand("text", &fakeBrowsers{})
	cmd.SetArgs([]string{"--driver", "netscape", path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `unknown driver "netscape"`)
}

func TestRun_StepFailureDoesNotStopLaterScenarios(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", `
name: broken
base: http://base.test
test: http://test.test
steps:
  - goto: /missing
    screenshot: missing
`)
	writeFile(t, dir, "b.yaml", homepageScenario)

	browsers := &fakeBrowsers{GotoErr: map[string]error{
		testBase + "/missing": errors.New("responded with HTTP 404"),
	}}
	cmd, buf := newTestRunCommand("text", browsers)
	cmd.SetArgs([]string{"--out", t.TempDir(), dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	output := buf.String()
	assert.Contains(t, output, "✗ broken")
	assert.Contains(t, output, "responded with HTTP 404")
	assert.Contains(t, output, "✓ homepage")
	assert.Contains(t, output, "Run Summary: 1 passed, 1 failed, 2 total")

	require.Len(t, browsers.drivers, 2)
	for _, d := range browsers.drivers {
		assert.True(t, d.Closed())
	}
}

func TestRun_Filter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", homepageScenario)
	writeFile(t, dir, "b.yaml", strings.Replace(homepageScenario, "name: homepage", "name: checkout", 1))

	browsers := &fakeBrowsers{}
	cmd, buf := newTestRunCommand("text", browsers)
	cmd.SetArgs([]string{"--out", t.TempDir(), "--filter", "check*", dir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "✓ checkout")
	assert.NotContains(t, buf.String(), "homepage")
	assert.Len(t, browsers.drivers, 1)
}

func TestRun_FilterMatchesNothing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", homepageScenario)

	browsers := &fakeBrowsers{}
	cmd, buf := newTestRunCommand("text", browsers)
	cmd.SetArgs([]string{"--filter", "nope-*", dir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "No scenarios found.")
	assert.Empty(t, browsers.opened)
}

func TestRun_InvalidFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", homepageScenario)

	cmd, _ := newTestRunCommand("text", &fakeBrowsers{})
	cmd.SetArgs([]string{"--filter", "[", dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestRun_JSONOutput(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "home.yaml", homepageScenario)

	browsers := &fakeBrowsers{Pages: map[string]image.Image{testHost + "/": red}}
	cmd, buf := newTestRunCommand("json", browsers)
	cmd.SetArgs([]string{"--out", t.TempDir(), path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result RunResult
	resp := decodeData(t, buf.Bytes(), &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeRunFailed, resp.Error.Code)

	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Scenarios, 1)
	sc := result.Scenarios[0]
	assert.Equal(t, "homepage", sc.Name)
	assert.False(t, sc.Pass)
	require.Len(t, sc.Captures, 1)
	assert.Equal(t, "home", sc.Captures[0].Name)
	assert.InDelta(t, 100.0, sc.Captures[0].Percentage, 1e-9)
	assert.False(t, sc.Captures[0].Passed)
	assert.NotContains(t, buf.String(), "✗", "JSON output must not mix in text lines")
}

func TestRun_WritesLedger(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", homepageScenario)
	writeFile(t, dir, "b.yaml", strings.Replace(homepageScenario, "name: homepage", "name: checkout", 1))
	dbPath := filepath.Join(dir, "ledger.db")

	browsers := &fakeBrowsers{}
	cmd, buf := newTestRunCommand("json", browsers)
	cmd.SetArgs([]string{"--out", t.TempDir(), "--db", dbPath, dir})
	require.NoError(t, cmd.Execute())

	var result RunResult
	decodeData(t, buf.Bytes(), &result)
	require.Len(t, result.Scenarios, 2)
	assert.Equal(t, "run-1", result.Scenarios[0].RunID)
	assert.Equal(t, "run-2", result.Scenarios[1].RunID)

	ledger, err := store.Open(dbPath)
	require.NoError(t, err)
	defer ledger.Close()

	report, err := ledger.ReadReport(t.Context())
	require.NoError(t, err)
	require.Len(t, report.Runs, 2)
	assert.True(t, report.Passed())

	first := report.Runs[0]
	assert.Equal(t, "run-1", first.Run.ID)
	assert.Equal(t, "homepage", first.Run.Scenario)
	assert.Equal(t, testBase, first.Run.BaseHost)
	assert.True(t, first.Run.Finished)
	// goto and screenshot on each pass
	assert.Len(t, first.Steps, 4)
	require.Len(t, first.Comparisons, 1)
	assert.Equal(t, "home", first.Comparisons[0].Name)
	assert.Contains(t, first.Profile, "goto")
	assert.Contains(t, first.Profile, "screenshot")
	assert.Contains(t, first.Profile, "diff")
}

func TestRun_LedgerIsRecreatedEachRun(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "home.yaml", homepageScenario)
	dbPath := filepath.Join(dir, "ledger.db")

	for i := 0; i < 2; i++ {
		cmd, _ := newTestRunCommand("text", &fakeBrowsers{})
		cmd.SetArgs([]string{"--out", t.TempDir(), "--db", dbPath, path})
		require.NoError(t, cmd.Execute())
	}

	ledger, err := store.Open(dbPath)
	require.NoError(t, err)
	defer ledger.Close()

	report, err := ledger.ReadReport(t.Context())
	require.NoError(t, err)
	assert.Len(t, report.Runs, 1, "the ledger holds only the last run")
}

func TestRun_LedgerRecordsFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "home.yaml", homepageScenario)
	dbPath := filepath.Join(dir, "ledger.db")

	browsers := &fakeBrowsers{Pages: map[string]image.Image{testHost + "/": red}}
	cmd, _ := newTestRunCommand("text", browsers)
	cmd.SetArgs([]string{"--out", t.TempDir(), "--db", dbPath, path})
	require.Error(t, cmd.Execute())

	ledger, err := store.Open(dbPath)
	require.NoError(t, err)
	defer ledger.Close()

	run, err := ledger.ReadRun(t.Context(), "run-1")
	require.NoError(t, err)
	assert.True(t, run.Finished)
	assert.False(t, run.Passed)
	assert.Contains(t, run.Error, `"home": 100% different`)
}

func TestRunHelpText(t *testing.T) {
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	assert.Contains(t, cmd.Long, "Exit codes")
	assert.Equal(t, "run <scenario-file-or-dir>", cmd.Use)
}

func TestRun_PublishesFailedCaptures(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "two.yaml", `
name: homepage
base: http://base.test
test: http://test.test
steps:
  - goto: /
    screenshot: home
  - goto: /about
    screenshot: about
`)

	pub, client := publish.TestPublisher(t, "artifacts", "ci")
	browsers := &fakeBrowsers{Pages: map[string]image.Image{testHost + "/about": red}}
	cmd, buf := newTestRunCommand("json", browsers, func(o *RunOptions) { o.Publisher = pub })
	cmd.SetArgs([]string{"--out", t.TempDir(), path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result RunResult
	decodeData(t, buf.Bytes(), &result)
	require.Len(t, result.Scenarios, 1)
	captures := result.Scenarios[0].Captures
	require.Len(t, captures, 2)
	assert.Nil(t, captures[0].Published, "passing captures are not uploaded by default")
	require.NotNil(t, captures[1].Published)
	assert.Contains(t, captures[1].Published.Diff, "ci/homepage/about-diff.png")

	obj, err := client.HeadObject(t.Context(), &s3.HeadObjectInput{
		Bucket: aws.String("artifacts"),
		Key:    aws.String("ci/homepage/about-diff.png"),
	})
	require.NoError(t, err)
	assert.Equal(t, "image/png", aws.ToString(obj.ContentType))
}

func TestRun_PublishAll(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "home.yaml", homepageScenario)

	pub, _ := publish.TestPublisher(t, "artifacts", "")
	cmd, buf := newTestRunCommand("text", &fakeBrowsers{}, func(o *RunOptions) { o.Publisher = pub })
	cmd.SetArgs([]string{"--out", t.TempDir(), "--publish-all", path})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "published: ")
	assert.Contains(t, buf.String(), "homepage/home-diff.png")
}
