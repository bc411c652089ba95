package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/twinshot/internal/browser"
	"github.com/roach88/twinshot/internal/engine"
	"github.com/roach88/twinshot/internal/testutil"
)

const (
	testBase = "http://base.test"
	testHost = "http://test.test"
)

// fakeBrowsers hands out a fresh FakeDriver per scenario and remembers
// what each one was opened with.
type fakeBrowsers struct {
	// Pages and GotoErr are copied into every driver.
	Pages   map[string]image.Image
	GotoErr map[string]error

	// Err fails every open.
	Err error

	mu      sync.Mutex
	opened  []browser.Options
	drivers []*testutil.FakeDriver
}

func (b *fakeBrowsers) open(ctx context.Context, name string, opts browser.Options) (engine.Driver, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opened = append(b.opened, opts)
	if b.Err != nil {
		return nil, b.Err
	}

	d := testutil.NewFakeDriver(nil)
	for url, img := range b.Pages {
		d.Pages[url] = img
	}
	for url, err := range b.GotoErr {
		d.GotoErr[url] = err
	}
	b.drivers = append(b.drivers, d)
	return d, nil
}

// newTestRunCommand wires the run command to fakes. stdout is returned;
// logs are discarded. configure may adjust the options before the
// command is built.
func newTestRunCommand(format string, browsers *fakeBrowsers, configure ...func(*RunOptions)) (*cobra.Command, *bytes.Buffer) {
	opts := &RunOptions{
		RootOptions: &RootOptions{Format: format},
		OpenDriver:  browsers.open,
		Clock:       testutil.NewManualClock(nil),
		IDs:         testutil.NewSequenceIDGenerator(""),
	}
	for _, fn := range configure {
		fn(opts)
	}
	cmd := newRunCommand(opts)

	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	return cmd, buf
}

// writeFile writes content to dir/name and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// decodeData unmarshals the data field of a JSON CLI response into v.
func decodeData(t *testing.T, raw []byte, v any) CLIResponse {
	t.Helper()
	var resp struct {
		CLIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &resp))
	if v != nil {
		require.NoError(t, json.Unmarshal(resp.Data, v))
	}
	return resp.CLIResponse
}

const homepageScenario = `
name: homepage
base: http://base.test
test: http://test.test
steps:
  - goto: /
    screenshot: home
`
