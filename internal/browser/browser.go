// Package browser provides engine.Driver implementations backed by real
// browsers.
//
// Two backends are available: Playwright (the default) and chromedp,
// which talks to a locally installed Chrome over the DevTools protocol
// without Playwright's driver bundle.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/twinshot/internal/engine"
)

// Driver names accepted by Open.
const (
	NamePlaywright = "playwright"
	NameChromedp   = "chromedp"
)

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown browser driver")

// Options configure the browser window.
type Options struct {
	// Show runs the browser headed.
	Show bool

	// Width and Height are the viewport size in CSS pixels.
	Width  int
	Height int
}

// FromEngine extracts the browser settings from harness options.
func FromEngine(opts engine.Options) Options {
	return Options{Show: opts.Show, Width: opts.Width, Height: opts.Height}
}

// Names returns the supported driver names, sorted.
func Names() []string {
	names := []string{NamePlaywright, NameChromedp}
	sort.Strings(names)
	return names
}

// Open launches the named browser backend. An empty name selects
// Playwright.
func Open(ctx context.Context, name string, opts Options) (engine.Driver, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NamePlaywright:
		return NewPlaywright(opts)
	case NameChromedp:
		return NewChromedp(ctx, opts)
	default:
		return nil, fmt.Errorf("%w %q (want one of %s)", ErrUnknownDriver, name, strings.Join(Names(), ", "))
	}
}

// statusError reports an HTTP error status for a navigation.
func statusError(url string, status int) error {
	if status >= 400 {
		return fmt.Errorf("%s responded with HTTP %d", url, status)
	}
	return nil
}
