package testutil

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"sync"
	"time"
)

// FakeDriver is an in-memory browser for engine and harness tests.
//
// It remembers the last URL it was sent to and, on Screenshot, writes the
// PNG registered for that URL in Pages (or Blank). Every call is appended
// to Log so tests can assert on exact ordering.
type FakeDriver struct {
	// Log receives one entry per call. Optional.
	Log *CallLog

	// Clock, if set, is advanced by Latency on every Goto and Screenshot.
	Clock   *ManualClock
	Latency time.Duration

	// Pages maps URL to the image a screenshot of it produces.
	Pages map[string]image.Image

	// GotoErr fails Goto for specific URLs.
	GotoErr map[string]error

	// ClickErr fails Click for specific selectors.
	ClickErr map[string]error

	// WaitErr and ScreenshotErr fail every WaitIdle/Screenshot call.
	WaitErr       error
	ScreenshotErr error

	mu     sync.Mutex
	url    string
	closed bool
}

// NewFakeDriver creates a driver logging to log.
func NewFakeDriver(log *CallLog) *FakeDriver {
	return &FakeDriver{
		Log:      log,
		Pages:    make(map[string]image.Image),
		GotoErr:  make(map[string]error),
		ClickErr: make(map[string]error),
	}
}

// Blank is the 8x8 white page rendered for URLs not in Pages.
var Blank = SolidImage(8, 8, color.RGBA{R: 255, G: 255, B: 255, A: 255})

// SolidImage returns a w x h image filled with c.
func SolidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func (d *FakeDriver) tick() {
	if d.Clock != nil && d.Latency > 0 {
		d.Clock.Advance(d.Latency)
	}
}

// Goto records the navigation and fails if GotoErr has an entry for url.
func (d *FakeDriver) Goto(ctx context.Context, url string) error {
	d.Log.Add("goto " + url)
	d.tick()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.GotoErr[url]; err != nil {
		return err
	}

	d.mu.Lock()
	d.url = url
	d.mu.Unlock()
	return nil
}

// WaitIdle records the wait and returns WaitErr.
func (d *FakeDriver) WaitIdle(ctx context.Context, timeout time.Duration) error {
	d.Log.Add("wait_idle " + timeout.String())
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.WaitErr
}

// Screenshot writes the current page's image to path.
func (d *FakeDriver) Screenshot(ctx context.Context, path string) error {
	d.Log.Add("screenshot " + path)
	d.tick()
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.ScreenshotErr != nil {
		return d.ScreenshotErr
	}

	d.mu.Lock()
	img, ok := d.Pages[d.url]
	d.mu.Unlock()
	if !ok {
		img = Blank
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Click records the click and fails if ClickErr has an entry for selector.
func (d *FakeDriver) Click(ctx context.Context, selector string) error {
	d.Log.Add("click " + selector)
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.ClickErr[selector]
}

// Fill records the fill.
func (d *FakeDriver) Fill(ctx context.Context, selector, text string) error {
	d.Log.Add(fmt.Sprintf("fill %s %q", selector, text))
	return ctx.Err()
}

// Evaluate records the script.
func (d *FakeDriver) Evaluate(ctx context.Context, script string) error {
	d.Log.Add("eval " + script)
	return ctx.Err()
}

// Close marks the driver closed.
func (d *FakeDriver) Close(ctx context.Context) error {
	d.Log.Add("close")
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Closed reports whether Close was called.
func (d *FakeDriver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// URL returns the last successfully loaded URL.
func (d *FakeDriver) URL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url
}
