package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/roach88/twinshot/internal/engine"
)

// Chromedp drives a local Chrome over the DevTools protocol.
//
// The browser lives in its own context created at launch; each call runs
// in a child of it that is also cancelled when the caller's ctx ends.
type Chromedp struct {
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

var _ engine.Driver = (*Chromedp)(nil)

// NewChromedp launches Chrome with the requested window size and waits
// for it to accept commands.
func NewChromedp(ctx context.Context, opts Options) (*Chromedp, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !opts.Show),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.WindowSize(opts.Width, opts.Height),
	)

	// Detached from ctx: the browser must outlive the launch call.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	d := &Chromedp{
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
	}

	// An empty Run starts the browser. It must run on browserCtx itself:
	// the browser is tied to the context of the first Run.
	if err := chromedp.Run(browserCtx); err != nil {
		d.Close(ctx)
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	return d, nil
}

// run executes actions on the browser, aborting if ctx ends first.
func (d *Chromedp) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(d.browserCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Goto navigates to url. HTTP error statuses fail.
func (d *Chromedp) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(d.browserCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	resp, err := chromedp.RunResponse(runCtx, chromedp.Navigate(url))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	if resp != nil {
		return statusError(url, int(resp.Status))
	}
	return nil
}

// WaitIdle waits until the document body is ready, for at most timeout.
// Hitting timeout is not an error.
func (d *Chromedp) WaitIdle(ctx context.Context, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := d.run(waitCtx, chromedp.WaitReady("body", chromedp.ByQuery))
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return nil
	}
	return err
}

// Screenshot writes a PNG of the viewport to path.
func (d *Chromedp) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := d.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}

// Click clicks the first element matching selector.
func (d *Chromedp) Click(ctx context.Context, selector string) error {
	return d.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

// Fill clears the input matching selector and types text into it.
func (d *Chromedp) Fill(ctx context.Context, selector, text string) error {
	return d.run(ctx,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

// Evaluate runs script in the page and discards its result.
func (d *Chromedp) Evaluate(ctx context.Context, script string) error {
	return d.run(ctx, chromedp.Evaluate(script, nil))
}

// Close shuts the browser down.
func (d *Chromedp) Close(ctx context.Context) error {
	d.cancelBrowser()
	d.cancelAlloc()
	return nil
}
