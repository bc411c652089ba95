package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/roach88/twinshot/internal/engine"
)

// Playwright drives a single Chromium page through playwright-go.
//
// Playwright calls are not context-aware; ctx is checked before each call
// and Playwright's own timeouts bound the call itself.
type Playwright struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
}

var _ engine.Driver = (*Playwright)(nil)

// NewPlaywright starts Playwright, launches Chromium and opens one page
// with the requested viewport.
func NewPlaywright(opts Options) (*Playwright, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(!opts.Show),
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: opts.Width, Height: opts.Height},
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("create browser context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("open page: %w", err)
	}

	return &Playwright{pw: pw, browser: browser, context: bctx, page: page}, nil
}

// Goto loads url and waits for the load event. HTTP error statuses fail.
func (p *Playwright) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	resp, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	if err != nil {
		return err
	}
	if resp != nil {
		return statusError(url, resp.Status())
	}
	return nil
}

// WaitIdle waits for network idle. Hitting timeout is not an error: a page
// that never goes quiet is captured as it is.
func (p *Playwright) WaitIdle(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if errors.Is(err, playwright.ErrTimeout) {
		return nil
	}
	return err
}

// Screenshot writes a PNG of the viewport to path.
func (p *Playwright) Screenshot(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path: playwright.String(path),
		Type: playwright.ScreenshotTypePng,
	})
	return err
}

// Click clicks the first element matching selector.
func (p *Playwright) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Locator(selector).First().Click()
}

// Fill replaces the value of the input matching selector.
func (p *Playwright) Fill(ctx context.Context, selector, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Locator(selector).First().Fill(text)
}

// Evaluate runs script in the page and discards its result.
func (p *Playwright) Evaluate(ctx context.Context, script string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Evaluate(script)
	return err
}

// Close shuts down the page, the browser and the Playwright driver.
func (p *Playwright) Close(ctx context.Context) error {
	return errors.Join(
		p.context.Close(),
		p.browser.Close(),
		p.pw.Stop(),
	)
}
