// Package pw implements driver.Page on top of playwright-go.
package pw

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/playwright-community/playwright-go"
	"github.com/samber/lo"

	"github.com/integrail/ui-harness/pkg/driver"
)

const defaultTimeout = 30 * time.Second

type browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	opts    driver.Options
}

// Launch starts the playwright driver and a Chromium instance. The
// playwright driver and browsers must already be installed
// (`go run github.com/playwright-community/playwright-go/cmd/playwright install chromium`).
func Launch(ctx context.Context, opts driver.Options) (driver.Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pw, err := playwright.Run(&playwright.RunOptions{SkipInstallBrowsers: true, Verbose: false})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to start playwright")
	}
	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(!opts.Headful),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, errors.Wrapf(err, "failed to launch chromium")
	}
	return &browser{pw: pw, browser: b, opts: opts}, nil
}

func (b *browser) NewPage(ctx context.Context) (driver.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var pageOpts playwright.BrowserNewPageOptions
	if b.opts.Width > 0 && b.opts.Height > 0 {
		pageOpts.Viewport = &playwright.Size{Width: b.opts.Width, Height: b.opts.Height}
	}
	p, err := b.browser.NewPage(pageOpts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open page")
	}
	return newPage(p), nil
}

func (b *browser) Close() error {
	var firstErr error
	if err := b.browser.Close(); err != nil {
		firstErr = errors.Wrapf(err, "failed to close browser")
	}
	if err := b.pw.Stop(); err != nil && firstErr == nil {
		firstErr = errors.Wrapf(err, "failed to stop playwright")
	}
	return firstErr
}

type page struct {
	page playwright.Page
}

func newPage(p playwright.Page) *page {
	return &page{page: p}
}

func (p *page) locator(loc driver.Locator) playwright.Locator {
	if loc.IsRole() {
		opts := playwright.PageGetByRoleOptions{Exact: playwright.Bool(loc.Exact)}
		if loc.Name != "" {
			opts.Name = loc.Name
		}
		return p.page.GetByRole(playwright.AriaRole(loc.Role), opts)
	}
	return p.page.Locator(loc.CSS)
}

func (p *page) Goto(ctx context.Context, url string, state driver.LoadState) error {
	waitUntil := playwright.WaitUntilStateLoad
	if state == driver.LoadStateDOMContentLoaded {
		waitUntil = playwright.WaitUntilStateDomcontentloaded
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: waitUntil,
		Timeout:   timeoutMillis(ctx),
	})
	return mapErr(err)
}

func (p *page) Count(ctx context.Context, loc driver.Locator) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := p.locator(loc).Count()
	return n, mapErr(err)
}

func (p *page) Click(ctx context.Context, loc driver.Locator, nth int) error {
	return mapErr(p.locator(loc).Nth(nth).Click(playwright.LocatorClickOptions{
		Timeout: timeoutMillis(ctx),
	}))
}

func (p *page) Visible(ctx context.Context, loc driver.Locator, nth int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	visible, err := p.locator(loc).Nth(nth).IsVisible()
	return visible, mapErr(err)
}

func (p *page) EvalOn(ctx context.Context, loc driver.Locator, nth int, fn string, arg any) (any, error) {
	res, err := p.locator(loc).Nth(nth).Evaluate(fn, arg, playwright.LocatorEvaluateOptions{
		Timeout: timeoutMillis(ctx),
	})
	return res, mapErr(err)
}

func (p *page) Eval(ctx context.Context, fn string, arg any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := p.page.Evaluate(fn, arg)
	return res, mapErr(err)
}

func (p *page) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	data, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(fullPage),
		Type:     playwright.ScreenshotTypePng,
		Timeout:  timeoutMillis(ctx),
	})
	return data, mapErr(err)
}

// OnConsole forwards console messages and uncaught page errors; playwright
// reports the latter separately from the console.
func (p *page) OnConsole(handler func(driver.ConsoleEvent)) {
	p.page.OnConsole(func(msg playwright.ConsoleMessage) {
		handler(driver.ConsoleEvent{Type: msg.Type(), Text: msg.Text()})
	})
	p.page.OnPageError(func(err error) {
		handler(driver.ConsoleEvent{Type: "error", Text: err.Error()})
	})
}

func (p *page) Close() error {
	return mapErr(p.page.Close())
}

// timeoutMillis converts the context deadline into a playwright timeout,
// since playwright calls do not take a context.
func timeoutMillis(ctx context.Context) *float64 {
	deadline, ok := ctx.Deadline()
	if !ok {
		return playwright.Float(float64(defaultTimeout.Milliseconds()))
	}
	left := time.Until(deadline)
	return playwright.Float(float64(lo.Max([]time.Duration{left, time.Millisecond}).Milliseconds()))
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return errors.Wrap(driver.ErrTimeout, err.Error())
	}
	return err
}
