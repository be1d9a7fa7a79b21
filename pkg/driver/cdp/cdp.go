// Package cdp implements driver.Page on top of chromedp. Like the rod
// backend it resolves locators in the page with driver.QueryAllJS; every
// call is a single Runtime.evaluate round trip.
package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/go-rod/stealth"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/integrail/ui-harness/pkg/driver"
)

type browser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	opts        driver.Options
}

// Launch starts a local Chrome through chromedp's exec allocator. ctx only
// bounds the startup; the browser lives until Close.
func Launch(ctx context.Context, opts driver.Options) (driver.Browser, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !opts.Headful),
	)
	if opts.Width > 0 && opts.Height > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.Width, opts.Height))
	}
	if opts.Stealth {
		allocOpts = append(allocOpts, chromedp.Flag("disable-blink-features", "AutomationControlled"))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	started := make(chan error, 1)
	go func() {
		// the first Run on a chromedp context owns the browser process, so
		// it must not carry a deadline
		started <- chromedp.Run(browserCtx)
	}()
	select {
	case err := <-started:
		if err != nil {
			cancel()
			allocCancel()
			return nil, errors.Wrapf(err, "failed to launch chrome")
		}
	case <-ctx.Done():
		cancel()
		allocCancel()
		return nil, errors.Wrapf(mapErr(ctx.Err()), "failed to launch chrome")
	}
	return &browser{ctx: browserCtx, cancel: cancel, allocCancel: allocCancel, opts: opts}, nil
}

func (b *browser) NewPage(ctx context.Context) (driver.Page, error) {
	tabCtx, cancel := chromedp.NewContext(b.ctx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, errors.Wrapf(err, "failed to open page")
	}
	p := &page{ctx: tabCtx, cancel: cancel}

	var setup []chromedp.Action
	if b.opts.Width > 0 && b.opts.Height > 0 {
		setup = append(setup, chromedp.EmulateViewport(int64(b.opts.Width), int64(b.opts.Height)))
	}
	if b.opts.Stealth {
		setup = append(setup, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := cdppage.AddScriptToEvaluateOnNewDocument(stealth.JS).Do(ctx)
			return err
		}))
	}
	if err := p.run(ctx, setup...); err != nil {
		_ = p.Close()
		return nil, errors.Wrapf(err, "failed to prepare page")
	}
	return p, nil
}

func (b *browser) Close() error {
	err := chromedp.Cancel(b.ctx)
	b.cancel()
	b.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrapf(err, "failed to close browser")
	}
	return nil
}

type page struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// run executes actions against the tab, bounded by the caller's ctx.
// chromedp finds its target through the context, so the caller's ctx can't
// be used directly.
func (p *page) run(ctx context.Context, actions ...chromedp.Action) error {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(p.ctx, deadline)
	} else {
		runCtx, cancel = context.WithCancel(p.ctx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return mapErr(err)
}

// eval runs expression and decodes its JSON result into res. Promises are
// awaited.
func (p *page) eval(ctx context.Context, expression string, res any) error {
	return p.run(ctx, chromedp.Evaluate(expression, res, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
		return ep.WithAwaitPromise(true)
	}))
}

func (p *page) Goto(ctx context.Context, url string, state driver.LoadState) error {
	if state != driver.LoadStateDOMContentLoaded {
		return p.run(ctx, chromedp.Navigate(url))
	}
	var ready bool
	return p.run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, _, errorText, err := cdppage.Navigate(url).Do(ctx)
			if err != nil {
				return err
			}
			if errorText != "" {
				return errors.Errorf("page load error %s", errorText)
			}
			return nil
		}),
		chromedp.Poll(`document.readyState !== "loading"`, &ready, chromedp.WithPollingInterval(50*time.Millisecond)),
	)
}

// element wraps body, which sees the matched element as el, into an
// expression that reports whether the nth match exists.
func element(loc driver.Locator, nth int, body string) (string, error) {
	raw, err := json.Marshal(loc)
	if err != nil {
		return "", errors.Wrapf(err, "failed to encode locator")
	}
	return fmt.Sprintf(`(async () => {
	const els = (%s)(%s);
	const el = els[%d];
	if (!el) return { found: false, count: els.length };
	const value = await (async (el) => { %s })(el);
	return { found: true, count: els.length, value: value === undefined ? null : value };
})()`, driver.QueryAllJS, raw, nth, body), nil
}

type match struct {
	Found bool `json:"found"`
	Count int  `json:"count"`
	Value any  `json:"value"`
}

func (p *page) on(ctx context.Context, loc driver.Locator, nth int, body string) (match, error) {
	var m match
	expr, err := element(loc, nth, body)
	if err != nil {
		return m, err
	}
	if err := p.eval(ctx, expr, &m); err != nil {
		return m, err
	}
	return m, nil
}

func (p *page) mustOn(ctx context.Context, loc driver.Locator, nth int, body string) (any, error) {
	m, err := p.on(ctx, loc, nth, body)
	if err != nil {
		return nil, err
	}
	if !m.Found {
		return nil, errors.Errorf("%s: no match at index %d (%d matches)", loc, nth, m.Count)
	}
	return m.Value, nil
}

func (p *page) Count(ctx context.Context, loc driver.Locator) (int, error) {
	raw, err := json.Marshal(loc)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to encode locator")
	}
	var n int
	if err := p.eval(ctx, fmt.Sprintf(`(%s)(%s).length`, driver.QueryAllJS, raw), &n); err != nil {
		return 0, err
	}
	return n, nil
}

// Click scrolls the match into view and dispatches a real mouse click at its
// center.
func (p *page) Click(ctx context.Context, loc driver.Locator, nth int) error {
	v, err := p.mustOn(ctx, loc, nth, `
		el.scrollIntoView({ block: "center", inline: "center" });
		const r = el.getBoundingClientRect();
		return [r.left + r.width / 2, r.top + r.height / 2];`)
	if err != nil {
		return err
	}
	point, ok := v.([]any)
	if !ok || len(point) != 2 {
		return errors.Errorf("%s: unexpected click point %v", loc, v)
	}
	x, _ := point[0].(float64)
	y, _ := point[1].(float64)
	return p.run(ctx, chromedp.MouseClickXY(x, y))
}

func (p *page) Visible(ctx context.Context, loc driver.Locator, nth int) (bool, error) {
	m, err := p.on(ctx, loc, nth, `
		const r = el.getBoundingClientRect();
		return r.width > 0 && r.height > 0 && getComputedStyle(el).visibility !== "hidden";`)
	if err != nil {
		return false, err
	}
	visible, _ := m.Value.(bool)
	return m.Found && visible, nil
}

func (p *page) EvalOn(ctx context.Context, loc driver.Locator, nth int, fn string, arg any) (any, error) {
	raw, err := json.Marshal(arg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode argument")
	}
	return p.mustOn(ctx, loc, nth, fmt.Sprintf(`return (%s)(el, %s);`, fn, raw))
}

func (p *page) Eval(ctx context.Context, fn string, arg any) (any, error) {
	raw, err := json.Marshal(arg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode argument")
	}
	var res any
	expr := fmt.Sprintf(`(async () => { const v = await (%s)(%s); return v === undefined ? null : v; })()`, fn, raw)
	if err := p.eval(ctx, expr, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (p *page) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	var buf []byte
	action := chromedp.CaptureScreenshot(&buf)
	if fullPage {
		action = chromedp.FullScreenshot(&buf, 100)
	}
	if err := p.run(ctx, action); err != nil {
		return nil, err
	}
	return buf, nil
}

// OnConsole subscribes to console API calls and uncaught exceptions for the
// lifetime of the tab.
func (p *page) OnConsole(handler func(driver.ConsoleEvent)) {
	chromedp.ListenTarget(p.ctx, func(ev any) {
		switch e := ev.(type) {
		case *runtime.EventConsoleAPICalled:
			handler(driver.ConsoleEvent{Type: string(e.Type), Text: consoleText(e.Args)})
		case *runtime.EventExceptionThrown:
			text := e.ExceptionDetails.Text
			if e.ExceptionDetails.Exception != nil && e.ExceptionDetails.Exception.Description != "" {
				text = e.ExceptionDetails.Exception.Description
			}
			handler(driver.ConsoleEvent{Type: "error", Text: text})
		}
	})
}

func (p *page) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrapf(err, "failed to close page")
	}
	return nil
}

func consoleText(args []*runtime.RemoteObject) string {
	parts := lo.Map(args, func(arg *runtime.RemoteObject, _ int) string {
		if len(arg.Value) == 0 {
			return arg.Description
		}
		var v any
		if err := json.Unmarshal(arg.Value, &v); err != nil {
			return string(arg.Value)
		}
		return fmt.Sprintf("%v", v)
	})
	return strings.Join(parts, " ")
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(driver.ErrTimeout, err.Error())
	}
	return err
}
