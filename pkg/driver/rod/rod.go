// Package rod implements driver.Page on top of go-rod. Role locators and
// shadow-piercing CSS selectors are resolved in the page by an injected
// query function, since the Chrome DevTools protocol has neither.
package rod

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/integrail/ui-harness/pkg/driver"
)

type browser struct {
	browser *rod.Browser
	lnch    *launcher.Launcher
	opts    driver.Options
}

// Launch starts a local Chrome through the rod launcher (downloading it on
// first use) and connects to it.
func Launch(ctx context.Context, opts driver.Options) (driver.Browser, error) {
	l := launcher.New().Context(ctx).Headless(!opts.Headful)
	if opts.Stealth {
		l = l.Set("disable-blink-features", "AutomationControlled")
	}
	u, err := l.Launch()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to launch chrome")
	}
	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, errors.Wrapf(err, "failed to connect to chrome at %s", u)
	}
	return &browser{browser: b, lnch: l, opts: opts}, nil
}

func (b *browser) NewPage(ctx context.Context) (driver.Page, error) {
	var (
		p   *rod.Page
		err error
	)
	if b.opts.Stealth {
		p, err = stealth.Page(b.browser)
	} else {
		p, err = b.browser.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open page")
	}
	if b.opts.Width > 0 && b.opts.Height > 0 {
		err = p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             b.opts.Width,
			Height:            b.opts.Height,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			_ = p.Close()
			return nil, errors.Wrapf(err, "failed to set viewport")
		}
	}
	return &page{page: p}, nil
}

func (b *browser) Close() error {
	err := b.browser.Close()
	b.lnch.Cleanup()
	if err != nil {
		return errors.Wrapf(err, "failed to close browser")
	}
	return nil
}

type page struct {
	page *rod.Page
}

func (p *page) Goto(ctx context.Context, url string, state driver.LoadState) error {
	pg := p.page.Context(ctx)
	if state == driver.LoadStateDOMContentLoaded {
		wait := pg.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
		if err := pg.Navigate(url); err != nil {
			return mapErr(err)
		}
		wait()
		return mapErr(ctx.Err())
	}
	if err := pg.Navigate(url); err != nil {
		return mapErr(err)
	}
	return mapErr(pg.WaitLoad())
}

func (p *page) elements(ctx context.Context, loc driver.Locator) (rod.Elements, error) {
	els, err := p.page.Context(ctx).ElementsByJS(rod.Eval(driver.QueryAllJS, loc))
	if err != nil {
		return nil, mapErr(err)
	}
	return els, nil
}

func (p *page) element(ctx context.Context, loc driver.Locator, nth int) (*rod.Element, error) {
	els, err := p.elements(ctx, loc)
	if err != nil {
		return nil, err
	}
	if nth < 0 || nth >= len(els) {
		return nil, errors.Errorf("%s: no match at index %d (%d matches)", loc, nth, len(els))
	}
	return els[nth].Context(ctx), nil
}

func (p *page) Count(ctx context.Context, loc driver.Locator) (int, error) {
	els, err := p.elements(ctx, loc)
	if err != nil {
		return 0, err
	}
	return len(els), nil
}

func (p *page) Click(ctx context.Context, loc driver.Locator, nth int) error {
	el, err := p.element(ctx, loc, nth)
	if err != nil {
		return err
	}
	return mapErr(el.Click(proto.InputMouseButtonLeft, 1))
}

func (p *page) Visible(ctx context.Context, loc driver.Locator, nth int) (bool, error) {
	els, err := p.elements(ctx, loc)
	if err != nil {
		return false, err
	}
	if nth >= len(els) {
		return false, nil
	}
	visible, err := els[nth].Context(ctx).Visible()
	return visible, mapErr(err)
}

// EvalOn adapts the `(el, arg) => ...` convention to rod, which binds the
// element to `this`.
func (p *page) EvalOn(ctx context.Context, loc driver.Locator, nth int, fn string, arg any) (any, error) {
	el, err := p.element(ctx, loc, nth)
	if err != nil {
		return nil, err
	}
	res, err := el.Eval(fmt.Sprintf(`function (arg) { return (%s)(this, arg) }`, fn), arg)
	if err != nil {
		return nil, mapErr(err)
	}
	return res.Value.Val(), nil
}

func (p *page) Eval(ctx context.Context, fn string, arg any) (any, error) {
	res, err := p.page.Context(ctx).Eval(fn, arg)
	if err != nil {
		return nil, mapErr(err)
	}
	return res.Value.Val(), nil
}

func (p *page) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	data, err := p.page.Context(ctx).Screenshot(fullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	return data, mapErr(err)
}

// OnConsole subscribes to console API calls and uncaught exceptions for the
// lifetime of the page.
func (p *page) OnConsole(handler func(driver.ConsoleEvent)) {
	go p.page.EachEvent(
		func(e *proto.RuntimeConsoleAPICalled) {
			handler(driver.ConsoleEvent{Type: string(e.Type), Text: consoleText(e.Args)})
		},
		func(e *proto.RuntimeExceptionThrown) {
			text := e.ExceptionDetails.Text
			if e.ExceptionDetails.Exception != nil && e.ExceptionDetails.Exception.Description != "" {
				text = e.ExceptionDetails.Exception.Description
			}
			handler(driver.ConsoleEvent{Type: "error", Text: text})
		},
	)()
}

func (p *page) Close() error {
	return mapErr(p.page.Close())
}

func consoleText(args []*proto.RuntimeRemoteObject) string {
	parts := lo.Map(args, func(arg *proto.RuntimeRemoteObject, _ int) string {
		if arg.Value.Nil() {
			return arg.Description
		}
		return fmt.Sprintf("%v", arg.Value.Val())
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
