package harness

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/integrail/ui-harness/pkg/driver"
)

// fakeElement is an element of the in-memory page used by the tests.
type fakeElement struct {
	visible bool
	attrs   map[string]string
	styles  map[string]map[string]string // pseudo ("" for the element) -> properties
	shadow  *string
	onClick func()
}

type fakePage struct {
	mu           sync.Mutex
	elements     map[string][]*fakeElement // keyed by driver.Locator.String()
	styleBlocks  map[string]string
	styleOrder   []string
	console      func(driver.ConsoleEvent)
	gotoErr      error
	gotoDelay    time.Duration
	evalErr      error
	screenshot   []byte
	visibleCalls int
	clicks       []string
	closed       int
}

func newFakePage() *fakePage {
	return &fakePage{
		elements:    map[string][]*fakeElement{},
		styleBlocks: map[string]string{},
		screenshot:  []byte("\x89PNG fake"),
	}
}

func (p *fakePage) add(loc Locator, els ...*fakeElement) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := loc.Target().String()
	p.elements[key] = append(p.elements[key], els...)
}

func (p *fakePage) setVisible(el *fakeElement, visible bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el.visible = visible
}

func (p *fakePage) emit(ev driver.ConsoleEvent) {
	p.mu.Lock()
	handler := p.console
	p.mu.Unlock()
	if handler != nil {
		handler(ev)
	}
}

func (p *fakePage) get(loc driver.Locator, nth int) (*fakeElement, error) {
	els := p.elements[loc.String()]
	if nth >= len(els) {
		return nil, errors.Errorf("%s: no match at index %d", loc, nth)
	}
	return els[nth], nil
}

func (p *fakePage) Goto(ctx context.Context, _ string, _ driver.LoadState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.gotoDelay > 0 {
		select {
		case <-time.After(p.gotoDelay):
		case <-ctx.Done():
			return errors.Wrap(driver.ErrTimeout, ctx.Err().Error())
		}
	}
	return p.gotoErr
}

func (p *fakePage) Count(ctx context.Context, loc driver.Locator) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.elements[loc.String()]), nil
}

func (p *fakePage) Click(_ context.Context, loc driver.Locator, nth int) error {
	p.mu.Lock()
	el, err := p.get(loc, nth)
	p.clicks = append(p.clicks, loc.String())
	p.mu.Unlock()
	if err != nil {
		return err
	}
	if el.onClick != nil {
		el.onClick()
	}
	return nil
}

func (p *fakePage) Visible(_ context.Context, loc driver.Locator, nth int) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visibleCalls++
	el, err := p.get(loc, nth)
	if err != nil {
		return false, nil
	}
	return el.visible, nil
}

func (p *fakePage) EvalOn(_ context.Context, loc driver.Locator, nth int, fn string, arg any) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.evalErr != nil {
		return nil, p.evalErr
	}
	el, err := p.get(loc, nth)
	if err != nil {
		return nil, err
	}
	switch fn {
	case computedStyleJS:
		pseudo, _ := arg.(string)
		out := map[string]any{}
		for k, v := range el.styles[pseudo] {
			out[k] = v
		}
		return out, nil
	case shadowHTMLJS:
		if el.shadow == nil {
			return arg, nil
		}
		return *el.shadow, nil
	case attributeJS:
		v, ok := el.attrs[arg.(string)]
		if !ok {
			return nil, nil
		}
		return v, nil
	}
	return nil, errors.Errorf("fake page cannot evaluate %q", fn)
}

func (p *fakePage) Eval(_ context.Context, fn string, arg any) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.evalErr != nil {
		return nil, p.evalErr
	}
	if fn != injectStyleJS {
		return nil, errors.Errorf("fake page cannot evaluate %q", fn)
	}
	block := arg.(styleBlock)
	if _, ok := p.styleBlocks[block.ID]; !ok {
		p.styleOrder = append(p.styleOrder, block.ID)
	}
	p.styleBlocks[block.ID] = block.CSS
	return float64(1), nil
}

func (p *fakePage) Screenshot(ctx context.Context, _ bool) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.screenshot, nil
}

func (p *fakePage) OnConsole(handler func(driver.ConsoleEvent)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.console = handler
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

type fakeBrowser struct {
	page       *fakePage
	newPageErr error
	closed     int
}

func (b *fakeBrowser) NewPage(context.Context) (driver.Page, error) {
	if b.newPageErr != nil {
		return nil, b.newPageErr
	}
	return b.page, nil
}

func (b *fakeBrowser) Close() error {
	b.closed++
	return nil
}

func (b *fakeBrowser) launcher() driver.Launcher {
	return func(context.Context, driver.Options) (driver.Browser, error) {
		return b, nil
	}
}

type recordingReporter struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingReporter) Report(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, msg)
}
