package scenario

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/integrail/ui-harness/pkg/harness"
)

// fakeProgram records calls and fails on the ones listed in failOn.
type fakeProgram struct {
	calls   []string
	failOn  map[string]error
	console []harness.ConsoleMessage
	styles  map[string]harness.StyleSnapshot
	shadow  string
}

var _ harness.Program = (*fakeProgram)(nil)

func newFakeProgram() *fakeProgram {
	return &fakeProgram{failOn: map[string]error{}, styles: map[string]harness.StyleSnapshot{}}
}

func (f *fakeProgram) call(format string, args ...any) error {
	c := fmt.Sprintf(format, args...)
	f.calls = append(f.calls, c)
	return f.failOn[c]
}

func (f *fakeProgram) Origin() string { return "http://fixture.test" }

func (f *fakeProgram) Navigate(url string, ready harness.Readiness) error {
	if ready.Visible != nil {
		return f.call("navigate %s until %s", url, ready.Visible)
	}
	return f.call("navigate %s", url)
}

func (f *fakeProgram) Click(loc harness.Locator) error { return f.call("click %s", loc) }

func (f *fakeProgram) WaitVisible(loc harness.Locator, opts ...harness.WaitOption) error {
	return f.call("visible %s", loc)
}

func (f *fakeProgram) WaitHidden(loc harness.Locator, opts ...harness.WaitOption) error {
	return f.call("hidden %s", loc)
}

func (f *fakeProgram) Attribute(loc harness.Locator, name string) (string, bool, error) {
	return "", false, f.call("attr %s %s", loc, name)
}

func (f *fakeProgram) ExpectAttribute(loc harness.Locator, name string, present bool) error {
	return f.call("expect %s %s=%t", loc, name, present)
}

func (f *fakeProgram) ComputedStyle(selector, pseudo string) (harness.StyleSnapshot, error) {
	if err := f.call("styles %s%s", selector, pseudo); err != nil {
		return harness.StyleSnapshot{}, err
	}
	snap, ok := f.styles[selector+pseudo]
	if !ok {
		return harness.StyleSnapshot{Selector: selector, Pseudo: pseudo}, nil
	}
	return snap, nil
}

func (f *fakeProgram) ShadowHTML(selector string) (string, error) {
	return f.shadow, f.call("shadow %s", selector)
}

func (f *fakeProgram) InjectStyle(css string) error { return f.call("inject %s", css) }

func (f *fakeProgram) InjectStyleWithID(id, css string) error {
	return f.call("inject#%s %s", id, css)
}

func (f *fakeProgram) TakeScreenshot() ([]byte, error) { return []byte("png"), f.call("screenshot") }

func (f *fakeProgram) SaveScreenshot(fileName string) error { return f.call("save %s", fileName) }

func (f *fakeProgram) Sleep(d time.Duration) error { return f.call("sleep %s", d) }

func (f *fakeProgram) Log(message string) {}

func (f *fakeProgram) Console() []harness.ConsoleMessage { return f.console }

func (f *fakeProgram) ConsoleErrors() []harness.ConsoleMessage {
	var errs []harness.ConsoleMessage
	for _, m := range f.console {
		if m.Severity == harness.SeverityError {
			errs = append(errs, m)
		}
	}
	return errs
}

func (f *fakeProgram) Logger() *zap.Logger { return zap.NewNop() }
