package scenario

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/pkg/errors"

	"github.com/integrail/ui-harness/pkg/harness"
)

func TestRunModal(t *testing.T) {
	RegisterTestingT(t)

	p := newFakeProgram()
	sc, err := Builtin("modal", nil)
	Expect(err).To(BeNil())

	res, err := Run(p, sc)
	Expect(err).To(BeNil())
	Expect(res.Failed()).To(BeFalse())
	Expect(res.Steps).To(HaveLen(7))
	Expect(p.calls).To(Equal([]string{
		"navigate http://fixture.test",
		"save verification/modal_before_open.png",
		`click role=button[name="Save File"]`,
		"visible css=md-dialog",
		"save verification/modal_open.png",
		`click role=button[name="Save"]`,
		"hidden css=md-dialog",
		"save verification/modal_after_close.png",
	}))
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	RegisterTestingT(t)

	p := newFakeProgram()
	visibility := &harness.VisibilityAssertionError{Selector: "css=md-dialog", Expected: true}
	p.failOn["visible css=md-dialog"] = visibility

	sc, err := Builtin("modal", nil)
	Expect(err).To(BeNil())
	res, err := Run(p, sc)

	var target *harness.VisibilityAssertionError
	Expect(errors.As(err, &target)).To(BeTrue())
	Expect(err.Error()).To(HavePrefix("step 3 (expect_visible)"))
	Expect(res.Failed()).To(BeTrue())
	Expect(res.Steps).To(HaveLen(3))
	Expect(res.Steps[2].Error).To(Equal(visibility.Error()))
	Expect(p.calls).NotTo(ContainElement("save verification/modal_open.png"))
}

func TestRunNavigationFailure(t *testing.T) {
	RegisterTestingT(t)

	p := newFakeProgram()
	p.failOn[`navigate http://fixture.test until role=heading[name="Button"]`] = &harness.ConnectionError{URL: "http://fixture.test"}

	sc, err := Builtin("matdemo", nil)
	Expect(err).To(BeNil())
	res, err := Run(p, sc)
	Expect(err).To(BeAssignableToTypeOf(&harness.ConnectionError{}))
	Expect(res.Steps).To(BeEmpty())
	Expect(p.calls).To(HaveLen(1))
}

func TestRunFailsOnConsoleErrors(t *testing.T) {
	RegisterTestingT(t)

	p := newFakeProgram()
	p.console = []harness.ConsoleMessage{
		{Severity: harness.SeverityInfo, Type: "log", Text: "mounted"},
		{Severity: harness.SeverityError, Type: "error", Text: "Uncaught TypeError: x is undefined"},
	}
	sc, err := Builtin("components", nil)
	Expect(err).To(BeNil())

	var out bytes.Buffer
	res, err := Run(p, sc, WithReportWriter(&out))
	var consoleErr *harness.ConsoleErrorsError
	Expect(errors.As(err, &consoleErr)).To(BeTrue())
	Expect(err).To(MatchError(HavePrefix("step 1 (expect_no_console_errors)")))
	Expect(consoleErr.Messages).To(HaveLen(1))
	Expect(res.Console).To(HaveLen(2))
	Expect(p.calls).To(Equal([]string{
		"navigate http://fixture.test",
		"sleep 3s",
	}))
	Expect(out.String()).To(Equal("--- Captured Console Messages ---\n" +
		"[LOG] mounted\n" +
		"[ERROR] Uncaught TypeError: x is undefined\n" +
		"---------------------------------\n"))
}

func TestRunComponentsWithCleanConsole(t *testing.T) {
	RegisterTestingT(t)

	p := newFakeProgram()
	sc, err := Builtin("components", nil)
	Expect(err).To(BeNil())

	var out bytes.Buffer
	_, err = Run(p, sc, WithReportWriter(&out))
	Expect(err).To(BeNil())
	Expect(p.calls).To(Equal([]string{
		"navigate http://fixture.test",
		"sleep 3s",
		"save verification/mat-yew-verification.png",
	}))
	Expect(out.String()).To(ContainSubstring("No console messages were captured."))
}

func TestRunConsolePolicyAfterLastStep(t *testing.T) {
	RegisterTestingT(t)

	console := []harness.ConsoleMessage{{Severity: harness.SeverityError, Type: "error", Text: "late failure"}}
	sc := &Scenario{Name: "late", FailOnConsoleError: true, Steps: []Step{{Screenshot: "late.png"}}}

	p := newFakeProgramWithConsole(console)
	_, err := Run(p, sc)
	var consoleErr *harness.ConsoleErrorsError
	Expect(errors.As(err, &consoleErr)).To(BeTrue())
	Expect(p.calls).To(ContainElement("save late.png"))

	sc.FailOnConsoleError = false
	_, err = Run(newFakeProgramWithConsole(console), sc)
	Expect(err).To(BeNil())
}

func newFakeProgramWithConsole(console []harness.ConsoleMessage) *fakeProgram {
	p := newFakeProgram()
	p.console = console
	return p
}

func TestRunFabs(t *testing.T) {
	RegisterTestingT(t)

	p := newFakeProgram()
	sc, err := Builtin("fabs", nil)
	Expect(err).To(BeNil())
	_, err = Run(p, sc)
	Expect(err).To(BeNil())
	Expect(p.calls[1:3]).To(Equal([]string{
		"expect css=md-fab[label='Add'] >> first disabled=false",
		"expect css=md-fab[label='Disabled'] >> first disabled=true",
	}))
}

func TestRunLiveDebug(t *testing.T) {
	RegisterTestingT(t)

	p := newFakeProgram()
	sc, err := Builtin("live-debug", nil)
	Expect(err).To(BeNil())
	_, err = Run(p, sc)
	Expect(err).To(BeNil())
	Expect(p.calls).NotTo(ContainElement(HavePrefix("inject")))
	Expect(p.calls).To(ContainElement("save debug_output/live_debug_screenshot.png"))

	p = newFakeProgram()
	sc, err = Builtin("live-debug", map[string]string{"css": "md-dialog { display: block; }", "screenshot": "fix.png"})
	Expect(err).To(BeNil())
	_, err = Run(p, sc)
	Expect(err).To(BeNil())
	Expect(p.calls).To(ContainElement("inject md-dialog { display: block; }"))
	Expect(p.calls).To(ContainElement("save debug_output/fix.png"))
}

func TestRunInjectStyleWithID(t *testing.T) {
	RegisterTestingT(t)

	p := newFakeProgram()
	sc, err := Parse([]byte("name: x\nsteps:\n  - inject_style: {id: theme, css: 'body { color: red; }'}\n"), nil)
	Expect(err).To(BeNil())
	_, err = Run(p, sc)
	Expect(err).To(BeNil())
	Expect(p.calls).To(ContainElement("inject#theme body { color: red; }"))
}

func TestRunDiagnoseWritesReport(t *testing.T) {
	RegisterTestingT(t)

	p := newFakeProgram()
	p.styles["md-dialog"] = harness.StyleSnapshot{
		Selector: "md-dialog",
		Found:    true,
		Properties: map[string]string{
			"position": "fixed", "display": "flex", "z-index": "auto", "opacity": "1",
			"background-color": "rgba(0, 0, 0, 0)", "color": "rgb(0, 0, 0)",
		},
	}
	p.failOn["styles md-dialog .scroller"] = &harness.InspectionError{Selector: "md-dialog .scroller", Err: errors.New("detached")}

	sc, err := Builtin("diagnose", nil)
	Expect(err).To(BeNil())
	var out bytes.Buffer
	dir := t.TempDir()
	res, err := Run(p, sc, WithReportWriter(&out), WithOutputDir(dir))
	Expect(err).To(BeNil())

	Expect(res.Reports).To(HaveLen(1))
	sections := res.Reports[0].Sections
	Expect(sections).To(HaveLen(5))
	Expect(sections[0].Found).To(BeTrue())
	Expect(sections[0].Styles).To(HaveLen(5))
	Expect(sections[0].Styles).NotTo(HaveKey("color"))
	Expect(sections[1].Found).To(BeFalse())
	Expect(sections[4].Error).To(ContainSubstring("detached"))

	Expect(out.String()).To(HavePrefix("--- DIAGNOSTIC REPORT ---"))
	written, err := os.ReadFile(filepath.Join(dir, "diagnostics", "modal.txt"))
	Expect(err).To(BeNil())
	Expect(string(written)).To(Equal(out.String()))
}

func TestRunAdvancedDiagnoseDumpsShadow(t *testing.T) {
	RegisterTestingT(t)

	p := newFakeProgram()
	p.shadow = `<dialog><div class="scrim"></div></dialog>`
	sc, err := Builtin("advanced-diagnose", nil)
	Expect(err).To(BeNil())
	var out bytes.Buffer
	_, err = Run(p, sc, WithReportWriter(&out), WithOutputDir(t.TempDir()))
	Expect(err).To(BeNil())
	Expect(p.calls).To(ContainElements(
		"shadow md-dialog",
		"styles md-dialog",
		"styles md-dialog dialog",
		"styles md-dialog .scrim",
		"styles md-dialog dialog > .container",
		"styles md-dialog .scroller",
		"styles md-dialog dialog > .container::before",
	))
	Expect(p.calls).NotTo(ContainElement("styles md-dialog::before"))
	Expect(out.String()).To(ContainSubstring("--- SHADOW DOM: md-dialog ---\n" + p.shadow))
}

func TestRunShadowDumpFailureIsReported(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		fail bool
	}{
		{name: "inspection error", err: &harness.InspectionError{Selector: "md-dialog", Err: errors.New("evaluate threw")}},
		{name: "host not found", err: &harness.ElementNotFoundError{Locator: "css=md-dialog"}},
		{name: "browser gone", err: errors.New("target closed"), fail: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			RegisterTestingT(t)

			p := newFakeProgram()
			p.failOn["shadow md-dialog"] = tc.err
			sc, err := Builtin("advanced-diagnose", nil)
			Expect(err).To(BeNil())

			var out bytes.Buffer
			_, err = Run(p, sc, WithReportWriter(&out), WithOutputDir(t.TempDir()))
			if tc.fail {
				Expect(err).To(MatchError(ContainSubstring("target closed")))
				Expect(p.calls).NotTo(ContainElement("sleep 1s"))
				return
			}
			Expect(err).To(BeNil())
			Expect(out.String()).To(ContainSubstring("--- SHADOW DOM: md-dialog ---\nerror: " + tc.err.Error()))
			Expect(p.calls[len(p.calls)-1]).To(Equal("sleep 1s"))
		})
	}
}
