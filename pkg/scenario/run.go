package scenario

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/integrail/ui-harness/pkg/harness"
)

type StepResult struct {
	Index    int           `json:"index"`
	Kind     string        `json:"kind"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

type Result struct {
	Scenario string                     `json:"scenario"`
	Steps    []StepResult               `json:"steps"`
	Console  []harness.ConsoleMessage   `json:"console"`
	Reports  []harness.DiagnosticReport `json:"reports,omitempty"`
}

func (r *Result) Failed() bool {
	for _, s := range r.Steps {
		if s.Error != "" {
			return true
		}
	}
	return false
}

type runConfig struct {
	out    io.Writer
	outDir string
}

type RunOption func(c *runConfig)

// WithReportWriter sends rendered diagnostic reports and shadow markup to w
// in addition to the logger.
func WithReportWriter(w io.Writer) RunOption {
	return func(c *runConfig) {
		c.out = w
	}
}

// WithOutputDir resolves relative dump_styles output files against dir.
func WithOutputDir(dir string) RunOption {
	return func(c *runConfig) {
		c.outDir = dir
	}
}

// Run navigates to the scenario's page and executes its steps in order,
// stopping at the first failure. The returned Result covers every step
// attempted, together with the console messages captured so far; the
// error is the failing step's error, or a ConsoleErrorsError when the
// scenario fails on console errors.
func Run(p harness.Program, sc *Scenario, opts ...RunOption) (*Result, error) {
	cfg := runConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	log := p.Logger().With(zap.String("scenario", sc.Name))
	res := &Result{Scenario: sc.Name}
	defer func() {
		res.Console = p.Console()
	}()

	url := sc.URL
	if url == "" {
		url = p.Origin()
	}
	log.Info(fmt.Sprintf("Running scenario %s: %s", sc.Name, sc.Description))
	if err := p.Navigate(url, sc.Ready); err != nil {
		return res, err
	}
	if sc.Settle > 0 {
		if err := p.Sleep(sc.Settle); err != nil {
			return res, err
		}
	}

	for i, step := range sc.Steps {
		started := time.Now()
		err := runStep(p, step, &cfg, res)
		sr := StepResult{Index: i + 1, Kind: step.Kind(), Duration: time.Since(started)}
		if err != nil {
			sr.Error = err.Error()
			res.Steps = append(res.Steps, sr)
			log.Error("Step failed", zap.Int("step", sr.Index), zap.String("kind", sr.Kind), zap.Error(err))
			return res, errors.Wrapf(err, "step %d (%s)", sr.Index, sr.Kind)
		}
		res.Steps = append(res.Steps, sr)
		log.Debug("Step passed", zap.Int("step", sr.Index), zap.String("kind", sr.Kind), zap.Duration("duration", sr.Duration))
	}

	if errs := p.ConsoleErrors(); sc.FailOnConsoleError && len(errs) > 0 {
		log.Error("JavaScript errors found in console", zap.Int("count", len(errs)))
		return res, &harness.ConsoleErrorsError{Messages: errs}
	}
	log.Info(fmt.Sprintf("Scenario %s passed", sc.Name), zap.Int("steps", len(res.Steps)))
	return res, nil
}

func runStep(p harness.Program, step Step, cfg *runConfig, res *Result) error {
	switch {
	case step.Click != nil:
		return p.Click(*step.Click)
	case step.ExpectVisible != nil:
		return p.WaitVisible(step.ExpectVisible.Locator, waitOptions(step.ExpectVisible)...)
	case step.ExpectHidden != nil:
		return p.WaitHidden(step.ExpectHidden.Locator, waitOptions(step.ExpectHidden)...)
	case step.ExpectAttribute != nil:
		a := step.ExpectAttribute
		return p.ExpectAttribute(a.Locator, a.Name, a.Present)
	case step.ExpectNoErrors:
		return expectNoConsoleErrors(p, cfg)
	case step.Screenshot != "":
		return p.SaveScreenshot(step.Screenshot)
	case step.InjectStyle != nil:
		if step.InjectStyle.CSS == "" {
			p.Log("No CSS given, nothing injected")
			return nil
		}
		if step.InjectStyle.ID != "" {
			return p.InjectStyleWithID(step.InjectStyle.ID, step.InjectStyle.CSS)
		}
		return p.InjectStyle(step.InjectStyle.CSS)
	case step.DumpStyles != nil:
		return dumpStyles(p, step.DumpStyles, cfg, res)
	case step.DumpShadow != "":
		return dumpShadow(p, step.DumpShadow, cfg)
	case step.Sleep > 0:
		return p.Sleep(step.Sleep)
	case step.Log != "":
		p.Log(step.Log)
		return nil
	}
	return errors.Errorf("step has no action")
}

// dumpShadow treats a failed or impossible query as missing data: it is
// logged and reported, and the run goes on.
func dumpShadow(p harness.Program, selector string, cfg *runConfig) error {
	html, err := p.ShadowHTML(selector)
	if err != nil {
		var inspectErr *harness.InspectionError
		var notFoundErr *harness.ElementNotFoundError
		if !errors.As(err, &inspectErr) && !errors.As(err, &notFoundErr) {
			return err
		}
		p.Logger().Warn("Could not get shadow DOM HTML", zap.String("selector", selector), zap.Error(err))
		if cfg.out != nil {
			_, _ = fmt.Fprintf(cfg.out, "--- SHADOW DOM: %s ---\nerror: %s\n", selector, err.Error())
		}
		return nil
	}
	p.Log(fmt.Sprintf("--- Shadow DOM of %s ---\n%s\n--- END Shadow DOM ---", selector, html))
	if cfg.out != nil {
		_, _ = fmt.Fprintf(cfg.out, "--- SHADOW DOM: %s ---\n%s\n", selector, html)
	}
	return nil
}

// expectNoConsoleErrors prints every console message captured so far and
// fails when any of them is an error.
func expectNoConsoleErrors(p harness.Program, cfg *runConfig) error {
	lines := lo.Map(p.Console(), func(m harness.ConsoleMessage, _ int) string {
		return fmt.Sprintf("[%s] %s", strings.ToUpper(m.Type), m.Text)
	})
	if len(lines) == 0 {
		lines = []string{"No console messages were captured."}
	}
	summary := "--- Captured Console Messages ---\n" + strings.Join(lines, "\n") + "\n---------------------------------"
	p.Log(summary)
	if cfg.out != nil {
		_, _ = fmt.Fprintln(cfg.out, summary)
	}
	if errs := p.ConsoleErrors(); len(errs) > 0 {
		return &harness.ConsoleErrorsError{Messages: errs}
	}
	return nil
}

func waitOptions(v *VisibilityStep) []harness.WaitOption {
	if v.Timeout > 0 {
		return []harness.WaitOption{harness.WithWaitTimeout(v.Timeout)}
	}
	return nil
}

// dumpStyles only fails when the report cannot be written; inspection
// problems end up in the report itself.
func dumpStyles(p harness.Program, d *DumpStylesStep, cfg *runConfig, res *Result) error {
	title := d.Title
	if title == "" {
		title = "DIAGNOSTIC REPORT"
	}
	report := harness.Diagnose(p, title, d.Targets)
	res.Reports = append(res.Reports, report)
	p.Log(report.String())
	if cfg.out != nil {
		if err := report.Render(cfg.out); err != nil {
			return errors.Wrapf(err, "failed to render report %q", title)
		}
	}
	if d.Output == "" {
		return nil
	}
	path := d.Output
	if !filepath.IsAbs(path) {
		path = filepath.Join(cfg.outDir, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}
	if err := os.WriteFile(path, []byte(report.String()), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write report to %s", path)
	}
	return nil
}
