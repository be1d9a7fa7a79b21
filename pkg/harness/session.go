// Package harness drives a browser session against a local origin: it
// navigates, clicks, waits for visibility, inspects styles and markup,
// captures console output and screenshots, and reports typed failures.
package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/savioxavier/termlink"
	"go.uber.org/zap"

	"github.com/integrail/ui-harness/pkg/driver"
)

const (
	DefaultOrigin            = "http://localhost:8080"
	DefaultTimeout           = 5 * time.Second
	DefaultNavigationTimeout = 30 * time.Second
	DefaultStyleID           = "ui-harness-debug-styles"
)

// Program is the set of steps a scenario or an interactive console can run
// against a live session.
type Program interface {
	Origin() string
	Navigate(url string, ready Readiness) error
	Click(loc Locator) error
	WaitVisible(loc Locator, opts ...WaitOption) error
	WaitHidden(loc Locator, opts ...WaitOption) error
	Attribute(loc Locator, name string) (string, bool, error)
	ExpectAttribute(loc Locator, name string, present bool) error
	ComputedStyle(selector, pseudo string) (StyleSnapshot, error)
	ShadowHTML(selector string) (string, error)
	InjectStyle(css string) error
	InjectStyleWithID(id, css string) error
	TakeScreenshot() ([]byte, error)
	SaveScreenshot(fileName string) error
	Sleep(d time.Duration) error
	Log(message string)
	Console() []ConsoleMessage
	ConsoleErrors() []ConsoleMessage
	Logger() *zap.Logger
}

// Reporter receives human-readable progress lines.
type Reporter interface {
	Report(msg string)
}

type nopReporter struct{}

func (nopReporter) Report(string) {}

// Readiness is the signal Navigate blocks on: the load event, and
// optionally a locator becoming visible.
type Readiness struct {
	Visible *Locator      `json:"visible,omitempty" yaml:"visible,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

func (r Readiness) signal() string {
	if r.Visible != nil {
		return "visible " + r.Visible.String()
	}
	return "load event"
}

type Option func(s *Session)

func WithLogger(log *zap.Logger) Option {
	return func(s *Session) {
		s.log = log
	}
}

func WithReporter(r Reporter) Option {
	return func(s *Session) {
		s.reporter = r
	}
}

// WithTimeout sets the default bound for visibility waits and clicks.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.timeout = d
	}
}

func WithNavigationTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.navTimeout = d
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(s *Session) {
		s.interval = d
	}
}

func WithDriverOptions(opts driver.Options) Option {
	return func(s *Session) {
		s.driverOpts = opts
	}
}

// WithOutputDir sets the directory relative screenshot paths resolve against.
func WithOutputDir(dir string) Option {
	return func(s *Session) {
		s.outDir = dir
	}
}

func WithStyleID(id string) Option {
	return func(s *Session) {
		s.styleID = id
	}
}

// WithProbe toggles the HTTP reachability check run before the browser is
// launched.
func WithProbe(enabled bool) Option {
	return func(s *Session) {
		s.probe = enabled
	}
}

func WithRunID(id string) Option {
	return func(s *Session) {
		s.runID = id
	}
}

// Session owns one browser and one page for the duration of a run.
type Session struct {
	ctx        context.Context
	origin     string
	browser    driver.Browser
	page       driver.Page
	console    *ConsoleLog
	log        *zap.Logger
	reporter   Reporter
	timeout    time.Duration
	navTimeout time.Duration
	interval   time.Duration
	driverOpts driver.Options
	outDir     string
	styleID    string
	probe      bool
	runID      string

	mu        sync.Mutex
	history   []State
	closeOnce sync.Once
	closeErr  error
}

var _ Program = (*Session)(nil)

// Open probes the origin, launches a browser and opens a page with console
// capture installed. The caller must Close the session; Run does that for
// you.
func Open(ctx context.Context, launch driver.Launcher, origin string, opts ...Option) (*Session, error) {
	s := &Session{
		ctx:        ctx,
		origin:     lo.Ternary(origin != "", origin, DefaultOrigin),
		log:        zap.NewNop(),
		reporter:   nopReporter{},
		timeout:    DefaultTimeout,
		navTimeout: DefaultNavigationTimeout,
		interval:   DefaultPollInterval,
		outDir:     ".",
		styleID:    DefaultStyleID,
		probe:      true,
		history:    []State{StateIdle},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.runID == "" {
		s.runID = uuid.NewString()
	}
	s.log = s.log.With(zap.String("run_id", s.runID))
	s.console = NewConsoleLog(s.log)

	if s.probe {
		if err := Probe(ctx, s.origin, s.navTimeout); err != nil {
			return nil, err
		}
	}

	s.log.Info("Launching browser", zap.Bool("headful", s.driverOpts.Headful))
	b, err := launch(ctx, s.driverOpts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to launch browser")
	}
	page, err := b.NewPage(ctx)
	if err != nil {
		_ = b.Close()
		return nil, errors.Wrapf(err, "failed to open page")
	}
	s.browser = b
	s.page = page
	page.OnConsole(s.console.record)
	s.transition(StateSessionOpen)
	return s, nil
}

// Run opens a session, hands it to fn and closes it on every exit path,
// including a panic in fn. fn's error wins over a close error.
func Run(ctx context.Context, launch driver.Launcher, origin string, fn func(s *Session) error, opts ...Option) (err error) {
	s, err := Open(ctx, launch, origin, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(s)
}

// Close releases the page and the browser. Only the first call does work.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.page != nil {
			if err := s.page.Close(); err != nil {
				errs = append(errs, errors.Wrapf(err, "failed to close page"))
			}
		}
		if s.browser != nil {
			if err := s.browser.Close(); err != nil {
				errs = append(errs, errors.Wrapf(err, "failed to close browser"))
			}
		}
		s.transition(StateSessionClosed)
		s.log.Info("Browser closed.")
		if len(errs) > 0 {
			s.closeErr = errs[0]
		}
	})
	return s.closeErr
}

func (s *Session) Origin() string { return s.origin }

func (s *Session) Logger() *zap.Logger { return s.log }

func (s *Session) RunID() string { return s.runID }

func (s *Session) Console() []ConsoleMessage { return s.console.Messages() }

func (s *Session) ConsoleErrors() []ConsoleMessage { return s.console.Errors() }

func (s *Session) Log(message string) {
	s.log.Info(message)
}

// Navigate loads url (the origin when empty) and blocks until ready holds.
func (s *Session) Navigate(url string, ready Readiness) error {
	url = lo.Ternary(url != "", url, s.origin)
	timeout := lo.Ternary(ready.Timeout > 0, ready.Timeout, s.navTimeout)

	s.log.Info(fmt.Sprintf("Navigating to %s...", url))
	deadline := time.Now().Add(timeout)
	ctx, cancel := context.WithDeadline(s.ctx, deadline)
	defer cancel()

	if err := s.page.Goto(ctx, url, driver.LoadStateLoad); err != nil {
		if isTimeout(err) {
			return &ReadinessTimeoutError{Signal: "load event", Timeout: timeout}
		}
		if s.ctx.Err() != nil {
			return s.ctx.Err()
		}
		return &ConnectionError{URL: url, Err: err}
	}
	s.transition(StateNavigated)

	if ready.Visible == nil {
		return nil
	}
	// load and readiness share one budget
	loc := *ready.Visible
	_, err := Poll(s.ctx, time.Until(deadline), s.interval, s.visibility(loc, true))
	if errors.Is(err, ErrWaitTimeout) {
		return &ReadinessTimeoutError{Signal: ready.signal(), Timeout: timeout}
	}
	return err
}

func (s *Session) Click(loc Locator) error {
	s.log.Info("Clicking", zap.Stringer("locator", loc))
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	nth, err := loc.resolve(ctx, s.page)
	if err != nil {
		return err
	}
	if err := s.page.Click(ctx, loc.Target(), nth); err != nil {
		return errors.Wrapf(err, "failed to click %s", loc)
	}
	s.transition(StateInteracted)
	return nil
}

type waitConfig struct {
	timeout time.Duration
}

type WaitOption func(c *waitConfig)

func WithWaitTimeout(d time.Duration) WaitOption {
	return func(c *waitConfig) {
		c.timeout = d
	}
}

func (s *Session) WaitVisible(loc Locator, opts ...WaitOption) error {
	return s.waitVisibility(loc, true, opts...)
}

func (s *Session) WaitHidden(loc Locator, opts ...WaitOption) error {
	return s.waitVisibility(loc, false, opts...)
}

func (s *Session) waitVisibility(loc Locator, expected bool, opts ...WaitOption) error {
	cfg := waitConfig{timeout: s.timeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	s.log.Info(fmt.Sprintf("Waiting for %s to be %s...", loc, visibilityWord(expected)))
	elapsed, err := Poll(s.ctx, cfg.timeout, s.interval, s.visibility(loc, expected))
	if errors.Is(err, ErrWaitTimeout) {
		return &VisibilityAssertionError{
			Selector: loc.String(),
			Expected: expected,
			Elapsed:  elapsed,
			Timeout:  cfg.timeout,
		}
	}
	if err != nil {
		return err
	}
	s.transition(StateAsserted)
	return nil
}

// visibility builds the condition "loc's visibility equals expected". A
// missing element counts as hidden.
func (s *Session) visibility(loc Locator, expected bool) Condition {
	return func(ctx context.Context) (bool, error) {
		n, err := s.page.Count(ctx, loc.Target())
		if err != nil {
			return false, err
		}
		if n == 0 {
			return !expected, nil
		}
		nth, err := loc.pick(n)
		var notFound *ElementNotFoundError
		if errors.As(err, &notFound) {
			return !expected, nil
		}
		if err != nil {
			return false, err
		}
		visible, err := s.page.Visible(ctx, loc.Target(), nth)
		if err != nil {
			return false, err
		}
		return visible == expected, nil
	}
}

func (s *Session) Sleep(d time.Duration) error {
	s.log.Debug("Sleeping", zap.Duration("duration", d))
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// InjectStyle inserts or replaces the session's debug <style> block.
func (s *Session) InjectStyle(css string) error {
	return s.InjectStyleWithID(s.styleID, css)
}

// InjectStyleWithID inserts or replaces the <style> element with the given
// id in document.head, so repeated calls never duplicate it.
func (s *Session) InjectStyleWithID(id, css string) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	_, err := s.page.Eval(ctx, injectStyleJS, styleBlock{ID: id, CSS: css})
	if err != nil {
		return errors.Wrapf(err, "failed to inject style %q", id)
	}
	s.log.Info("--- Injected CSS Style ---\n" + css + "\n--------------------------")
	return nil
}

type styleBlock struct {
	ID  string `json:"id"`
	CSS string `json:"css"`
}

func (s *Session) TakeScreenshot() ([]byte, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.navTimeout)
	defer cancel()

	data, err := s.page.Screenshot(ctx, true)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to take screenshot")
	}
	if len(data) == 0 {
		return nil, errors.Errorf("screenshot is empty")
	}
	return data, nil
}

// SaveScreenshot writes a full-page PNG to fileName, resolved against the
// output directory when relative. Parent directories are created.
func (s *Session) SaveScreenshot(fileName string) error {
	screenshot, err := s.TakeScreenshot()
	if err != nil {
		return err
	}
	path := fileName
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.outDir, fileName)
	}
	s.log.Info(fmt.Sprintf("Taking screenshot: %s", path))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}
	if err := os.WriteFile(path, screenshot, 0o644); err != nil {
		s.reporter.Report(fmt.Sprintf("failed to save screenshot to %s: %q", path, err.Error()))
		return errors.Wrapf(err, "failed to save screenshot to %s", path)
	}
	s.transition(StateCaptured)
	abs, _ := filepath.Abs(path)
	s.reporter.Report(fmt.Sprintf("screenshot %q saved to ", fileName) +
		termlink.ColorLink(path, fmt.Sprintf("file://%s", abs), "italic green"))
	return nil
}

func isTimeout(err error) bool {
	return errors.Is(err, driver.ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
