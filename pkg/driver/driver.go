// Package driver defines the contract between the harness and a concrete
// browser automation backend.
package driver

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrTimeout is returned (wrapped) by backends when a browser-side wait ran
// out of time.
var ErrTimeout = errors.New("driver: timeout")

type LoadState string

const (
	LoadStateLoad             LoadState = "load"
	LoadStateDOMContentLoaded LoadState = "domcontentloaded"
)

// Locator addresses zero or more elements, either by ARIA role and
// accessible name or by a CSS selector. CSS selectors pierce open shadow
// roots.
type Locator struct {
	Role  string `json:"role,omitempty" yaml:"role,omitempty"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	CSS   string `json:"css,omitempty" yaml:"css,omitempty"`
	Exact bool   `json:"exact,omitempty" yaml:"exact,omitempty"` // exact accessible name match
}

func (l Locator) IsRole() bool {
	return l.Role != ""
}

func (l Locator) String() string {
	if l.IsRole() {
		if l.Name == "" {
			return fmt.Sprintf("role=%s", l.Role)
		}
		if !l.Exact {
			return fmt.Sprintf("role=%s[name*=%q]", l.Role, l.Name)
		}
		return fmt.Sprintf("role=%s[name=%q]", l.Role, l.Name)
	}
	return fmt.Sprintf("css=%s", strings.TrimSpace(l.CSS))
}

func (l Locator) Validate() error {
	switch {
	case l.Role == "" && l.CSS == "":
		return errors.Errorf("locator needs either role or css")
	case l.Role != "" && l.CSS != "":
		return errors.Errorf("locator %s: role and css are mutually exclusive", l)
	case l.Role == "" && l.Name != "":
		return errors.Errorf("locator %s: name requires role", l)
	}
	return nil
}

// ConsoleEvent is a raw console message or uncaught page exception as
// reported by the backend. Type is the backend's message type ("log",
// "warning", "error", ...).
type ConsoleEvent struct {
	Type string
	Text string
}

type Options struct {
	Headful bool
	Stealth bool
	Width   int
	Height  int
}

// Browser is a launched browser process.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Launcher starts a browser.
type Launcher func(ctx context.Context, opts Options) (Browser, error)

// Page is a single tab. Element-level calls take a locator plus the index of
// the match to act on; callers are responsible for resolving ambiguity.
//
// EvalOn runs fn, a JavaScript function of the form `(el, arg) => ...`,
// against the nth match. Eval runs `(arg) => ...` in the page.
type Page interface {
	Goto(ctx context.Context, url string, state LoadState) error
	Count(ctx context.Context, loc Locator) (int, error)
	Click(ctx context.Context, loc Locator, nth int) error
	Visible(ctx context.Context, loc Locator, nth int) (bool, error)
	EvalOn(ctx context.Context, loc Locator, nth int, fn string, arg any) (any, error)
	Eval(ctx context.Context, fn string, arg any) (any, error)
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	OnConsole(handler func(ConsoleEvent))
	Close() error
}
