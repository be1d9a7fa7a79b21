package harness

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

// ConnectionError means the target origin could not be reached. It is
// fatal and never retried.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot reach %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ReadinessTimeoutError means the page did not reach its readiness signal
// in time.
type ReadinessTimeoutError struct {
	Signal  string
	Timeout time.Duration
}

func (e *ReadinessTimeoutError) Error() string {
	return fmt.Sprintf("readiness signal %q not observed within %s", e.Signal, e.Timeout)
}

type ElementNotFoundError struct {
	Locator string
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("no element matches %s", e.Locator)
}

// AmbiguousLocatorError means a locator that must identify one element
// matched several; pick one with Locator.PickFirst or Locator.Pick.
type AmbiguousLocatorError struct {
	Locator string
	Count   int
}

func (e *AmbiguousLocatorError) Error() string {
	return fmt.Sprintf("%s is ambiguous: %d elements match", e.Locator, e.Count)
}

type VisibilityAssertionError struct {
	Selector string
	Expected bool
	Elapsed  time.Duration
	Timeout  time.Duration
}

func (e *VisibilityAssertionError) Error() string {
	return fmt.Sprintf("expected %s to be %s, still not after %s (timeout %s)",
		e.Selector, visibilityWord(e.Expected), e.Elapsed.Round(time.Millisecond), e.Timeout)
}

func visibilityWord(visible bool) string {
	return lo.Ternary(visible, "visible", "hidden")
}

type AttributeAssertionError struct {
	Selector string
	Name     string
	Expected bool
	Value    string
}

func (e *AttributeAssertionError) Error() string {
	if e.Expected {
		return fmt.Sprintf("expected %s to have attribute %q", e.Selector, e.Name)
	}
	return fmt.Sprintf("expected %s not to have attribute %q, found %q", e.Selector, e.Name, e.Value)
}

// InspectionError wraps a failed style or markup query. Diagnostic callers
// downgrade it to a warning.
type InspectionError struct {
	Selector string
	Err      error
}

func (e *InspectionError) Error() string {
	return fmt.Sprintf("inspection of %s failed: %v", e.Selector, e.Err)
}

func (e *InspectionError) Unwrap() error { return e.Err }

type ConsoleErrorsError struct {
	Messages []ConsoleMessage
}

func (e *ConsoleErrorsError) Error() string {
	texts := lo.Map(e.Messages, func(m ConsoleMessage, _ int) string { return m.Text })
	return fmt.Sprintf("%d javascript error(s) in console: %s", len(e.Messages), strings.Join(texts, "; "))
}
