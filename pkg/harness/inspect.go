package harness

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// NoShadowRoot is returned by ShadowHTML for elements without an open
// shadow root.
const NoShadowRoot = "No shadow root found."

// StyleSnapshot is the computed style of the first element matching
// Selector. Found is false when nothing matched, in which case Properties is
// nil.
type StyleSnapshot struct {
	Selector   string            `json:"selector"`
	Pseudo     string            `json:"pseudo,omitempty"`
	Found      bool              `json:"found"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Subset returns only the named properties, in the snapshot's values.
// Properties the browser did not report are omitted.
func (s StyleSnapshot) Subset(props ...string) map[string]string {
	if len(props) == 0 {
		return s.Properties
	}
	return lo.PickByKeys(s.Properties, props)
}

// ComputedStyle returns every computed property of the first element
// matching selector, or of its pseudo-element when pseudo is set
// (e.g. "::before").
func (s *Session) ComputedStyle(selector, pseudo string) (StyleSnapshot, error) {
	snap := StyleSnapshot{Selector: selector, Pseudo: pseudo}
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	loc := CSS(selector).PickFirst()
	n, err := s.page.Count(ctx, loc.Target())
	if err != nil {
		return snap, &InspectionError{Selector: selector, Err: err}
	}
	if n == 0 {
		s.log.Warn(fmt.Sprintf("Element with selector '%s' not found.", selector))
		return snap, nil
	}
	res, err := s.page.EvalOn(ctx, loc.Target(), 0, computedStyleJS, lo.Ternary[any](pseudo != "", pseudo, nil))
	if err != nil {
		return snap, &InspectionError{Selector: selector, Err: err}
	}
	props, err := toStringMap(res)
	if err != nil {
		return snap, &InspectionError{Selector: selector, Err: err}
	}
	snap.Found = true
	snap.Properties = props
	return snap, nil
}

// ShadowHTML returns the serialized content of the open shadow root of the
// first element matching selector, or NoShadowRoot.
func (s *Session) ShadowHTML(selector string) (string, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	loc := CSS(selector).PickFirst()
	n, err := s.page.Count(ctx, loc.Target())
	if err != nil {
		return "", &InspectionError{Selector: selector, Err: err}
	}
	if n == 0 {
		return "", &ElementNotFoundError{Locator: loc.String()}
	}
	res, err := s.page.EvalOn(ctx, loc.Target(), 0, shadowHTMLJS, NoShadowRoot)
	if err != nil {
		return "", &InspectionError{Selector: selector, Err: err}
	}
	html, ok := res.(string)
	if !ok {
		return "", &InspectionError{Selector: selector, Err: errors.Errorf("unexpected shadow markup type %T", res)}
	}
	return html, nil
}

// Attribute reads an attribute of the element loc designates. present is
// false when the attribute is absent, which differs from an empty value.
func (s *Session) Attribute(loc Locator, name string) (value string, present bool, err error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	nth, err := loc.resolve(ctx, s.page)
	if err != nil {
		return "", false, err
	}
	res, err := s.page.EvalOn(ctx, loc.Target(), nth, attributeJS, name)
	if err != nil {
		return "", false, errors.Wrapf(err, "failed to read attribute %q of %s", name, loc)
	}
	if res == nil {
		return "", false, nil
	}
	value, ok := res.(string)
	if !ok {
		return "", false, errors.Errorf("attribute %q of %s has unexpected type %T", name, loc, res)
	}
	return value, true, nil
}

func (s *Session) ExpectAttribute(loc Locator, name string, present bool) error {
	value, found, err := s.Attribute(loc, name)
	if err != nil {
		return err
	}
	if found != present {
		return &AttributeAssertionError{Selector: loc.String(), Name: name, Expected: present, Value: value}
	}
	s.log.Info("Attribute check passed",
		zap.Stringer("locator", loc), zap.String("attribute", name), zap.Bool("present", present))
	s.transition(StateAsserted)
	return nil
}

func toStringMap(v any) (map[string]string, error) {
	raw, ok := v.(map[string]any)
	if !ok {
		return nil, errors.Errorf("unexpected computed style type %T", v)
	}
	return lo.MapValues(raw, func(val any, _ string) string {
		if str, ok := val.(string); ok {
			return str
		}
		return fmt.Sprintf("%v", val)
	}), nil
}
