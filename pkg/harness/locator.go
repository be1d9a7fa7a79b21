package harness

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/integrail/ui-harness/pkg/driver"
)

// Locator identifies the element a step acts on. Role locators match the
// accessible name exactly unless Substring is set. A locator matching more
// than one element is an error unless First or Index picks one.
type Locator struct {
	Role      string `json:"role,omitempty" yaml:"role,omitempty"`
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
	CSS       string `json:"css,omitempty" yaml:"css,omitempty"`
	Substring bool   `json:"substring,omitempty" yaml:"substring,omitempty"`
	First     bool   `json:"first,omitempty" yaml:"first,omitempty"`
	Index     *int   `json:"index,omitempty" yaml:"index,omitempty"`
}

func ByRole(role, name string) Locator {
	return Locator{Role: role, Name: name}
}

func CSS(selector string) Locator {
	return Locator{CSS: selector}
}

func (l Locator) PickFirst() Locator {
	l.First = true
	l.Index = nil
	return l
}

func (l Locator) Pick(i int) Locator {
	l.First = false
	l.Index = &i
	return l
}

func (l Locator) Target() driver.Locator {
	return driver.Locator{Role: l.Role, Name: l.Name, CSS: l.CSS, Exact: !l.Substring}
}

func (l Locator) Validate() error {
	if err := l.Target().Validate(); err != nil {
		return err
	}
	if l.Index != nil && *l.Index < 0 {
		return errors.Errorf("locator %s: negative index", l)
	}
	return nil
}

func (l Locator) String() string {
	s := l.Target().String()
	switch {
	case l.First:
		s += " >> first"
	case l.Index != nil:
		s += fmt.Sprintf(" >> nth=%d", *l.Index)
	}
	return s
}

// ParseLocator is the inverse of String: it accepts `role=button`,
// `role=button[name="Save File"]`, `role=button[name*="Save"]` (substring
// match), `css=md-dialog` or a bare CSS selector, optionally followed by
// ` >> first` or ` >> nth=N`.
func ParseLocator(s string) (Locator, error) {
	var l Locator
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, " >> "); i >= 0 {
		switch suffix := strings.TrimSpace(s[i+4:]); {
		case suffix == "first":
			l.First = true
		case strings.HasPrefix(suffix, "nth="):
			n, err := strconv.Atoi(strings.TrimPrefix(suffix, "nth="))
			if err != nil {
				return l, errors.Errorf("invalid locator %q: bad nth", s)
			}
			l.Index = &n
		default:
			return l, errors.Errorf("invalid locator %q: unknown modifier %q", s, suffix)
		}
		s = strings.TrimSpace(s[:i])
	}

	switch {
	case strings.HasPrefix(s, "role="):
		role := strings.TrimPrefix(s, "role=")
		if j := strings.IndexByte(role, '['); j >= 0 {
			filter := role[j:]
			role = role[:j]
			if !strings.HasSuffix(filter, "]") {
				return l, errors.Errorf("invalid locator %q: unterminated name filter", s)
			}
			filter = strings.TrimSuffix(filter, "]")
			switch {
			case strings.HasPrefix(filter, "[name*="):
				l.Substring = true
				filter = strings.TrimPrefix(filter, "[name*=")
			case strings.HasPrefix(filter, "[name="):
				filter = strings.TrimPrefix(filter, "[name=")
			default:
				return l, errors.Errorf("invalid locator %q: only name filters are supported", s)
			}
			name, err := strconv.Unquote(filter)
			if err != nil {
				return l, errors.Errorf("invalid locator %q: name must be quoted", s)
			}
			l.Name = name
		}
		l.Role = role
	case strings.HasPrefix(s, "css="):
		l.CSS = strings.TrimPrefix(s, "css=")
	default:
		l.CSS = s
	}
	return l, l.Validate()
}

// resolve returns the index of the single element the locator designates.
func (l Locator) resolve(ctx context.Context, page driver.Page) (int, error) {
	n, err := page.Count(ctx, l.Target())
	if err != nil {
		return 0, err
	}
	return l.pick(n)
}

func (l Locator) pick(count int) (int, error) {
	switch {
	case count == 0:
		return 0, &ElementNotFoundError{Locator: l.String()}
	case l.First:
		return 0, nil
	case l.Index != nil:
		if *l.Index >= count {
			return 0, &ElementNotFoundError{Locator: l.String()}
		}
		return *l.Index, nil
	case count > 1:
		return 0, &AmbiguousLocatorError{Locator: l.String(), Count: count}
	}
	return 0, nil
}
