// Package scenario describes verification runs declaratively and executes
// them step by step against a harness.Program.
package scenario

import (
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/integrail/ui-harness/pkg/harness"
)

type Scenario struct {
	Name               string            `json:"name" yaml:"name"`                                                    // unique name (required)
	Description        string            `json:"description,omitempty" yaml:"description,omitempty"`                  // what the run verifies
	URL                string            `json:"url,omitempty" yaml:"url,omitempty"`                                  // page to open (default: session origin)
	Ready              harness.Readiness `json:"ready,omitempty" yaml:"ready,omitempty"`                              // readiness signal (default: load event)
	Settle             time.Duration     `json:"settle,omitempty" yaml:"settle,omitempty"`                            // fixed delay after readiness; a workaround, prefer ready.visible
	FailOnConsoleError bool              `json:"failOnConsoleError,omitempty" yaml:"fail_on_console_error,omitempty"` // fail the run when the page logged an error
	Vars               map[string]string `json:"vars,omitempty" yaml:"vars,omitempty"`                                // defaults for ${name} placeholders
	Steps              []Step            `json:"steps" yaml:"steps"`
}

// Step is one action. Exactly one field must be set.
type Step struct {
	Click           *harness.Locator `json:"click,omitempty" yaml:"click,omitempty"`
	ExpectVisible   *VisibilityStep  `json:"expectVisible,omitempty" yaml:"expect_visible,omitempty"`
	ExpectHidden    *VisibilityStep  `json:"expectHidden,omitempty" yaml:"expect_hidden,omitempty"`
	ExpectAttribute *AttributeStep   `json:"expectAttribute,omitempty" yaml:"expect_attribute,omitempty"`
	// ExpectNoErrors prints the console captured so far and fails on errors.
	ExpectNoErrors  bool             `json:"expectNoConsoleErrors,omitempty" yaml:"expect_no_console_errors,omitempty"`
	Screenshot      string           `json:"screenshot,omitempty" yaml:"screenshot,omitempty"` // file path, relative to the output dir
	InjectStyle     *InjectStyleStep `json:"injectStyle,omitempty" yaml:"inject_style,omitempty"`
	DumpStyles      *DumpStylesStep  `json:"dumpStyles,omitempty" yaml:"dump_styles,omitempty"`
	DumpShadow      string           `json:"dumpShadow,omitempty" yaml:"dump_shadow,omitempty"` // selector of the shadow host
	Sleep           time.Duration    `json:"sleep,omitempty" yaml:"sleep,omitempty"`
	Log             string           `json:"log,omitempty" yaml:"log,omitempty"`
}

type VisibilityStep struct {
	harness.Locator `yaml:",inline"`
	Timeout         time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"` // overrides the session default
}

type AttributeStep struct {
	Locator harness.Locator `json:"locator" yaml:"locator"`
	Name    string          `json:"name" yaml:"name"`
	Present bool            `json:"present" yaml:"present"`
}

type InjectStyleStep struct {
	ID  string `json:"id,omitempty" yaml:"id,omitempty"` // style element id (default: session style id)
	CSS string `json:"css" yaml:"css"`                   // an empty value leaves the page untouched
}

type DumpStylesStep struct {
	Title   string                `json:"title,omitempty" yaml:"title,omitempty"`
	Targets []harness.StyleTarget `json:"targets" yaml:"targets"`
	Output  string                `json:"output,omitempty" yaml:"output,omitempty"` // also write the report to this file
}

// Kind returns the name of the action the step performs, or "" when none
// is set.
func (s Step) Kind() string {
	kinds := s.kinds()
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

func (s Step) kinds() []string {
	set := map[string]bool{
		"click":                    s.Click != nil,
		"expect_visible":           s.ExpectVisible != nil,
		"expect_hidden":            s.ExpectHidden != nil,
		"expect_attribute":         s.ExpectAttribute != nil,
		"expect_no_console_errors": s.ExpectNoErrors,
		"screenshot":               s.Screenshot != "",
		"inject_style":             s.InjectStyle != nil,
		"dump_styles":              s.DumpStyles != nil,
		"dump_shadow":              s.DumpShadow != "",
		"sleep":                    s.Sleep > 0,
		"log":                      s.Log != "",
	}
	kinds := lo.Keys(lo.PickBy(set, func(_ string, v bool) bool { return v }))
	sort.Strings(kinds)
	return kinds
}

func (s Step) Validate() error {
	kinds := s.kinds()
	switch len(kinds) {
	case 0:
		return errors.Errorf("step has no action")
	case 1:
	default:
		return errors.Errorf("step has several actions: %s", strings.Join(kinds, ", "))
	}
	switch {
	case s.Click != nil:
		return s.Click.Validate()
	case s.ExpectVisible != nil:
		return s.ExpectVisible.Locator.Validate()
	case s.ExpectHidden != nil:
		return s.ExpectHidden.Locator.Validate()
	case s.ExpectAttribute != nil:
		if s.ExpectAttribute.Name == "" {
			return errors.Errorf("expect_attribute needs an attribute name")
		}
		return s.ExpectAttribute.Locator.Validate()
	case s.DumpStyles != nil:
		if len(s.DumpStyles.Targets) == 0 {
			return errors.Errorf("dump_styles needs at least one target")
		}
		for _, t := range s.DumpStyles.Targets {
			if t.Selector == "" {
				return errors.Errorf("dump_styles target %q has no selector", t.Name)
			}
		}
	}
	return nil
}

func (sc *Scenario) Validate() error {
	if sc.Name == "" {
		return errors.Errorf("scenario has no name")
	}
	if sc.Ready.Visible != nil {
		if err := sc.Ready.Visible.Validate(); err != nil {
			return errors.Wrapf(err, "scenario %s: ready", sc.Name)
		}
	}
	for i, step := range sc.Steps {
		if err := step.Validate(); err != nil {
			return errors.Wrapf(err, "scenario %s: step %d", sc.Name, i+1)
		}
	}
	return nil
}

// Parse decodes a scenario and substitutes ${name} placeholders in every
// string value, using vars over the scenario's own defaults. Unknown
// placeholders are an error.
func Parse(data []byte, vars map[string]string) (*Scenario, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "failed to parse scenario")
	}
	var defaults struct {
		Vars map[string]string `yaml:"vars"`
	}
	if err := doc.Decode(&defaults); err != nil {
		return nil, errors.Wrapf(err, "failed to decode scenario vars")
	}
	values := lo.Assign(defaults.Vars, vars)

	var missing []string
	expandNode(&doc, func(name string) string {
		v, ok := values[name]
		if !ok {
			missing = append(missing, name)
		}
		return v
	})
	if len(missing) > 0 {
		return nil, errors.Errorf("undefined variables: %s", strings.Join(lo.Uniq(missing), ", "))
	}

	var sc Scenario
	if err := doc.Decode(&sc); err != nil {
		return nil, errors.Wrapf(err, "failed to decode scenario")
	}
	sc.Vars = values
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func LoadFile(path string, vars map[string]string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read scenario %s", path)
	}
	sc, err := Parse(data, vars)
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %s", path)
	}
	return sc, nil
}

// expandNode substitutes placeholders in string scalars, leaving the vars
// mapping itself alone.
func expandNode(n *yaml.Node, mapping func(string) string) {
	switch n.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, c := range n.Content {
			expandNode(c, mapping)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			if n.Content[i].Value == "vars" {
				continue
			}
			expandNode(n.Content[i+1], mapping)
		}
	case yaml.ScalarNode:
		if n.ShortTag() == "!!str" && strings.Contains(n.Value, "${") {
			n.Value = os.Expand(n.Value, mapping)
		}
	}
}
