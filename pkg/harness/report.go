package harness

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// StyleTarget names an element whose computed style goes into a diagnostic
// report. An empty Properties list means every property.
type StyleTarget struct {
	Name       string   `json:"name" yaml:"name"`
	Selector   string   `json:"selector" yaml:"selector"`
	Pseudo     string   `json:"pseudo,omitempty" yaml:"pseudo,omitempty"`
	Properties []string `json:"properties,omitempty" yaml:"properties,omitempty"`
}

type ReportSection struct {
	Target StyleTarget       `json:"target"`
	Found  bool              `json:"found"`
	Styles map[string]string `json:"styles,omitempty"`
	Error  string            `json:"error,omitempty"`
}

type DiagnosticReport struct {
	Title    string          `json:"title"`
	Sections []ReportSection `json:"sections"`
}

// Diagnose collects computed styles for every target. It never fails:
// missing elements and inspection failures are recorded in the section and
// logged as warnings so the rest of the report is still produced.
func Diagnose(p Program, title string, targets []StyleTarget) DiagnosticReport {
	log := p.Logger()
	report := DiagnosticReport{Title: title}
	for _, t := range targets {
		section := ReportSection{Target: t}
		snap, err := p.ComputedStyle(t.Selector, t.Pseudo)
		switch {
		case err != nil:
			log.Warn(fmt.Sprintf("Could not get styles for '%s'", t.Name), zap.Error(err))
			section.Error = err.Error()
		case !snap.Found:
			log.Warn(fmt.Sprintf("Element '%s' with selector '%s' not found.", t.Name, t.Selector))
		default:
			section.Found = true
			section.Styles = snap.Subset(t.Properties...)
		}
		report.Sections = append(report.Sections, section)
	}
	return report
}

func (t StyleTarget) label() string {
	sel := t.Selector + t.Pseudo
	name := t.Name
	if name == "" {
		name = sel
	}
	return fmt.Sprintf("%s (%s)", name, sel)
}

// Render writes the report as plain text with one indented JSON object per
// found element.
func (r DiagnosticReport) Render(w io.Writer) error {
	var b strings.Builder
	title := strings.ToUpper(r.Title)
	fmt.Fprintf(&b, "--- %s ---\n", title)
	for _, s := range r.Sections {
		fmt.Fprintf(&b, "\nComputed styles for: %s\n", s.Target.label())
		switch {
		case s.Error != "":
			fmt.Fprintf(&b, "error: %s\n", s.Error)
		case !s.Found:
			b.WriteString("not found\n")
		default:
			styles, err := json.MarshalIndent(s.Styles, "", "  ")
			if err != nil {
				return errors.Wrapf(err, "failed to encode styles for %s", s.Target.Selector)
			}
			b.Write(styles)
			b.WriteString("\n")
		}
	}
	fmt.Fprintf(&b, "\n--- END %s ---\n", title)
	_, err := io.WriteString(w, b.String())
	return err
}

func (r DiagnosticReport) String() string {
	var b strings.Builder
	_ = r.Render(&b)
	return b.String()
}
