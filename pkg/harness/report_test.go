package harness

import (
	"bytes"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/sebdah/goldie/v2"
)

func TestDiagnosticReportRender(t *testing.T) {
	RegisterTestingT(t)

	report := DiagnosticReport{
		Title: "Diagnostic Report",
		Sections: []ReportSection{
			{
				Target: StyleTarget{Name: "md-dialog", Selector: "md-dialog"},
				Found:  true,
				Styles: map[string]string{"z-index": "auto", "display": "block", "position": "fixed"},
			},
			{
				Target: StyleTarget{Name: ".container::before", Selector: "md-dialog dialog > .container", Pseudo: "::before"},
				Found:  true,
				Styles: map[string]string{"opacity": "1", "content": `""`},
			},
			{
				Target: StyleTarget{Name: ".scrim", Selector: "md-dialog .scrim"},
			},
			{
				Target: StyleTarget{Name: ".scroller", Selector: "md-dialog .scroller"},
				Error:  "inspection of md-dialog .scroller failed: Execution context was destroyed",
			},
		},
	}

	var buf bytes.Buffer
	Expect(report.Render(&buf)).To(Succeed())
	Expect(report.String()).To(Equal(buf.String()))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "diagnostic_report", buf.Bytes())
}
