package scenario_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/integrail/ui-harness/pkg/driver"
	"github.com/integrail/ui-harness/pkg/driver/cdp"
	"github.com/integrail/ui-harness/pkg/driver/pw"
	"github.com/integrail/ui-harness/pkg/driver/rod"
	"github.com/integrail/ui-harness/pkg/fixture"
	"github.com/integrail/ui-harness/pkg/harness"
	"github.com/integrail/ui-harness/pkg/scenario"
)

// These tests drive a real Chromium against the fixture server and need
// UI_HARNESS_E2E=1 plus an installed browser.
func e2e(t *testing.T) string {
	t.Helper()
	if os.Getenv("UI_HARNESS_E2E") != "1" {
		t.Skip("set UI_HARNESS_E2E=1 to run browser tests")
	}
	srv, err := fixture.Start("127.0.0.1:0", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv.URL()
}

var launchers = map[string]driver.Launcher{
	"playwright": pw.Launch,
	"rod":        rod.Launch,
	"chromedp":   cdp.Launch,
}

func TestE2EBuiltins(t *testing.T) {
	origin := e2e(t)

	for driverName, launch := range launchers {
		for _, name := range scenario.BuiltinNames() {
			t.Run(driverName+"/"+name, func(t *testing.T) {
				RegisterTestingT(t)

				sc, err := scenario.Builtin(name, map[string]string{"css": "md-dialog { outline: 2px solid red; }"})
				Expect(err).To(BeNil())
				out := t.TempDir()

				err = harness.Run(context.Background(), launch, origin, func(s *harness.Session) error {
					_, err := scenario.Run(s, sc, scenario.WithOutputDir(out))
					return err
				}, harness.WithOutputDir(out), harness.WithTimeout(10*time.Second))
				Expect(err).To(BeNil())

				for _, step := range sc.Steps {
					if step.Screenshot != "" {
						Expect(filepath.Join(out, step.Screenshot)).To(BeAnExistingFile())
					}
				}
			})
		}
	}
}

func TestE2EBrokenPageFailsComponents(t *testing.T) {
	origin := e2e(t)

	for driverName, launch := range launchers {
		t.Run(driverName, func(t *testing.T) {
			RegisterTestingT(t)

			sc, err := scenario.Builtin("components", nil)
			Expect(err).To(BeNil())
			sc.URL = origin + "/broken"
			sc.Settle = 500 * time.Millisecond

			err = harness.Run(context.Background(), launch, origin, func(s *harness.Session) error {
				_, err := scenario.Run(s, sc, scenario.WithOutputDir(t.TempDir()))
				return err
			}, harness.WithOutputDir(t.TempDir()))

			var consoleErr *harness.ConsoleErrorsError
			Expect(errors.As(err, &consoleErr)).To(BeTrue())
			Expect(consoleErr.Messages[0].Text).To(ContainSubstring("component failed to mount"))
		})
	}
}

func TestE2EShadowAndStyles(t *testing.T) {
	origin := e2e(t)

	for driverName, launch := range launchers {
		t.Run(driverName, func(t *testing.T) {
			RegisterTestingT(t)

			err := harness.Run(context.Background(), launch, origin, func(s *harness.Session) error {
				Expect(s.Navigate(origin, harness.Readiness{})).To(Succeed())
				Expect(s.Click(harness.ByRole("button", "Save File"))).To(Succeed())
				Expect(s.WaitVisible(harness.CSS("md-dialog"))).To(Succeed())

				html, err := s.ShadowHTML("md-dialog")
				Expect(err).To(BeNil())
				Expect(html).To(ContainSubstring(`class="scroller"`))

				html, err = s.ShadowHTML("h1")
				Expect(err).To(BeNil())
				Expect(html).To(Equal(harness.NoShadowRoot))

				snap, err := s.ComputedStyle("md-dialog .scrim", "")
				Expect(err).To(BeNil())
				Expect(snap.Found).To(BeTrue())
				Expect(snap.Subset("position")).To(HaveKeyWithValue("position", "fixed"))

				snap, err = s.ComputedStyle(".does-not-exist", "")
				Expect(err).To(BeNil())
				Expect(snap.Found).To(BeFalse())

				Expect(s.InjectStyle("md-dialog { z-index: 1000; }")).To(Succeed())
				Expect(s.InjectStyle("md-dialog { z-index: 2000; }")).To(Succeed())
				snap, err = s.ComputedStyle("md-dialog", "")
				Expect(err).To(BeNil())
				Expect(snap.Properties).To(HaveKeyWithValue("z-index", "2000"))
				return nil
			}, harness.WithOutputDir(t.TempDir()))
			Expect(err).To(BeNil())
		})
	}
}
