package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"
	"go.uber.org/zap"
)

func TestNewWithWriter(t *testing.T) {
	RegisterTestingT(t)

	var buf bytes.Buffer
	log, err := NewWithWriter("warn", &buf)
	Expect(err).To(BeNil())

	log.Info("hidden")
	log.Warn("Element with selector 'md-dialog' not found.", zap.String("run_id", "r1"))
	Expect(log.Sync()).To(Succeed())

	out := buf.String()
	Expect(out).NotTo(ContainSubstring("hidden"))
	Expect(out).To(ContainSubstring("WARN"))
	Expect(out).To(ContainSubstring("Element with selector 'md-dialog' not found."))
	Expect(out).To(ContainSubstring(`{"run_id": "r1"}`))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	RegisterTestingT(t)

	_, err := New("loud")
	Expect(err).To(MatchError(ContainSubstring(`invalid log level "loud"`)))
}

func TestLevelsAreNotColoredOutsideTerminals(t *testing.T) {
	RegisterTestingT(t)

	Expect(isTerminal(&bytes.Buffer{})).To(BeFalse())

	f, err := os.Create(filepath.Join(t.TempDir(), "harness.log"))
	Expect(err).To(BeNil())
	defer f.Close()
	Expect(isTerminal(f)).To(BeFalse())

	log, err := NewWithWriter("info", f)
	Expect(err).To(BeNil())
	log.Error("JavaScript errors found in console")
	Expect(log.Sync()).To(Succeed())

	data, err := os.ReadFile(f.Name())
	Expect(err).To(BeNil())
	Expect(string(data)).To(ContainSubstring("\tERROR\t"))
	Expect(string(data)).NotTo(ContainSubstring("\x1b["))
}
