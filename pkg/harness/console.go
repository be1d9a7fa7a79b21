package harness

import (
	"strings"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/integrail/ui-harness/pkg/driver"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type ConsoleMessage struct {
	Severity Severity `json:"severity" yaml:"severity"`
	Type     string   `json:"type" yaml:"type"` // backend message type, e.g. "log", "warning"
	Text     string   `json:"text" yaml:"text"`
}

func (m ConsoleMessage) String() string {
	return "BROWSER CONSOLE (" + strings.ToUpper(m.Type) + "): " + m.Text
}

func severityOf(msgType string) Severity {
	switch strings.ToLower(msgType) {
	case "error", "assert":
		return SeverityError
	case "warning", "warn":
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// ConsoleLog is the ordered record of everything a page printed to its
// console during a session. Events arrive on backend goroutines.
type ConsoleLog struct {
	mu       sync.Mutex
	messages []ConsoleMessage
	log      *zap.Logger
}

func NewConsoleLog(log *zap.Logger) *ConsoleLog {
	return &ConsoleLog{log: lo.Ternary(log != nil, log, zap.NewNop())}
}

func (c *ConsoleLog) record(ev driver.ConsoleEvent) {
	msg := ConsoleMessage{Severity: severityOf(ev.Type), Type: ev.Type, Text: ev.Text}

	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()

	switch msg.Severity {
	case SeverityError:
		c.log.Error(msg.String())
	case SeverityWarning:
		c.log.Warn(msg.String())
	default:
		c.log.Info(msg.String())
	}
}

// Messages returns a copy of the messages recorded so far.
func (c *ConsoleLog) Messages() []ConsoleMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ConsoleMessage(nil), c.messages...)
}

func (c *ConsoleLog) Errors() []ConsoleMessage {
	return lo.Filter(c.Messages(), func(m ConsoleMessage, _ int) bool {
		return m.Severity == SeverityError
	})
}
