// Package shell is an interactive console for poking at a live harness
// session: each line is a command such as click, visible or styles.
package shell

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/integrail/ui-harness/pkg/harness"
)

const maxMessages = 200

var headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF88")).Background(lipgloss.Color("#444444"))

type resultMsg struct {
	command string
	output  string
	err     error
}

// ReportMsg carries a progress line from the session into the shell.
type ReportMsg string

type Model struct {
	viewport       viewport.Model
	messages       []string
	textarea       textarea.Model
	senderStyle    lipgloss.Style
	responseStyle  lipgloss.Style
	errorStyle     lipgloss.Style
	ctx            context.Context
	program        harness.Program
	loader         spinner.Model
	inProgress     bool
	failures       int
	history        []string
	historyPointer int
}

func New(ctx context.Context, p harness.Program) *Model {
	ta := textarea.New()
	ta.Placeholder = "Type a command... (help for a list, Ctrl^C to exit, Up and Down for history)"
	ta.Focus()

	ta.Prompt = "┃ "
	ta.CharLimit = 1024

	ta.SetWidth(128)
	ta.SetHeight(3)

	// Remove cursor line styling
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()

	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	vp := viewport.New(160, 30)

	m := &Model{
		ctx:           ctx,
		program:       p,
		textarea:      ta,
		viewport:      vp,
		senderStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
		responseStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		errorStyle:    lipgloss.NewStyle().Background(lipgloss.Color("#330000")).Foreground(lipgloss.Color("#FF3333")),
		loader: spinner.New(
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("205"))),
			spinner.WithSpinner(spinner.Dot),
		),
	}
	m.messages = append(m.messages, m.responseStyle.Render("Browser: ")+"Connected to "+p.Origin()+", type help for a list of commands.")
	m.updateMessages()
	return m
}

// Failures is the number of commands that returned an error.
func (m *Model) Failures() int {
	return m.failures
}

func (m *Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.ctx.Err() != nil {
		return m, tea.Quit
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)
	if !m.inProgress {
		m.textarea, tiCmd = m.textarea.Update(msg)
	}
	m.viewport, vpCmd = m.viewport.Update(msg)

	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !m.inProgress {
			return m, nil
		}
		var cmd tea.Cmd
		m.loader, cmd = m.loader.Update(msg)
		return m, cmd
	case resultMsg:
		m.inProgress = false
		m.processResult(msg)
		return m, nil
	case ReportMsg:
		m.messages = append(m.messages, m.responseStyle.Render("Browser: ")+string(msg))
		m.updateMessages()
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyUp:
			if m.historyPointer < len(m.history) {
				m.historyPointer++
				m.textarea.SetValue(m.history[len(m.history)-m.historyPointer])
			}
		case tea.KeyDown:
			if m.historyPointer > 0 {
				m.historyPointer--
			}
			if m.historyPointer > 0 {
				m.textarea.SetValue(m.history[len(m.history)-m.historyPointer])
			} else {
				m.textarea.SetValue("")
			}
		case tea.KeyEnter:
			if m.inProgress {
				return m, nil
			}
			line := strings.TrimSpace(m.textarea.Value())
			m.textarea.Reset()
			if line == "" {
				return m, nil
			}
			if line == "exit" || line == "quit" {
				return m, tea.Quit
			}
			m.history = append(m.history, line)
			m.historyPointer = 0
			m.messages = append(m.messages, m.senderStyle.Render("You: ")+line)
			m.updateMessages()
			m.inProgress = true
			return m, tea.Batch(m.loader.Tick, m.exec(line))
		}
	}

	return m, tea.Batch(tiCmd, vpCmd)
}

func (m *Model) exec(line string) tea.Cmd {
	p := m.program
	return func() tea.Msg {
		out, err := Exec(p, line)
		return resultMsg{command: line, output: out, err: err}
	}
}

func (m *Model) processResult(res resultMsg) {
	defer m.updateMessages()
	if res.err != nil {
		m.failures++
		m.messages = append(m.messages, m.errorStyle.Render("ERROR: "+res.err.Error()))
		return
	}
	if res.output != "" {
		m.messages = append(m.messages, m.responseStyle.Render("Browser: ")+res.output)
	}
}

func (m *Model) updateMessages() {
	if len(m.messages) > maxMessages {
		m.messages = m.messages[len(m.messages)-maxMessages:]
	}
	m.viewport.SetContent(strings.Join(m.messages, "\n"))
	m.viewport.GotoBottom()
}

func (m *Model) View() string {
	dialogView := m.textarea.View()
	if m.inProgress {
		dialogView = m.loader.View() + " running..."
	}
	header := headerStyle.Render("Origin: " + m.program.Origin())
	if errs := len(m.program.ConsoleErrors()); errs > 0 {
		header += headerStyle.Render(fmt.Sprintf("; console errors: %d", errs))
	}
	return header + fmt.Sprintf(
		"\n\n%s\n\n%s",
		m.viewport.View(),
		dialogView,
	) + "\n\n"
}

// Reporter forwards session progress lines to a running tea.Program.
type Reporter struct {
	Program *tea.Program
}

func (r Reporter) Report(msg string) {
	if r.Program != nil {
		r.Program.Send(ReportMsg(msg))
	}
}
