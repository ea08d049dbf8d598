// Package tui is the interactive transport shell: a three-pane bubbletea
// program (transcript, input line, task-tree right pane). It follows The
// Elm Architecture and contains no orchestration logic — every input is
// parsed by the command adapter and executed through the Driver, which the
// CLI wires to the capability dispatcher and orchestration service.
package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Driver is the TUI's only gateway to the core. Implementations route
// through the transport adapter and capability dispatcher.
type Driver interface {
	// Submit handles one line of input and returns transcript lines.
	Submit(line string) ([]string, bool)

	// RightPane renders the task-tree projection at the given width.
	RightPane(width int) []string

	// Title is the session heading shown above the transcript.
	Title() string
}

// Styles for the three panes.
var (
	paneStyle = lipgloss.NewStyle(). //nolint:gochecknoglobals // Static styles
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)

	focusedPaneStyle = paneStyle. //nolint:gochecknoglobals // Static styles
				BorderForeground(lipgloss.Color("205"))

	titleStyle = lipgloss.NewStyle(). //nolint:gochecknoglobals // Static styles
			Bold(true).
			Foreground(lipgloss.Color("230"))
)

type focusedPane int

const (
	focusInput focusedPane = iota
	focusTranscript
	focusRightPane
)

// Model is the bubbletea model for the interactive shell.
type Model struct {
	driver Driver

	transcript viewport.Model
	rightPane  viewport.Model
	input      textinput.Model

	lines []string
	focus focusedPane

	width  int
	height int
	ready  bool
}

// NewModel creates the interactive shell model.
func NewModel(driver Driver) Model {
	input := textinput.New()
	input.Placeholder = "message the planner, or /start, /split-audits, /quit ..."
	input.Focus()

	return Model{
		driver: driver,
		input:  input,
		lines:  []string{"Welcome. Type a message or a /command."},
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		m.ready = true
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyTab:
			m.focus = (m.focus + 1) % 3
			return m, nil
		case tea.KeyEnter:
			if m.focus == focusInput {
				return m.submit()
			}
		}
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusInput:
		m.input, cmd = m.input.Update(msg)
	case focusTranscript:
		m.transcript, cmd = m.transcript.Update(msg)
	case focusRightPane:
		m.rightPane, cmd = m.rightPane.Update(msg)
	}
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	if line == "" {
		return m, nil
	}
	m.input.SetValue("")
	m.lines = append(m.lines, "> "+line)

	out, quit := m.driver.Submit(line)
	m.lines = append(m.lines, out...)
	m.refresh()
	if quit {
		return m, tea.Quit
	}
	return m, nil
}

// layout recomputes pane sizes after a resize.
func (m *Model) layout() {
	leftWidth := m.width * 2 / 3
	rightWidth := m.width - leftWidth - 4
	bodyHeight := m.height - 6
	if bodyHeight < 3 {
		bodyHeight = 3
	}

	m.transcript = viewport.New(leftWidth-2, bodyHeight)
	m.rightPane = viewport.New(rightWidth, bodyHeight)
	m.input.Width = leftWidth - 4
	m.refresh()
}

// refresh re-renders both viewports from current state.
func (m *Model) refresh() {
	m.transcript.SetContent(strings.Join(m.lines, "\n"))
	m.transcript.GotoBottom()
	if m.rightPane.Width > 0 {
		m.rightPane.SetContent(strings.Join(m.driver.RightPane(m.rightPane.Width), "\n"))
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}

	transcriptPane := m.styleFor(focusTranscript).Render(m.transcript.View())
	rightPaneView := m.styleFor(focusRightPane).Render(m.rightPane.View())
	inputPane := m.styleFor(focusInput).Render(m.input.View())

	left := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(m.driver.Title()),
		transcriptPane,
		inputPane,
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, rightPaneView)
}

func (m Model) styleFor(pane focusedPane) lipgloss.Style {
	if m.focus == pane {
		return focusedPaneStyle
	}
	return paneStyle
}

// Run starts the interactive program.
func Run(driver Driver) error {
	program := tea.NewProgram(NewModel(driver), tea.WithAltScreen())
	_, err := program.Run()
	return err
}
