package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	labelStyle = lipgloss.NewStyle().Bold(true)
	hintStyle  = lipgloss.NewStyle().Faint(true)
)

type inputModel struct {
	label     string
	input     textinput.Model
	done      bool
	cancelled bool
}

func newInputModel(p InputPrompt) inputModel {
	ti := textinput.New()
	ti.Placeholder = p.Placeholder
	ti.SetValue(p.Value)
	ti.CursorEnd()
	ti.Focus()
	ti.Width = 60
	return inputModel{label: p.Label, input: ti}
}

func (m inputModel) Init() tea.Cmd { return textinput.Blink }

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyEsc, tea.KeyCtrlC:
			m.cancelled = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m inputModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	var b strings.Builder
	if m.label != "" {
		b.WriteString(labelStyle.Render(m.label))
		b.WriteString("\n")
	}
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(hintStyle.Render("enter confirm • esc cancel"))
	b.WriteString("\n")
	return b.String()
}

// Value returns the trimmed text entered so far.
func (m inputModel) Value() string {
	return strings.TrimSpace(m.input.Value())
}
