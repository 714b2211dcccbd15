package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	buttonStyle       = lipgloss.NewStyle().Padding(0, 2).MarginRight(1).Foreground(lipgloss.Color("252")).Background(lipgloss.Color("238"))
	activeButtonStyle = buttonStyle.Foreground(lipgloss.Color("#FFFDF5")).Background(lipgloss.Color("#25A065")).Bold(true)
)

type confirmModel struct {
	message   string
	buttons   []string
	cursor    int
	done      bool
	cancelled bool
}

func newConfirmModel(message string, buttons []string) confirmModel {
	if len(buttons) == 0 {
		buttons = []string{"OK"}
	}
	return confirmModel{message: message, buttons: buttons}
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch k.String() {
	case "left", "h", "shift+tab":
		m.cursor = (m.cursor + len(m.buttons) - 1) % len(m.buttons)
	case "right", "l", "tab":
		m.cursor = (m.cursor + 1) % len(m.buttons)
	case "enter":
		m.done = true
		return m, tea.Quit
	case "esc", "ctrl+c", "q":
		m.cancelled = true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	rendered := make([]string, len(m.buttons))
	for i, b := range m.buttons {
		style := buttonStyle
		if i == m.cursor {
			style = activeButtonStyle
		}
		rendered[i] = style.Render(b)
	}
	var sb strings.Builder
	sb.WriteString(labelStyle.Render(m.message))
	sb.WriteString("\n\n")
	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, rendered...))
	sb.WriteString("\n")
	return sb.String()
}

// Choice returns the label of the focused button.
func (m confirmModel) Choice() string {
	return m.buttons[m.cursor]
}
