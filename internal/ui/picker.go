package ui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amirbrooks/projects-docstore/internal/registry"
)

// pickerItem wraps a selection entry for the list.
type pickerItem struct {
	entry registry.Entry
}

func (i pickerItem) Title() string {
	if i.entry.Kind == registry.GroupEntry {
		return "▸ " + i.entry.Name
	}
	return i.entry.Name
}

func (i pickerItem) Description() string {
	if i.entry.Kind == registry.GroupEntry {
		return "group"
	}
	if i.entry.Description != "" {
		return i.entry.Description
	}
	return i.entry.Path
}

func (i pickerItem) FilterValue() string {
	return i.entry.Name + " " + i.entry.Description + " " + i.entry.Path
}

type PickerResult struct {
	Selected  *registry.Entry
	Cancelled bool
}

type pickerModel struct {
	list     list.Model
	result   PickerResult
	quitting bool
}

type pickerKeyMap struct {
	Enter  key.Binding
	Cancel key.Binding
	Quit   key.Binding
}

var pickerKeys = pickerKeyMap{
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "select"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
}

func newPickerModel(entries []registry.Entry, placeholder string) pickerModel {
	items := make([]list.Item, len(entries))
	for i, e := range entries {
		items[i] = pickerItem{entry: e}
	}
	l := list.New(items, list.NewDefaultDelegate(), 80, 20)
	l.Title = placeholder
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle
	return pickerModel{list: l}
}

func (m pickerModel) Init() tea.Cmd { return nil }

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h, v := pickerStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v)
		return m, nil

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		// esc on a filtered list falls through and clears the filter.
		switch {
		case key.Matches(msg, pickerKeys.Quit),
			key.Matches(msg, pickerKeys.Cancel) && m.list.FilterState() == list.Unfiltered:
			m.result.Cancelled = true
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, pickerKeys.Enter):
			if item, ok := m.list.SelectedItem().(pickerItem); ok {
				e := item.entry
				m.result.Selected = &e
			}
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

var (
	pickerStyle = lipgloss.NewStyle().Padding(1, 2)
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFDF5")).Background(lipgloss.Color("#25A065")).Padding(0, 1)
)

func (m pickerModel) View() string {
	if m.quitting {
		return ""
	}
	return pickerStyle.Render(m.list.View())
}

func (m pickerModel) Result() PickerResult {
	return m.result
}
