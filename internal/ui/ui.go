// Package ui holds the interactive terminal prompts: a filterable picker for
// selection entries, a single-line input and a button confirm.
package ui

import (
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/amirbrooks/projects-docstore/internal/registry"
)

// ErrCancelled is returned when the user dismisses a prompt.
var ErrCancelled = errors.New("cancelled")

type InputPrompt struct {
	Label       string
	Placeholder string
	Value       string
}

// Prompter asks the user for decisions. Every method returns ErrCancelled
// when the prompt is dismissed.
type Prompter interface {
	Pick(entries []registry.Entry, placeholder string) (registry.Entry, error)
	Input(p InputPrompt) (string, error)
	// Confirm shows message with the given buttons and returns the label of
	// the chosen one.
	Confirm(message string, buttons ...string) (string, error)
}

// Terminal runs each prompt as a bubbletea program.
type Terminal struct {
	In  io.Reader
	Out io.Writer
}

func NewTerminal() *Terminal {
	return &Terminal{In: os.Stdin, Out: os.Stderr}
}

func (t *Terminal) Pick(entries []registry.Entry, placeholder string) (registry.Entry, error) {
	if len(entries) == 0 {
		return registry.Entry{}, fmt.Errorf("nothing to pick")
	}
	final, err := t.run(newPickerModel(entries, placeholder), true)
	if err != nil {
		return registry.Entry{}, err
	}
	res := final.(pickerModel).Result()
	if res.Cancelled || res.Selected == nil {
		return registry.Entry{}, ErrCancelled
	}
	return *res.Selected, nil
}

func (t *Terminal) Input(p InputPrompt) (string, error) {
	final, err := t.run(newInputModel(p), false)
	if err != nil {
		return "", err
	}
	m := final.(inputModel)
	if m.cancelled {
		return "", ErrCancelled
	}
	return m.Value(), nil
}

func (t *Terminal) Confirm(message string, buttons ...string) (string, error) {
	final, err := t.run(newConfirmModel(message, buttons), false)
	if err != nil {
		return "", err
	}
	m := final.(confirmModel)
	if m.cancelled {
		return "", ErrCancelled
	}
	return m.Choice(), nil
}

func (t *Terminal) run(m tea.Model, altScreen bool) (tea.Model, error) {
	opts := []tea.ProgramOption{}
	if t.In != nil {
		opts = append(opts, tea.WithInput(t.In))
	}
	if t.Out != nil {
		opts = append(opts, tea.WithOutput(t.Out))
	}
	if altScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	final, err := tea.NewProgram(m, opts...).Run()
	if err != nil {
		return nil, fmt.Errorf("prompt: %w", err)
	}
	return final, nil
}
