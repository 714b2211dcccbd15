package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/amirbrooks/projects-docstore/internal/store"
)

// Opener hands paths to external programs.
type Opener interface {
	// Open opens a project folder with the configured open command.
	Open(path string, newWindow bool) error
	// Edit opens a file in the user's editor and waits for it to exit.
	Edit(path string) error
}

type execOpener struct {
	command   []string
	newWindow string
	editor    []string
}

func newExecOpener(cfg store.Config) *execOpener {
	return &execOpener{
		command:   strings.Fields(cfg.Open.Command),
		newWindow: strings.TrimSpace(cfg.Open.NewWindowFlag),
		editor:    strings.Fields(editorCommand(cfg)),
	}
}

// editorCommand picks the config editor, then $VISUAL, then $EDITOR, then vi.
func editorCommand(cfg store.Config) string {
	for _, e := range []string{cfg.Editor, os.Getenv("VISUAL"), os.Getenv("EDITOR")} {
		if strings.TrimSpace(e) != "" {
			return e
		}
	}
	return "vi"
}

func (o *execOpener) Open(path string, newWindow bool) error {
	if len(o.command) == 0 {
		return errors.New("open.command is empty")
	}
	args := append([]string{}, o.command[1:]...)
	if newWindow && o.newWindow != "" {
		args = append(args, o.newWindow)
	}
	args = append(args, path)
	cmd := exec.Command(o.command[0], args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	return nil
}

func (o *execOpener) Edit(path string) error {
	if len(o.editor) == 0 {
		return errors.New("no editor configured")
	}
	args := append(append([]string{}, o.editor[1:]...), path)
	cmd := exec.Command(o.editor[0], args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("edit %s: %w", path, err)
	}
	return nil
}
