package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/amirbrooks/projects-docstore/internal/discovery"
	"github.com/amirbrooks/projects-docstore/internal/logging"
	"github.com/amirbrooks/projects-docstore/internal/refresh"
	"github.com/amirbrooks/projects-docstore/internal/registry"
	"github.com/amirbrooks/projects-docstore/internal/store"
	"github.com/amirbrooks/projects-docstore/internal/ui"
)

// Exit codes
const (
	ExitOK       = 0
	ExitUsage    = 2
	ExitNotFound = 3
	ExitConflict = 4
	ExitInternal = 10
)

type GlobalFlags struct {
	Root       string
	JSON       bool
	StdoutJSON bool
	ExportDir  string
	Plain      bool
	Quiet      bool
	Verbose    bool
}

// Deps are the collaborators a command run talks to. Zero fields get the
// interactive defaults.
type Deps struct {
	Stdout    io.Writer
	Stderr    io.Writer
	Prompter  ui.Prompter
	Opener    Opener
	Describer registry.Describer
	Getwd     func() (string, error)
	// Sources overrides the discovery sources built from the config.
	Sources func(cfg store.Config, log *zap.Logger) []refresh.Source
}

type app struct {
	gf   GlobalFlags
	deps Deps
	ws   *store.Workspace
	log  *zap.Logger
	out  io.Writer
	err  io.Writer
}

// exitError carries the process exit code for err.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

func usageError(format string, args ...any) error {
	return withCode(ExitUsage, fmt.Errorf(format, args...))
}

func Run(args []string) int {
	return run(context.Background(), args, Deps{})
}

func run(ctx context.Context, args []string, deps Deps) int {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Getwd == nil {
		deps.Getwd = os.Getwd
	}
	if deps.Describer == nil {
		deps.Describer = discovery.PathDescriber{}
	}
	if deps.Sources == nil {
		deps.Sources = defaultSources
	}
	a := &app{deps: deps, out: deps.Stdout, err: deps.Stderr, log: zap.NewNop()}

	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(deps.Stdout)
	root.SetErr(deps.Stderr)
	err := root.ExecuteContext(ctx)
	_ = a.log.Sync()
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, ui.ErrCancelled) {
		return ExitOK
	}
	code := exitCode(err)
	fmt.Fprintln(deps.Stderr, "projects:", err)
	if code == ExitUsage {
		fmt.Fprintln(deps.Stderr, "Run 'projects --help' for usage.")
	}
	return code
}

func exitCode(err error) int {
	var ee *exitError
	switch {
	case errors.As(err, &ee):
		return ee.code
	case errors.Is(err, store.ErrNotFound), errors.Is(err, refresh.ErrNothingToMerge):
		return ExitNotFound
	case strings.HasPrefix(err.Error(), "unknown command"), strings.HasPrefix(err.Error(), "unknown flag"):
		return ExitUsage
	default:
		return ExitInternal
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "projects",
		Short: "Keep a registry of your projects, grouped, merged with what is found on disk",
		Long: `projects keeps a registry of development projects organized into groups.

Projects are discovered in the configured refresh roots and in Git Tower
bookmarks, merged into the registry without touching what you already
curated, and opened from an interactive picker.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return withCode(ExitUsage, err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.gf.Root, "root", defaultRoot(), "store root (PROJECTS_ROOT)")
	pf.BoolVar(&a.gf.JSON, "json", false, "write JSON output to <root>/exports")
	pf.BoolVar(&a.gf.StdoutJSON, "stdout-json", false, "allow JSON to stdout (requires --json)")
	pf.StringVar(&a.gf.ExportDir, "export-dir", "", "override export directory (default: <root>/exports)")
	pf.BoolVar(&a.gf.Plain, "plain", false, "TSV output")
	pf.BoolVarP(&a.gf.Quiet, "quiet", "q", false, "only print warnings and errors")
	pf.BoolVarP(&a.gf.Verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		a.initCmd(),
		a.editCmd(),
		a.openCmd(),
		a.refreshCmd(),
		a.saveCmd(),
		a.removeCmd(),
		a.switchGroupCmd(),
		a.listCmd(),
		a.groupCmd(),
		a.moveCmd(),
	)
	return root
}

func defaultRoot() string {
	if env := os.Getenv("PROJECTS_ROOT"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	if home != "" {
		return filepath.Join(home, ".projects")
	}
	return ".projects"
}

// setup validates the global flags and opens the workspace before any
// command runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if a.gf.StdoutJSON && !a.gf.JSON {
		return usageError("--stdout-json requires --json")
	}
	if a.gf.Quiet && a.gf.Verbose {
		return usageError("--quiet and --verbose are mutually exclusive")
	}
	if a.gf.ExportDir == "" {
		a.gf.ExportDir = filepath.Join(store.ExpandHome(a.gf.Root), "exports")
	}
	a.log = logging.New(logging.Options{Verbose: a.gf.Verbose, Quiet: a.gf.Quiet, Out: a.err})

	ws, err := store.Open(a.gf.Root)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.ws = ws
	if a.deps.Prompter == nil {
		a.deps.Prompter = ui.NewTerminal()
	}
	if a.deps.Opener == nil {
		a.deps.Opener = newExecOpener(ws.Config())
	}
	a.log.Debug("store opened",
		zap.String("root", ws.Root),
		zap.String("registry", ws.RegistryPath()),
		zap.String("group", ws.Config().Group))
	return nil
}

// emit writes payload as JSON when --json is set and calls human otherwise.
func (a *app) emit(base string, payload any, human func(w io.Writer)) error {
	if !a.gf.JSON {
		human(a.out)
		return nil
	}
	if a.gf.StdoutJSON {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}
	path, err := writeJSONExport(a.gf, base, payload)
	if err != nil {
		return err
	}
	if !a.gf.Quiet {
		fmt.Fprintln(a.out, "Wrote JSON to:", path)
	}
	return nil
}

// say prints a status line unless --quiet or --json is set.
func (a *app) say(format string, args ...any) {
	if a.gf.Quiet || a.gf.JSON {
		return
	}
	fmt.Fprintf(a.out, format+"\n", args...)
}

func writeJSONExport(gf GlobalFlags, base string, payload any) (string, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return writeExportFile(gf.ExportDir, base, "json", data)
}

func writeExportFile(dir, base, ext string, data []byte) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", errors.New("export directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	t := time.Now().UTC()
	ts := t.Format("20060102-150405")
	name := fmt.Sprintf("%s-%s.%s", base, ts, ext)
	path := filepath.Join(dir, name)
	for i := 1; ; i++ {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			break
		}
		name = fmt.Sprintf("%s-%s-%d.%s", base, ts, i, ext)
		path = filepath.Join(dir, name)
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".tmp-%d", time.Now().UTC().UnixNano()))
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return path, nil
}
