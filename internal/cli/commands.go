package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/amirbrooks/projects-docstore/internal/discovery"
	"github.com/amirbrooks/projects-docstore/internal/refresh"
	"github.com/amirbrooks/projects-docstore/internal/registry"
	"github.com/amirbrooks/projects-docstore/internal/store"
	"github.com/amirbrooks/projects-docstore/internal/ui"
)

const (
	msgNoProjects   = "No projects defined, refresh them or edit the configuration"
	msgNothingFound = `No projects found, add some paths to the "refresh.roots" setting`
	msgNotSaved     = "This project has not been saved, yet"
	msgNameRequired = "You must provide a name for the project."
	buttonRefresh   = "Refresh"
	buttonEdit      = "Edit"
	buttonRemove    = "Remove"
)

func (a *app) initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the store with a sample registry",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			created, err := a.ws.Init(force)
			if err != nil {
				return fmt.Errorf("init: %w", err)
			}
			a.say("Initialized projects store at: %s", a.ws.Root)
			if created {
				a.say("Wrote sample registry to: %s", a.ws.RegistryPath())
			} else {
				a.say("Registry already exists: %s (use --force to overwrite)", a.ws.RegistryPath())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing registry with the sample")
	return cmd
}

func (a *app) editCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Open the registry file in your editor",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.edit()
		},
	}
}

// edit opens the registry file, writing the sample first when there is none.
func (a *app) edit() error {
	if !a.ws.HasRegistry() {
		if _, err := a.ws.Init(false); err != nil {
			return fmt.Errorf("edit: %w", err)
		}
	}
	return a.deps.Opener.Edit(a.ws.RegistryPath())
}

type openOptions struct {
	newWindow  bool
	print      bool
	onlyGroups bool
}

func (a *app) openCmd() *cobra.Command {
	var opts openOptions
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Pick a project to open or a group to enter",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context(), opts)
		},
	}
	cmd.Flags().BoolVarP(&opts.newWindow, "new-window", "n", false, "open the project in a new window")
	cmd.Flags().BoolVar(&opts.print, "print", false, "print the selected path instead of opening it")
	return cmd
}

func (a *app) open(ctx context.Context, opts openOptions) error {
	r, err := a.ws.ReadRegistry()
	if err != nil {
		return err
	}
	sel := registry.BuildSelection(r, registry.SelectionOptions{
		ActiveGroup: a.ws.Config().Group,
		OnlyGroups:  opts.onlyGroups,
	})

	if sel.Empty() {
		choice, err := a.deps.Prompter.Confirm(msgNoProjects, buttonRefresh, buttonEdit)
		if err != nil {
			return err
		}
		switch choice {
		case buttonRefresh:
			return a.refresh(ctx, true)
		case buttonEdit:
			return a.edit()
		}
		return nil
	}

	entry, err := a.deps.Prompter.Pick(sel.Entries, sel.Placeholder())
	if err != nil {
		return err
	}
	if entry.Kind == registry.GroupEntry {
		if err := a.ws.SetActiveGroup(entry.Name); err != nil {
			return fmt.Errorf("switch group: %w", err)
		}
		a.log.Debug("active group changed", zap.String("group", entry.Name))
		a.say("Switched to group %q", entry.Name)
		return nil
	}
	if opts.print || a.gf.JSON {
		return a.emit("selection", map[string]any{"project": entry}, func(w io.Writer) {
			fmt.Fprintln(w, entry.Path)
		})
	}
	return a.deps.Opener.Open(entry.Path, opts.newWindow)
}

func (a *app) refreshCmd() *cobra.Command {
	var noOpen bool
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Merge projects found on disk and in Git Tower into the registry",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.refresh(cmd.Context(), !noOpen && !a.gf.JSON)
		},
	}
	cmd.Flags().BoolVar(&noOpen, "no-open", false, "do not show the picker afterwards")
	return cmd
}

func (a *app) refresh(ctx context.Context, openAfter bool) error {
	cfg := a.ws.Config()
	rf := &refresh.Refresher{
		Sources:  a.deps.Sources(cfg, a.log),
		Store:    a.ws,
		Logger:   a.log,
		HasRoots: len(cfg.Refresh.Roots) > 0,
	}
	if cfg.Refresh.DescribeEnabled() {
		rf.Describer = a.deps.Describer
	}
	res, err := rf.Run(ctx)
	if err != nil {
		if errors.Is(err, refresh.ErrNothingToMerge) {
			return withCode(ExitNotFound, errors.New(msgNothingFound))
		}
		return fmt.Errorf("refresh: %w", err)
	}

	var ops []string
	for _, p := range res.Patches {
		for _, op := range p.Ops {
			ops = append(ops, p.Source+": "+op.String())
		}
	}
	projects, groups := res.Registry.Count()
	payload := map[string]any{
		"added_projects":  res.AddedProjects,
		"added_groups":    res.AddedGroups,
		"filled_fields":   res.FilledFields,
		"described":       res.Described,
		"enrich_failures": res.EnrichFailures,
		"source_failures": res.SourceFailures,
		"projects":        projects,
		"groups":          groups,
		"ops":             ops,
	}
	err = a.emit("refresh", payload, func(w io.Writer) {
		if a.gf.Quiet {
			return
		}
		fmt.Fprintf(w, "Refreshed %s: %d new projects, %d new groups, %d descriptions added (%d projects total)\n",
			a.ws.RegistryPath(), res.AddedProjects, res.AddedGroups, res.FilledFields+res.Described, projects)
		if a.gf.Verbose {
			for _, op := range ops {
				fmt.Fprintln(w, "  "+op)
			}
		}
	})
	if err != nil || !openAfter {
		return err
	}
	return a.open(ctx, openOptions{})
}

func defaultSources(cfg store.Config, log *zap.Logger) []refresh.Source {
	var sources []refresh.Source
	if !cfg.Tower.Disabled {
		sources = append(sources, &discovery.TowerReader{Path: store.ExpandHome(cfg.Tower.Bookmarks), Logger: log})
	}
	roots := make([]string, 0, len(cfg.Refresh.Roots))
	for _, r := range cfg.Refresh.Roots {
		roots = append(roots, store.ExpandHome(r))
	}
	sources = append(sources, &discovery.FolderScanner{
		Options: discovery.ScanOptions{
			Roots:    roots,
			MaxDepth: cfg.Refresh.Depth,
			Ignore:   cfg.Refresh.IgnoreFolders,
		},
		Logger: log,
	})
	return sources
}

type saveFlags struct {
	name        string
	description string
	group       string
	yes         bool
}

func (a *app) saveCmd() *cobra.Command {
	var f saveFlags
	cmd := &cobra.Command{
		Use:   "save [path]",
		Short: "Save a folder (default: the current one) as a project",
		Args:  maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.save(cmd, args, f)
		},
	}
	cmd.Flags().StringVar(&f.name, "name", "", "project name")
	cmd.Flags().StringVar(&f.description, "description", "", "project description")
	cmd.Flags().StringVar(&f.group, "group", "", "group to save the project in")
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "accept the suggested values without prompting")
	return cmd
}

func (a *app) save(cmd *cobra.Command, args []string, f saveFlags) error {
	path, err := a.targetPath(args)
	if err != nil {
		return err
	}
	r, err := a.ws.ReadRegistry()
	if err != nil {
		return err
	}

	nameHint := filepath.Base(path)
	var descriptionHint, groupHint string
	same, saved := r.FindProjectByPath(path)
	if saved {
		descriptionHint = same.Description
		if g, ok := r.ContainingGroup(same); ok && !g.IsRoot() {
			groupHint = g.Name
		}
	}
	if descriptionHint == "" && a.ws.Config().Refresh.DescribeEnabled() {
		desc, err := a.deps.Describer.Describe(cmd.Context(), path)
		if err != nil {
			a.log.Debug("description lookup failed", zap.String("path", path), zap.Error(err))
		}
		descriptionHint = strings.TrimSpace(desc)
	}
	if active := a.ws.Config().Group; active != "" {
		groupHint = active
	}

	name, err := a.ask(cmd, "name", f.yes, ui.InputPrompt{
		Label:       "Project name",
		Placeholder: "Type a name for your project",
		Value:       nameHint,
	})
	if err != nil {
		return err
	}
	if name == "" {
		return withCode(ExitUsage, errors.New(msgNameRequired))
	}
	description, err := a.ask(cmd, "description", f.yes, ui.InputPrompt{
		Label:       "Project description",
		Placeholder: "Type a description for your project (optional)",
		Value:       descriptionHint,
	})
	if err != nil {
		return err
	}
	group, err := a.ask(cmd, "group", f.yes, ui.InputPrompt{
		Label:       "Group name",
		Placeholder: "Type the name of the group (optional)",
		Value:       groupHint,
	})
	if err != nil {
		return err
	}

	p := r.AddProject(registry.ProjectInput{Name: name, Description: description, Path: path}, group)
	if err := a.ws.WriteRegistry(r); err != nil {
		return err
	}
	a.log.Debug("project saved", zap.String("path", p.Path), zap.String("group", group), zap.Bool("updated", saved))
	return a.emit("project", map[string]any{"project": projectEntry(r, p), "updated": saved}, func(w io.Writer) {
		if a.gf.Quiet {
			return
		}
		verb := "Saved"
		if saved {
			verb = "Updated"
		}
		if group != "" {
			fmt.Fprintf(w, "%s %q in group %q\n", verb, p.Name, group)
			return
		}
		fmt.Fprintf(w, "%s %q\n", verb, p.Name)
	})
}

// ask returns the flag value when the flag was given, the prompt's default
// with --yes and the user's answer otherwise.
func (a *app) ask(cmd *cobra.Command, flag string, yes bool, p ui.InputPrompt) (string, error) {
	if cmd.Flags().Changed(flag) {
		v, err := cmd.Flags().GetString(flag)
		return strings.TrimSpace(v), err
	}
	if yes {
		return strings.TrimSpace(p.Value), nil
	}
	v, err := a.deps.Prompter.Input(p)
	return strings.TrimSpace(v), err
}

func (a *app) removeCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "remove [path]",
		Aliases: []string{"rm"},
		Short:   "Remove a folder (default: the current one) from the registry",
		Args:    maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.targetPath(args)
			if err != nil {
				return err
			}
			r, err := a.ws.ReadRegistry()
			if err != nil {
				return err
			}
			p, ok := r.FindProjectByPath(path)
			if !ok {
				return withCode(ExitNotFound, errors.New(msgNotSaved))
			}
			if !yes {
				choice, err := a.deps.Prompter.Confirm(fmt.Sprintf("Do you want to remove %q from your projects?", p.Name), buttonRemove)
				if err != nil {
					return err
				}
				if choice != buttonRemove {
					return nil
				}
			}
			removed, _ := r.RemoveProject(path)
			if err := a.ws.WriteRegistry(r); err != nil {
				return err
			}
			return a.emit("removed", map[string]any{"project": projectDoc(removed)}, func(w io.Writer) {
				if !a.gf.Quiet {
					fmt.Fprintf(w, "Removed %q\n", removed.Name)
				}
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func (a *app) switchGroupCmd() *cobra.Command {
	var clearGroup bool
	cmd := &cobra.Command{
		Use:   "switch-group",
		Short: "Pick the group the picker is limited to",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if clearGroup {
				if err := a.ws.SetActiveGroup(""); err != nil {
					return fmt.Errorf("switch group: %w", err)
				}
				a.say("Showing all projects")
				return nil
			}
			return a.open(cmd.Context(), openOptions{onlyGroups: true})
		},
	}
	cmd.Flags().BoolVar(&clearGroup, "clear", false, "leave the active group and show everything")
	return cmd
}

// targetPath resolves the optional path argument against the working
// directory.
func (a *app) targetPath(args []string) (string, error) {
	path := ""
	if len(args) > 0 {
		path = store.ExpandHome(args[0])
	}
	if path == "" || !filepath.IsAbs(path) {
		wd, err := a.deps.Getwd()
		if err != nil {
			return "", fmt.Errorf("working directory: %w", err)
		}
		path = filepath.Join(wd, path)
	}
	return registry.NormalizePath(path), nil
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usageError("%s takes no arguments", cmd.CommandPath())
	}
	return nil
}

func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) > n {
			return usageError("%s accepts at most %d argument(s), got %d", cmd.CommandPath(), n, len(args))
		}
		return nil
	}
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usageError("%s requires %d argument(s), got %d", cmd.CommandPath(), n, len(args))
		}
		return nil
	}
}
