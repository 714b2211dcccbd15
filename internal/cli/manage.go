package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/amirbrooks/projects-docstore/internal/registry"
)

// rootGroupArg names the unnamed top-level group on the command line.
const rootGroupArg = "/"

func projectDoc(p registry.Project) registry.ProjectDoc {
	return registry.ProjectDoc{Name: p.Name, Description: p.Description, Path: p.Path}
}

func projectEntry(r *registry.Registry, p *registry.Project) registry.Entry {
	e := registry.Entry{Kind: registry.ProjectEntry, Name: p.Name, Description: p.Description, Path: p.Path}
	if g, ok := r.ContainingGroup(p); ok {
		e.Group = groupLabel(r, g)
	}
	return e
}

// groupLabel joins the names from the root down to g with slashes; the root
// itself is empty.
func groupLabel(r *registry.Registry, g *registry.Group) string {
	return strings.Join(r.GroupPath(g), "/")
}

func (a *app) listCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List saved projects (limited to the active group unless --all)",
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := a.ws.ReadRegistry()
			if err != nil {
				return err
			}
			active := a.ws.Config().Group
			var activeGroup *registry.Group
			if !all && active != "" {
				activeGroup, _ = r.FindGroupByName(active)
			}

			var entries []registry.Entry
			r.Walk(func(g *registry.Group, p *registry.Project) bool {
				if activeGroup == nil || g.ID == activeGroup.ID {
					entries = append(entries, projectEntry(r, p))
				}
				return true
			})
			if entries == nil {
				entries = []registry.Entry{}
			}

			if a.gf.Plain && !a.gf.JSON {
				fmt.Fprintln(a.out, "GROUP\tNAME\tPATH\tDESCRIPTION")
				for _, e := range entries {
					fmt.Fprintf(a.out, "%s\t%s\t%s\t%s\n", e.Group, e.Name, e.Path, e.Description)
				}
				return nil
			}
			return a.emit("projects", map[string]any{"group": active, "projects": entries}, func(w io.Writer) {
				if len(entries) == 0 {
					fmt.Fprintln(w, "No projects saved.")
					return
				}
				tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "GROUP\tNAME\tPATH")
				for _, e := range entries {
					group := e.Group
					if group == "" {
						group = "-"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", group, e.Name, e.Path)
				}
				_ = tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "ignore the active group")
	return cmd
}

func (a *app) groupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage top-level groups",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return usageError("usage: projects group <add|ls> ...")
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <name>",
			Short: "Create a top-level group",
			Args:  exactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				name := strings.TrimSpace(args[0])
				if name == "" || name == rootGroupArg {
					return usageError("invalid group name %q", args[0])
				}
				r, err := a.ws.ReadRegistry()
				if err != nil {
					return err
				}
				if _, exists := r.FindGroupByName(name); exists {
					return withCode(ExitConflict, fmt.Errorf("group %q already exists", name))
				}
				r.AddGroup(name)
				if err := a.ws.WriteRegistry(r); err != nil {
					return err
				}
				return a.emit("group", map[string]any{"group": name}, func(w io.Writer) {
					if !a.gf.Quiet {
						fmt.Fprintf(w, "Created group %q\n", name)
					}
				})
			},
		},
		&cobra.Command{
			Use:     "ls",
			Aliases: []string{"list"},
			Short:   "List top-level groups",
			Args:    noArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				r, err := a.ws.ReadRegistry()
				if err != nil {
					return err
				}
				type groupRow struct {
					Name     string `json:"name"`
					Projects int    `json:"projects"`
					Active   bool   `json:"active"`
				}
				active := a.ws.Config().Group
				rows := []groupRow{}
				for _, g := range r.Groups(r.Root()) {
					rows = append(rows, groupRow{Name: g.Name, Projects: len(r.Projects(g)), Active: g.Name == active})
				}
				if a.gf.Plain && !a.gf.JSON {
					fmt.Fprintln(a.out, "NAME\tPROJECTS\tACTIVE")
					for _, g := range rows {
						fmt.Fprintf(a.out, "%s\t%d\t%t\n", g.Name, g.Projects, g.Active)
					}
					return nil
				}
				return a.emit("groups", map[string]any{"groups": rows}, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "NAME\tPROJECTS")
					for _, g := range rows {
						name := g.Name
						if g.Active {
							name += " *"
						}
						fmt.Fprintf(tw, "%s\t%d\n", name, g.Projects)
					}
					_ = tw.Flush()
				})
			},
		},
	)
	return cmd
}

func (a *app) moveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "mv <path> <group>",
		Aliases: []string{"move"},
		Short:   `Move a saved project into another top-level group ("/" for the top level)`,
		Args:    exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.targetPath(args[:1])
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
			from, _ := r.ContainingGroup(p)

			to := r.Root()
			if name := strings.TrimSpace(args[1]); name != rootGroupArg {
				g, ok := r.FindGroupByName(name)
				if !ok {
					return withCode(ExitNotFound, fmt.Errorf("group %q not found", name))
				}
				to = g
			}
			if err := r.MoveProject(p, from, to); err != nil {
				if errors.Is(err, registry.ErrPathTaken) {
					return withCode(ExitConflict, fmt.Errorf("move %s: %w", p.Path, err))
				}
				return fmt.Errorf("move %s: %w", p.Path, err)
			}
			if err := a.ws.WriteRegistry(r); err != nil {
				return err
			}
			return a.emit("project", map[string]any{"project": projectEntry(r, p)}, func(w io.Writer) {
				if a.gf.Quiet {
					return
				}
				dest := groupLabel(r, to)
				if dest == "" {
					dest = rootGroupArg
				}
				fmt.Fprintf(w, "Moved %q -> %s\n", p.Name, dest)
			})
		},
	}
}
