package registry

import (
	"context"
	"fmt"
	"strings"
)

// Batch is one discovery result to be merged, tagged with its source.
type Batch struct {
	Source   string
	Document Document
}

type OpKind string

const (
	OpAddGroup        OpKind = "add_group"
	OpAddProject      OpKind = "add_project"
	OpFillName        OpKind = "fill_name"
	OpFillDescription OpKind = "fill_description"
)

// Op is a single registry change. Group is the chain of group names from the
// root to the group the op targets; an empty chain is the root.
type Op struct {
	Kind    OpKind
	Group   []string
	Project ProjectDoc
	Path    string
	Value   string
}

func (o Op) String() string {
	where := "/" + strings.Join(o.Group, "/")
	switch o.Kind {
	case OpAddGroup:
		return fmt.Sprintf("%s %s", o.Kind, where)
	case OpAddProject:
		return fmt.Sprintf("%s %s %s", o.Kind, where, o.Project.Path)
	default:
		return fmt.Sprintf("%s %s %s=%q", o.Kind, where, o.Path, o.Value)
	}
}

// Patch is the ordered list of ops produced from one batch.
type Patch struct {
	Source string
	Ops    []Op
}

// Count returns how many ops of the given kind the patch holds.
func (p Patch) Count(kind OpKind) int {
	n := 0
	for _, op := range p.Ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// Merge folds batches into a copy of base in the given order. The base is
// never modified and nothing present in it is removed.
func Merge(base *Registry, batches ...Batch) (*Registry, []Patch) {
	out := base.Clone()
	patches := make([]Patch, 0, len(batches))
	for _, b := range batches {
		p := Plan(out, b)
		out.Apply(p)
		patches = append(patches, p)
	}
	return out, patches
}

// Plan computes the ops that merging b into base would perform. Groups are
// matched by name among siblings and projects by path: first inside the
// target group, then anywhere in the registry. Matched projects only get
// their empty fields filled.
func Plan(base *Registry, b Batch) Patch {
	pl := planner{r: base.Clone(), patch: Patch{Source: b.Source}}
	pl.walk(nil, b.Document.Projects, b.Document.Groups)
	return pl.patch
}

type planner struct {
	r     *Registry
	patch Patch
}

func (pl *planner) emit(op Op) {
	pl.r.applyOp(op)
	pl.patch.Ops = append(pl.patch.Ops, op)
}

func (pl *planner) walk(names []string, projects []ProjectDoc, groups []GroupDoc) {
	for _, p := range projects {
		pl.project(names, p)
	}
	for _, g := range groups {
		child := append(names[:len(names):len(names)], g.Name)
		if _, ok := pl.r.resolveGroup(child, false); !ok {
			pl.emit(Op{Kind: OpAddGroup, Group: child})
		}
		pl.walk(child, g.Projects, g.Groups)
	}
}

func (pl *planner) project(names []string, in ProjectDoc) {
	path := NormalizePath(in.Path)
	if path == "" {
		return
	}
	g, _ := pl.r.resolveGroup(names, true)
	existing, ok := pl.r.resolveProject(g, path)
	if !ok {
		pl.emit(Op{
			Kind:    OpAddProject,
			Group:   names,
			Project: ProjectDoc{Name: in.Name, Description: in.Description, Path: path},
		})
		return
	}
	if isBlank(existing.Name) && !isBlank(in.Name) {
		pl.emit(Op{Kind: OpFillName, Group: names, Path: path, Value: in.Name})
	}
	if isBlank(existing.Description) && !isBlank(in.Description) {
		pl.emit(Op{Kind: OpFillDescription, Group: names, Path: path, Value: in.Description})
	}
}

// Apply performs every op of p on r.
func (r *Registry) Apply(p Patch) {
	for _, op := range p.Ops {
		r.applyOp(op)
	}
}

func (r *Registry) applyOp(op Op) {
	switch op.Kind {
	case OpAddGroup:
		r.resolveGroup(op.Group, true)
	case OpAddProject:
		g, _ := r.resolveGroup(op.Group, true)
		if _, ok := r.projectInGroup(g, op.Project.Path); ok {
			return
		}
		r.appendProject(g, op.Project)
	case OpFillName, OpFillDescription:
		g, ok := r.resolveGroup(op.Group, false)
		if !ok {
			g = r.Root()
		}
		p, ok := r.resolveProject(g, op.Path)
		if !ok {
			return
		}
		if op.Kind == OpFillName && isBlank(p.Name) {
			p.Name = op.Value
		}
		if op.Kind == OpFillDescription && isBlank(p.Description) {
			p.Description = op.Value
		}
	}
}

// resolveGroup follows a chain of names from the root, optionally creating
// missing groups on the way.
func (r *Registry) resolveGroup(names []string, create bool) (*Group, bool) {
	g := r.Root()
	for _, name := range names {
		child, ok := r.childGroup(g, name)
		if !ok {
			if !create {
				return nil, false
			}
			child = r.newGroup(g, name)
		}
		g = child
	}
	return g, true
}

func (r *Registry) resolveProject(g *Group, path string) (*Project, bool) {
	if p, ok := r.projectInGroup(g, path); ok {
		return p, true
	}
	return r.FindProjectByPath(path)
}

// GroupPath returns the chain of group names from the root down to g. The
// root itself has an empty path.
func (r *Registry) GroupPath(g *Group) []string {
	var names []string
	for g != nil && !g.IsRoot() {
		names = append([]string{g.Name}, names...)
		g, _ = r.Parent(g)
	}
	return names
}

// Describer looks up a description for a project path. An empty result with
// a nil error means nothing was found.
type Describer interface {
	Describe(ctx context.Context, path string) (string, error)
}

// EnrichError records a failed lookup for one project.
type EnrichError struct {
	Path string
	Err  error
}

func (e EnrichError) Error() string { return fmt.Sprintf("describe %s: %v", e.Path, e.Err) }

func (e EnrichError) Unwrap() error { return e.Err }

// Enrich fills the description of every project that lacks one. Lookups are
// independent: a failure is recorded and the remaining projects are still
// processed. Only cancellation of ctx stops the pass early.
func Enrich(ctx context.Context, r *Registry, d Describer) (Patch, []EnrichError) {
	patch := Patch{Source: "describe"}
	if d == nil {
		return patch, nil
	}
	type target struct {
		group []string
		path  string
	}
	var targets []target
	r.Walk(func(g *Group, p *Project) bool {
		if isBlank(p.Description) {
			targets = append(targets, target{group: r.GroupPath(g), path: p.Path})
		}
		return true
	})

	var failures []EnrichError
	for _, t := range targets {
		if ctx.Err() != nil {
			break
		}
		desc, err := d.Describe(ctx, t.path)
		if err != nil {
			failures = append(failures, EnrichError{Path: t.path, Err: err})
			continue
		}
		desc = strings.TrimSpace(desc)
		if desc == "" {
			continue
		}
		patch.Ops = append(patch.Ops, Op{Kind: OpFillDescription, Group: t.group, Path: t.path, Value: desc})
	}
	r.Apply(patch)
	return patch, failures
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
