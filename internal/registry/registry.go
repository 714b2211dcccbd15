// Package registry holds the in-memory project registry: groups and projects
// stored in an arena keyed by generated ids, the non-destructive merge of
// discovered batches, the mutation operations used by save/remove flows and
// the flattened selection list.
package registry

import (
	"crypto/rand"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

type randReader struct{}

func (randReader) Read(p []byte) (int, error) { return rand.Read(p) }

var timeNow = func() time.Time { return time.Now().UTC() }

// ID identifies a group or project inside one Registry arena. IDs are not
// persisted and change every time a document is loaded.
type ID string

// ProjectDoc is the persisted shape of a project.
type ProjectDoc struct {
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Path        string `json:"path" yaml:"path"`
}

// GroupDoc is the persisted shape of a group.
type GroupDoc struct {
	Name     string       `json:"name" yaml:"name"`
	Projects []ProjectDoc `json:"projects" yaml:"projects"`
	Groups   []GroupDoc   `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// Document is the persisted registry: an unnamed top-level group.
type Document struct {
	Projects []ProjectDoc `json:"projects" yaml:"projects"`
	Groups   []GroupDoc   `json:"groups" yaml:"groups"`
}

// IsEmpty reports whether the document carries no projects and no groups.
func (d Document) IsEmpty() bool {
	return len(d.Projects) == 0 && len(d.Groups) == 0
}

// Project is a saved folder. Paths are stored normalized.
type Project struct {
	ID          ID
	Name        string
	Description string
	Path        string
}

func (p Project) doc() ProjectDoc {
	return ProjectDoc{Name: p.Name, Description: p.Description, Path: p.Path}
}

// Group is a named container of projects and subgroups. Child order is the
// order they appear in the persisted document.
type Group struct {
	ID       ID
	Name     string
	parent   ID
	projects []ID
	groups   []ID
}

// IsRoot reports whether g is the unnamed top-level group.
func (g *Group) IsRoot() bool { return g.parent == "" }

// Registry is an arena of groups and projects. Parent/child relations are
// id lists so groups can be restructured without shared pointers.
type Registry struct {
	root     ID
	groups   map[ID]*Group
	projects map[ID]*Project
	owner    map[ID]ID
}

// New returns an empty registry.
func New() *Registry {
	r := &Registry{
		groups:   map[ID]*Group{},
		projects: map[ID]*Project{},
		owner:    map[ID]ID{},
	}
	root := &Group{ID: newID("grp")}
	r.root = root.ID
	r.groups[root.ID] = root
	return r
}

// FromDocument builds a registry from its persisted shape. Projects without a
// path are dropped; missing sequences default to empty.
func FromDocument(d Document) *Registry {
	r := New()
	root := r.Root()
	for _, p := range d.Projects {
		r.appendProject(root, p)
	}
	for _, g := range d.Groups {
		r.loadGroup(root, g)
	}
	return r
}

func (r *Registry) loadGroup(parent *Group, d GroupDoc) {
	g := r.newGroup(parent, d.Name)
	for _, p := range d.Projects {
		r.appendProject(g, p)
	}
	for _, child := range d.Groups {
		r.loadGroup(g, child)
	}
}

// Document converts the registry back to its persisted shape, preserving
// insertion order.
func (r *Registry) Document() Document {
	root := r.Root()
	d := Document{
		Projects: r.projectDocs(root),
		Groups:   []GroupDoc{},
	}
	for _, g := range r.Groups(root) {
		d.Groups = append(d.Groups, r.groupDoc(g))
	}
	return d
}

func (r *Registry) groupDoc(g *Group) GroupDoc {
	d := GroupDoc{Name: g.Name, Projects: r.projectDocs(g)}
	for _, child := range r.Groups(g) {
		d.Groups = append(d.Groups, r.groupDoc(child))
	}
	return d
}

func (r *Registry) projectDocs(g *Group) []ProjectDoc {
	out := make([]ProjectDoc, 0, len(g.projects))
	for _, p := range r.Projects(g) {
		out = append(out, p.doc())
	}
	return out
}

// Clone returns a deep copy backed by a fresh arena.
func (r *Registry) Clone() *Registry {
	return FromDocument(r.Document())
}

func (r *Registry) Root() *Group { return r.groups[r.root] }

func (r *Registry) Group(id ID) (*Group, bool) {
	g, ok := r.groups[id]
	return g, ok
}

// Parent returns the group containing g; the root has no parent.
func (r *Registry) Parent(g *Group) (*Group, bool) {
	if g == nil || g.IsRoot() {
		return nil, false
	}
	return r.Group(g.parent)
}

// Groups returns the direct child groups of g in stored order.
func (r *Registry) Groups(g *Group) []*Group {
	out := make([]*Group, 0, len(g.groups))
	for _, id := range g.groups {
		out = append(out, r.groups[id])
	}
	return out
}

// Projects returns the direct projects of g in stored order.
func (r *Registry) Projects(g *Group) []*Project {
	out := make([]*Project, 0, len(g.projects))
	for _, id := range g.projects {
		out = append(out, r.projects[id])
	}
	return out
}

// Count returns the total number of projects and non-root groups.
func (r *Registry) Count() (projects int, groups int) {
	return len(r.projects), len(r.groups) - 1
}

func (r *Registry) newGroup(parent *Group, name string) *Group {
	g := &Group{ID: newID("grp"), Name: name, parent: parent.ID}
	r.groups[g.ID] = g
	parent.groups = append(parent.groups, g.ID)
	return g
}

func (r *Registry) appendProject(g *Group, d ProjectDoc) *Project {
	path := NormalizePath(d.Path)
	if path == "" {
		return nil
	}
	p := &Project{
		ID:          newID("prj"),
		Name:        d.Name,
		Description: d.Description,
		Path:        path,
	}
	r.projects[p.ID] = p
	r.owner[p.ID] = g.ID
	g.projects = append(g.projects, p.ID)
	return p
}

// detach removes p from its owning group's sequence without deleting it.
func (r *Registry) detach(p *Project) (*Group, bool) {
	g, ok := r.groups[r.owner[p.ID]]
	if !ok {
		return nil, false
	}
	for i, id := range g.projects {
		if id == p.ID {
			g.projects = append(g.projects[:i:i], g.projects[i+1:]...)
			delete(r.owner, p.ID)
			return g, true
		}
	}
	return nil, false
}

func (r *Registry) attach(p *Project, g *Group) {
	g.projects = append(g.projects, p.ID)
	r.owner[p.ID] = g.ID
}

// NormalizePath cleans a project path for identity comparisons. It does not
// touch the filesystem.
func NormalizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	return filepath.Clean(path)
}

// SamePath compares two paths the way the host filesystem would.
func SamePath(a, b string) bool {
	a, b = NormalizePath(a), NormalizePath(b)
	if runtime.GOOS == "windows" {
		return strings.EqualFold(a, b)
	}
	return a == b
}

func newID(prefix string) ID {
	t := ulid.Timestamp(timeNow())
	entropy := ulid.Monotonic(randReader{}, 0)
	id, err := ulid.New(t, entropy)
	if err != nil {
		// fallback
		return ID(fmt.Sprintf("%s_%d", prefix, timeNow().UnixNano()))
	}
	return ID(prefix + "_" + id.String())
}
