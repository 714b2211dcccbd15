package registry

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned by MoveProject.
var (
	ErrNotInGroup = errors.New("project is not in the source group")
	ErrPathTaken  = errors.New("target group already holds a project with this path")
)

// ProjectInput carries the values supplied by a save flow.
type ProjectInput struct {
	Name        string
	Description string
	Path        string
}

// AddGroup returns the root-level group called name, creating it at the end
// of the root's groups when missing.
func (r *Registry) AddGroup(name string) *Group {
	if g, ok := r.FindGroupByName(name); ok {
		return g
	}
	return r.newGroup(r.Root(), name)
}

// AddProject saves a project into the group called groupName (the root when
// empty). A project the target group already holds under the same path is
// updated in place, name and description included. Failing that, the first
// project registered under the path elsewhere is updated and moved into the
// target. Otherwise a new project is appended to the target group, which is
// created if needed. It returns nil when in has no path.
func (r *Registry) AddProject(in ProjectInput, groupName string) *Project {
	path := NormalizePath(in.Path)
	if path == "" {
		return nil
	}
	target := r.Root()
	if name := strings.TrimSpace(groupName); name != "" {
		target = r.AddGroup(name)
	}

	if existing, ok := r.projectInGroup(target, path); ok {
		existing.Name = in.Name
		existing.Description = in.Description
		return existing
	}
	if existing, ok := r.FindProjectByPath(path); ok {
		existing.Name = in.Name
		existing.Description = in.Description
		if from, ok := r.ContainingGroup(existing); ok {
			_ = r.MoveProject(existing, from, target)
		}
		return existing
	}
	return r.appendProject(target, ProjectDoc{Name: in.Name, Description: in.Description, Path: path})
}

// RemoveProject deletes the first project registered under path from its
// owning group. It reports false when no such project exists.
func (r *Registry) RemoveProject(path string) (Project, bool) {
	p, ok := r.FindProjectByPath(path)
	if !ok {
		return Project{}, false
	}
	if _, ok := r.detach(p); !ok {
		return Project{}, false
	}
	delete(r.projects, p.ID)
	return *p, true
}

// MoveProject removes p from from and appends it to to, keeping its fields.
// Moving within one group is a no-op. It fails with ErrPathTaken when to
// already holds another project under p's path.
func (r *Registry) MoveProject(p *Project, from, to *Group) error {
	if p == nil || from == nil || to == nil || r.owner[p.ID] != from.ID {
		return ErrNotInGroup
	}
	if _, ok := r.groups[to.ID]; !ok {
		return fmt.Errorf("move %s: unknown group %s", p.Path, to.ID)
	}
	if from.ID == to.ID {
		return nil
	}
	if q, ok := r.projectInGroup(to, p.Path); ok && q.ID != p.ID {
		return ErrPathTaken
	}
	if _, ok := r.detach(p); !ok {
		return ErrNotInGroup
	}
	r.attach(p, to)
	return nil
}
