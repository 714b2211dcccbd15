package registry

// FindProjectByPath searches depth-first: root projects first, then each
// group in order (its projects, then its subgroups). The first match wins;
// a path present in two groups is not deduplicated.
func (r *Registry) FindProjectByPath(path string) (*Project, bool) {
	if NormalizePath(path) == "" {
		return nil, false
	}
	var found *Project
	r.walk(r.Root(), func(_ *Group, p *Project) bool {
		if SamePath(p.Path, path) {
			found = p
			return false
		}
		return true
	})
	return found, found != nil
}

// FindGroupByName looks at the root's direct child groups only.
func (r *Registry) FindGroupByName(name string) (*Group, bool) {
	return r.childGroup(r.Root(), name)
}

// ContainingGroup returns the group (possibly the root) whose projects hold p.
// Projects from another registry are matched by path.
func (r *Registry) ContainingGroup(p *Project) (*Group, bool) {
	if p == nil {
		return nil, false
	}
	if own, ok := r.projects[p.ID]; ok && own == p {
		return r.Group(r.owner[p.ID])
	}
	var found *Group
	r.walk(r.Root(), func(g *Group, candidate *Project) bool {
		if SamePath(candidate.Path, p.Path) {
			found = g
			return false
		}
		return true
	})
	return found, found != nil
}

// Walk visits every project depth-first with its owning group, in the same
// order FindProjectByPath uses. Returning false stops the walk.
func (r *Registry) Walk(fn func(g *Group, p *Project) bool) {
	r.walk(r.Root(), fn)
}

func (r *Registry) walk(g *Group, fn func(*Group, *Project) bool) bool {
	for _, p := range r.Projects(g) {
		if !fn(g, p) {
			return false
		}
	}
	for _, child := range r.Groups(g) {
		if !r.walk(child, fn) {
			return false
		}
	}
	return true
}

func (r *Registry) childGroup(parent *Group, name string) (*Group, bool) {
	for _, g := range r.Groups(parent) {
		if g.Name == name {
			return g, true
		}
	}
	return nil, false
}

func (r *Registry) projectInGroup(g *Group, path string) (*Project, bool) {
	for _, p := range r.Projects(g) {
		if SamePath(p.Path, path) {
			return p, true
		}
	}
	return nil, false
}
