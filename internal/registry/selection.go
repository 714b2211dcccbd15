package registry

// EntryKind tells project entries from group entries.
type EntryKind int

const (
	ProjectEntry EntryKind = iota
	GroupEntry
)

func (k EntryKind) String() string {
	if k == GroupEntry {
		return "group"
	}
	return "project"
}

// Entry is one selectable line. Group entries have no path and act as a
// drill-down target.
type Entry struct {
	Kind        EntryKind `json:"-"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Path        string    `json:"path,omitempty"`
	Group       string    `json:"group,omitempty"`
}

// SelectionOptions narrows what BuildSelection lists.
type SelectionOptions struct {
	ActiveGroup string
	OnlyGroups  bool
}

// Selection is the candidate list shown by the picker.
type Selection struct {
	Entries       []Entry
	ProjectsCount int
	GroupsCount   int
	// NestedCount counts the projects held anywhere below the listed groups.
	NestedCount int
	OnlyGroups  bool
}

// BuildSelection flattens the registry into selectable entries in stored
// order. With OnlyGroups it lists the top-level groups. With an active group
// that exists it lists that group's direct projects. Otherwise it lists the
// root projects followed by the top-level groups.
func BuildSelection(r *Registry, opts SelectionOptions) Selection {
	sel := Selection{OnlyGroups: opts.OnlyGroups}
	root := r.Root()

	if opts.OnlyGroups {
		sel.addGroups(r, r.Groups(root))
		return sel
	}
	if opts.ActiveGroup != "" {
		if g, ok := r.FindGroupByName(opts.ActiveGroup); ok {
			sel.addProjects(r.Projects(g), g.Name)
			return sel
		}
	}
	sel.addProjects(r.Projects(root), "")
	sel.addGroups(r, r.Groups(root))
	return sel
}

func (s *Selection) addProjects(projects []*Project, group string) {
	for _, p := range projects {
		s.Entries = append(s.Entries, Entry{
			Kind:        ProjectEntry,
			Name:        p.Name,
			Description: p.Description,
			Path:        p.Path,
			Group:       group,
		})
		s.ProjectsCount++
	}
}

func (s *Selection) addGroups(r *Registry, groups []*Group) {
	for _, g := range groups {
		s.Entries = append(s.Entries, Entry{Kind: GroupEntry, Name: g.Name})
		s.GroupsCount++
		r.walk(g, func(*Group, *Project) bool {
			s.NestedCount++
			return true
		})
	}
}

// Empty reports whether there is nothing the user could pick. Outside
// groups-only mode a group entry counts only when some project lives below
// it, so a registry of empty groups is still reported as empty.
func (s Selection) Empty() bool {
	if s.ProjectsCount > 0 {
		return false
	}
	if s.OnlyGroups {
		return s.GroupsCount == 0
	}
	return s.NestedCount == 0
}

// Placeholder returns the prompt text matching what the list contains.
func (s Selection) Placeholder() string {
	switch {
	case s.ProjectsCount > 0 && s.GroupsCount > 0:
		return "Select a project or a group..."
	case s.ProjectsCount > 0:
		return "Select a project..."
	default:
		return "Select a group..."
	}
}
