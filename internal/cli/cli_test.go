package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amirbrooks/projects-docstore/internal/refresh"
	"github.com/amirbrooks/projects-docstore/internal/registry"
	"github.com/amirbrooks/projects-docstore/internal/store"
	"github.com/amirbrooks/projects-docstore/internal/ui"
)

type fakePrompter struct {
	picks    []string
	inputs   []string
	confirms []string

	pickCalls    [][]registry.Entry
	placeholders []string
	prompts      []ui.InputPrompt
	messages     []string
	buttons      [][]string
}

func (f *fakePrompter) Pick(entries []registry.Entry, placeholder string) (registry.Entry, error) {
	f.pickCalls = append(f.pickCalls, entries)
	f.placeholders = append(f.placeholders, placeholder)
	if len(f.picks) == 0 {
		return registry.Entry{}, ui.ErrCancelled
	}
	name := f.picks[0]
	f.picks = f.picks[1:]
	for _, e := range entries {
		if e.Name == name {
			return e, nil
		}
	}
	return registry.Entry{}, ui.ErrCancelled
}

func (f *fakePrompter) Input(p ui.InputPrompt) (string, error) {
	f.prompts = append(f.prompts, p)
	if len(f.inputs) == 0 {
		return "", ui.ErrCancelled
	}
	v := f.inputs[0]
	f.inputs = f.inputs[1:]
	return v, nil
}

func (f *fakePrompter) Confirm(message string, buttons ...string) (string, error) {
	f.messages = append(f.messages, message)
	f.buttons = append(f.buttons, buttons)
	if len(f.confirms) == 0 {
		return "", ui.ErrCancelled
	}
	v := f.confirms[0]
	f.confirms = f.confirms[1:]
	return v, nil
}

type fakeOpener struct {
	opened    []string
	newWindow []bool
	edited    []string
}

func (f *fakeOpener) Open(path string, newWindow bool) error {
	f.opened = append(f.opened, path)
	f.newWindow = append(f.newWindow, newWindow)
	return nil
}

func (f *fakeOpener) Edit(path string) error {
	f.edited = append(f.edited, path)
	return nil
}

type mapDescriber map[string]string

func (d mapDescriber) Describe(_ context.Context, path string) (string, error) {
	return d[path], nil
}

type docSource struct {
	doc registry.Document
}

func (docSource) Name() string { return "test" }

func (s docSource) Discover(context.Context) (registry.Document, error) { return s.doc, nil }

type testEnv struct {
	t         *testing.T
	root      string
	wd        string
	prompter  *fakePrompter
	opener    *fakeOpener
	describer mapDescriber
	found     registry.Document
	out       bytes.Buffer
	errOut    bytes.Buffer
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	return &testEnv{
		t:         t,
		root:      t.TempDir(),
		wd:        filepath.Join(t.TempDir(), "myapp"),
		prompter:  &fakePrompter{},
		opener:    &fakeOpener{},
		describer: mapDescriber{},
	}
}

func (e *testEnv) run(args ...string) int {
	e.out.Reset()
	e.errOut.Reset()
	return run(context.Background(), append([]string{"--root", e.root}, args...), Deps{
		Stdout:    &e.out,
		Stderr:    &e.errOut,
		Prompter:  e.prompter,
		Opener:    e.opener,
		Describer: e.describer,
		Getwd:     func() (string, error) { return e.wd, nil },
		Sources: func(store.Config, *zap.Logger) []refresh.Source {
			return []refresh.Source{docSource{doc: e.found}}
		},
	})
}

func (e *testEnv) workspace() *store.Workspace {
	e.t.Helper()
	ws, err := store.Open(e.root)
	require.NoError(e.t, err)
	return ws
}

func (e *testEnv) write(doc registry.Document) {
	e.t.Helper()
	require.NoError(e.t, e.workspace().WriteRegistry(registry.FromDocument(doc)))
}

func (e *testEnv) document() registry.Document {
	e.t.Helper()
	r, err := e.workspace().ReadRegistry()
	require.NoError(e.t, err)
	return r.Document()
}

func sampleRegistry() registry.Document {
	return registry.Document{
		Projects: []registry.ProjectDoc{{Name: "api", Path: "/src/api"}},
		Groups: []registry.GroupDoc{
			{Name: "Work", Projects: []registry.ProjectDoc{{Name: "web", Description: "site", Path: "/src/web"}}},
			{Name: "Play", Projects: []registry.ProjectDoc{}},
		},
	}
}

func TestInit(t *testing.T) {
	e := newEnv(t)

	require.Equal(t, ExitOK, e.run("init"))
	assert.Contains(t, e.out.String(), "Wrote sample registry")
	assert.FileExists(t, filepath.Join(e.root, "projects.json"))
	assert.FileExists(t, filepath.Join(e.root, "config.yaml"))

	require.Equal(t, ExitOK, e.run("init"))
	assert.Contains(t, e.out.String(), "Registry already exists")

	require.Equal(t, ExitOK, e.run("--quiet", "init", "--force"))
	assert.Empty(t, e.out.String())
}

func TestOpenPicksProject(t *testing.T) {
	e := newEnv(t)
	e.write(sampleRegistry())
	e.prompter.picks = []string{"api"}

	require.Equal(t, ExitOK, e.run("open", "--new-window"))

	require.Len(t, e.prompter.pickCalls, 1)
	entries := e.prompter.pickCalls[0]
	require.Len(t, entries, 3)
	assert.Equal(t, registry.ProjectEntry, entries[0].Kind)
	assert.Equal(t, "Work", entries[1].Name)
	assert.Equal(t, registry.GroupEntry, entries[1].Kind)
	assert.Equal(t, "Select a project or a group...", e.prompter.placeholders[0])
	assert.Equal(t, []string{"/src/api"}, e.opener.opened)
	assert.Equal(t, []bool{true}, e.opener.newWindow)
}

func TestOpenPrint(t *testing.T) {
	e := newEnv(t)
	e.write(sampleRegistry())
	e.prompter.picks = []string{"api"}

	require.Equal(t, ExitOK, e.run("open", "--print"))
	assert.Equal(t, "/src/api\n", e.out.String())
	assert.Empty(t, e.opener.opened)
}

func TestOpenGroupEntersGroup(t *testing.T) {
	e := newEnv(t)
	e.write(sampleRegistry())
	e.prompter.picks = []string{"Work", "web"}

	require.Equal(t, ExitOK, e.run("open"))
	assert.Equal(t, "Work", e.workspace().Config().Group)
	assert.Empty(t, e.opener.opened)

	require.Equal(t, ExitOK, e.run("open"))
	require.Len(t, e.prompter.pickCalls, 2)
	entries := e.prompter.pickCalls[1]
	require.Len(t, entries, 1)
	assert.Equal(t, "web", entries[0].Name)
	assert.Equal(t, "Work", entries[0].Group)
	assert.Equal(t, "Select a project...", e.prompter.placeholders[1])
	assert.Equal(t, []string{"/src/web"}, e.opener.opened)
}

func TestOpenRegistryWithOnlyGroupedProjects(t *testing.T) {
	e := newEnv(t)
	e.write(registry.Document{Groups: []registry.GroupDoc{
		{Name: "Work", Projects: []registry.ProjectDoc{{Name: "api", Path: "/work/api"}}},
	}})
	e.prompter.picks = []string{"Work", "api"}

	require.Equal(t, ExitOK, e.run("open"))
	assert.Empty(t, e.prompter.messages, "a registry with grouped projects is not empty")
	require.Len(t, e.prompter.pickCalls, 1)
	assert.Equal(t, "Select a group...", e.prompter.placeholders[0])
	assert.Equal(t, "Work", e.workspace().Config().Group)

	require.Equal(t, ExitOK, e.run("open"))
	assert.Equal(t, []string{"/work/api"}, e.opener.opened)
}

func TestOpenCancelledIsNotAnError(t *testing.T) {
	e := newEnv(t)
	e.write(sampleRegistry())

	assert.Equal(t, ExitOK, e.run("open"))
	assert.Empty(t, e.opener.opened)
	assert.Empty(t, e.errOut.String())
}

func TestOpenEmptyRegistryOffersRefreshOrEdit(t *testing.T) {
	e := newEnv(t)

	assert.Equal(t, ExitOK, e.run("open"))
	require.Len(t, e.prompter.messages, 1)
	assert.Equal(t, msgNoProjects, e.prompter.messages[0])
	assert.Equal(t, []string{"Refresh", "Edit"}, e.prompter.buttons[0])

	e.prompter.confirms = []string{"Edit"}
	require.Equal(t, ExitOK, e.run("open"))
	path := filepath.Join(e.root, "projects.json")
	assert.Equal(t, []string{path}, e.opener.edited)
	assert.FileExists(t, path)
}

func TestOpenEmptyRefreshWithNothingFound(t *testing.T) {
	e := newEnv(t)
	e.prompter.confirms = []string{"Refresh"}

	assert.Equal(t, ExitNotFound, e.run("open"))
	assert.Contains(t, e.errOut.String(), msgNothingFound)
}

func TestRefreshMergesAndDescribes(t *testing.T) {
	e := newEnv(t)
	e.write(registry.Document{Projects: []registry.ProjectDoc{{Name: "Mine", Description: "keep", Path: "/src/mine"}}})
	e.found = registry.Document{
		Projects: []registry.ProjectDoc{{Name: "api", Path: "/src/api"}, {Name: "mine", Path: "/src/mine"}},
		Groups:   []registry.GroupDoc{{Name: "Work", Projects: []registry.ProjectDoc{{Name: "web", Path: "/src/web"}}}},
	}
	e.describer["/src/api"] = "The API"

	require.Equal(t, ExitOK, e.run("refresh", "--no-open"))
	assert.Contains(t, e.out.String(), "2 new projects, 1 new groups, 1 descriptions added")

	want := registry.Document{
		Projects: []registry.ProjectDoc{
			{Name: "Mine", Description: "keep", Path: "/src/mine"},
			{Name: "api", Description: "The API", Path: "/src/api"},
		},
		Groups: []registry.GroupDoc{{Name: "Work", Projects: []registry.ProjectDoc{{Name: "web", Path: "/src/web"}}}},
	}
	assert.Equal(t, want, e.document())

	require.Equal(t, ExitOK, e.run("refresh", "--no-open"))
	assert.Contains(t, e.out.String(), "0 new projects, 0 new groups")
	assert.Equal(t, want, e.document())
}

func TestRefreshThenOpen(t *testing.T) {
	e := newEnv(t)
	e.found = registry.Document{Projects: []registry.ProjectDoc{{Name: "api", Path: "/src/api"}}}
	e.prompter.picks = []string{"api"}

	require.Equal(t, ExitOK, e.run("refresh"))
	assert.Equal(t, []string{"/src/api"}, e.opener.opened)
}

func TestRefreshNothingFound(t *testing.T) {
	e := newEnv(t)

	assert.Equal(t, ExitNotFound, e.run("refresh"))
	assert.Contains(t, e.errOut.String(), msgNothingFound)
	assert.NoFileExists(t, filepath.Join(e.root, "projects.json"))
}

func TestRefreshJSON(t *testing.T) {
	e := newEnv(t)
	e.found = registry.Document{Projects: []registry.ProjectDoc{{Name: "api", Path: "/src/api"}}}

	require.Equal(t, ExitOK, e.run("--json", "--stdout-json", "refresh"))
	var payload struct {
		AddedProjects int      `json:"added_projects"`
		Projects      int      `json:"projects"`
		Ops           []string `json:"ops"`
	}
	require.NoError(t, json.Unmarshal(e.out.Bytes(), &payload))
	assert.Equal(t, 1, payload.AddedProjects)
	assert.Equal(t, 1, payload.Projects)
	assert.Equal(t, []string{"test: add_project / /src/api"}, payload.Ops)
	assert.Empty(t, e.opener.opened)
}

func TestSavePromptsWithHints(t *testing.T) {
	e := newEnv(t)
	e.describer[e.wd] = "A described app"
	e.prompter.inputs = []string{"My App", " Fast thing ", "Work"}

	require.Equal(t, ExitOK, e.run("save"))

	require.Len(t, e.prompter.prompts, 3)
	assert.Equal(t, "Project name", e.prompter.prompts[0].Label)
	assert.Equal(t, "myapp", e.prompter.prompts[0].Value)
	assert.Equal(t, "A described app", e.prompter.prompts[1].Value)
	assert.Equal(t, "", e.prompter.prompts[2].Value)
	assert.Equal(t, "Saved \"My App\" in group \"Work\"\n", e.out.String())

	doc := e.document()
	assert.Empty(t, doc.Projects)
	require.Len(t, doc.Groups, 1)
	assert.Equal(t, []registry.ProjectDoc{{Name: "My App", Description: "Fast thing", Path: e.wd}}, doc.Groups[0].Projects)
}

func TestSaveGroupHintPrefersActiveGroup(t *testing.T) {
	e := newEnv(t)
	doc := sampleRegistry()
	doc.Groups[0].Projects = append(doc.Groups[0].Projects, registry.ProjectDoc{Name: "mine", Description: "saved", Path: e.wd})
	e.write(doc)
	e.prompter.inputs = []string{"mine", "saved", "Work"}

	require.Equal(t, ExitOK, e.run("save"))
	assert.Equal(t, "saved", e.prompter.prompts[1].Value)
	assert.Equal(t, "Work", e.prompter.prompts[2].Value)
	assert.Contains(t, e.out.String(), "Updated")

	require.NoError(t, e.workspace().SetActiveGroup("Play"))
	e.prompter.prompts = nil
	e.prompter.inputs = []string{"mine", "saved", "Play"}
	require.Equal(t, ExitOK, e.run("save"))
	assert.Equal(t, "Play", e.prompter.prompts[2].Value)

	got := e.document()
	assert.Len(t, got.Groups[0].Projects, 1)
	assert.Equal(t, []registry.ProjectDoc{{Name: "mine", Description: "saved", Path: e.wd}}, got.Groups[1].Projects)
}

func TestSaveWithFlags(t *testing.T) {
	e := newEnv(t)
	e.write(registry.Document{
		Groups: []registry.GroupDoc{{Name: "Old", Projects: []registry.ProjectDoc{{Name: "x", Description: "kept", Path: "/src/x"}}}},
	})

	require.Equal(t, ExitOK, e.run("save", "/src/x/", "--name", "Renamed", "--group", "New", "--yes"))
	assert.Empty(t, e.prompter.prompts)

	doc := e.document()
	require.Len(t, doc.Groups, 2)
	assert.Empty(t, doc.Groups[0].Projects)
	assert.Equal(t, "New", doc.Groups[1].Name)
	assert.Equal(t, []registry.ProjectDoc{{Name: "Renamed", Description: "kept", Path: "/src/x"}}, doc.Groups[1].Projects)
}

func TestSaveCancelledWritesNothing(t *testing.T) {
	e := newEnv(t)
	e.prompter.inputs = []string{"My App"}

	assert.Equal(t, ExitOK, e.run("save"))
	assert.Len(t, e.prompter.prompts, 2)
	assert.NoFileExists(t, filepath.Join(e.root, "projects.json"))
}

func TestSaveRequiresName(t *testing.T) {
	e := newEnv(t)
	e.prompter.inputs = []string{"  "}

	assert.Equal(t, ExitUsage, e.run("save"))
	assert.Contains(t, e.errOut.String(), msgNameRequired)
	assert.NoFileExists(t, filepath.Join(e.root, "projects.json"))
}

func TestRemove(t *testing.T) {
	e := newEnv(t)
	e.write(sampleRegistry())

	assert.Equal(t, ExitOK, e.run("remove", "/src/web"))
	assert.Equal(t, []string{`Do you want to remove "web" from your projects?`}, e.prompter.messages)
	assert.Equal(t, []string{"Remove"}, e.prompter.buttons[0])
	assert.Len(t, e.document().Groups[0].Projects, 1)

	e.prompter.confirms = []string{"Remove"}
	require.Equal(t, ExitOK, e.run("remove", "/src/web"))
	assert.Equal(t, "Removed \"web\"\n", e.out.String())
	assert.Empty(t, e.document().Groups[0].Projects)

	assert.Equal(t, ExitNotFound, e.run("remove", "/src/web"))
	assert.Contains(t, e.errOut.String(), msgNotSaved)

	require.Equal(t, ExitOK, e.run("rm", "--yes", "/src/api"))
	assert.Empty(t, e.document().Projects)
}

func TestSwitchGroup(t *testing.T) {
	e := newEnv(t)
	e.write(sampleRegistry())
	e.prompter.picks = []string{"Play"}

	require.Equal(t, ExitOK, e.run("switch-group"))
	require.Len(t, e.prompter.pickCalls, 1)
	assert.Len(t, e.prompter.pickCalls[0], 2)
	assert.Equal(t, "Select a group...", e.prompter.placeholders[0])
	assert.Equal(t, "Play", e.workspace().Config().Group)

	require.Equal(t, ExitOK, e.run("switch-group", "--clear"))
	assert.Equal(t, "", e.workspace().Config().Group)
}

func TestSwitchGroupWithoutGroups(t *testing.T) {
	e := newEnv(t)
	e.write(registry.Document{Projects: []registry.ProjectDoc{{Name: "api", Path: "/src/api"}}})

	assert.Equal(t, ExitOK, e.run("switch-group"))
	assert.Empty(t, e.prompter.pickCalls)
	assert.Equal(t, []string{msgNoProjects}, e.prompter.messages)
}

func TestList(t *testing.T) {
	e := newEnv(t)
	e.write(sampleRegistry())

	require.Equal(t, ExitOK, e.run("--plain", "ls"))
	assert.Equal(t, "GROUP\tNAME\tPATH\tDESCRIPTION\n\tapi\t/src/api\t\nWork\tweb\t/src/web\tsite\n", e.out.String())

	require.NoError(t, e.workspace().SetActiveGroup("Work"))
	require.Equal(t, ExitOK, e.run("--json", "--stdout-json", "ls"))
	var payload struct {
		Group    string           `json:"group"`
		Projects []registry.Entry `json:"projects"`
	}
	require.NoError(t, json.Unmarshal(e.out.Bytes(), &payload))
	assert.Equal(t, "Work", payload.Group)
	require.Len(t, payload.Projects, 1)
	assert.Equal(t, "/src/web", payload.Projects[0].Path)

	require.Equal(t, ExitOK, e.run("ls", "--all"))
	assert.Contains(t, e.out.String(), "/src/api")
}

func TestListExportsJSON(t *testing.T) {
	e := newEnv(t)
	e.write(sampleRegistry())

	require.Equal(t, ExitOK, e.run("--json", "ls"))
	assert.Contains(t, e.out.String(), "Wrote JSON to:")
	matches, err := filepath.Glob(filepath.Join(e.root, "exports", "projects-*.json"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestGroupsAndMove(t *testing.T) {
	e := newEnv(t)
	e.write(sampleRegistry())

	assert.Equal(t, ExitConflict, e.run("group", "add", "Work"))
	require.Equal(t, ExitOK, e.run("group", "add", "Later"))
	require.Equal(t, ExitOK, e.run("--plain", "group", "ls"))
	assert.Equal(t, "NAME\tPROJECTS\tACTIVE\nWork\t1\tfalse\nPlay\t0\tfalse\nLater\t0\tfalse\n", e.out.String())

	require.Equal(t, ExitOK, e.run("mv", "/src/api", "Work"))
	doc := e.document()
	assert.Empty(t, doc.Projects)
	assert.Equal(t, []registry.ProjectDoc{
		{Name: "web", Description: "site", Path: "/src/web"},
		{Name: "api", Path: "/src/api"},
	}, doc.Groups[0].Projects)

	require.Equal(t, ExitOK, e.run("mv", "/src/api", "/"))
	assert.Equal(t, []registry.ProjectDoc{{Name: "api", Path: "/src/api"}}, e.document().Projects)

	assert.Equal(t, ExitNotFound, e.run("mv", "/src/nope", "Work"))
	assert.Equal(t, ExitNotFound, e.run("mv", "/src/api", "Missing"))
	assert.Equal(t, ExitUsage, e.run("mv", "/src/api"))
}

func TestMoveOntoTakenPath(t *testing.T) {
	e := newEnv(t)
	doc := registry.Document{
		Projects: []registry.ProjectDoc{{Name: "root copy", Path: "/src/p"}},
		Groups:   []registry.GroupDoc{{Name: "Work", Projects: []registry.ProjectDoc{{Name: "work copy", Path: "/src/p"}}}},
	}
	e.write(doc)
	before := e.document()

	assert.Equal(t, ExitConflict, e.run("mv", "/src/p", "Work"))
	assert.Contains(t, e.errOut.String(), "already holds")
	assert.Equal(t, before, e.document())
}

func TestUsageErrors(t *testing.T) {
	e := newEnv(t)

	assert.Equal(t, ExitUsage, e.run("--stdout-json", "ls"))
	assert.Equal(t, ExitUsage, e.run("open", "extra"))
	assert.Equal(t, ExitUsage, e.run("ls", "--nope"))
	assert.Equal(t, ExitUsage, e.run("bogus"))
	assert.Equal(t, ExitUsage, e.run("group"))
}

func TestInvalidRegistry(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(e.root, "projects.json"), []byte("{"), 0o644))

	assert.Equal(t, ExitInternal, e.run("ls"))
	assert.Contains(t, e.errOut.String(), "invalid")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{withCode(ExitConflict, errors.New("x")), ExitConflict},
		{store.ErrNotFound, ExitNotFound},
		{refresh.ErrNothingToMerge, ExitNotFound},
		{errors.New(`unknown command "x" for "projects"`), ExitUsage},
		{errors.New("disk full"), ExitInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, exitCode(tt.err), tt.err.Error())
	}
}

func TestEditorCommand(t *testing.T) {
	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", "nano")
	assert.Equal(t, "nano", editorCommand(store.Config{}))
	assert.Equal(t, "code -w", editorCommand(store.Config{Editor: "code -w"}))

	t.Setenv("EDITOR", "")
	assert.Equal(t, "vi", editorCommand(store.Config{}))
}
