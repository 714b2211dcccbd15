package discovery

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"howett.net/plist"

	"github.com/amirbrooks/projects-docstore/internal/registry"
)

func mkdirs(t *testing.T, root string, dirs ...string) {
	t.Helper()
	for _, d := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(root, filepath.FromSlash(d)), 0o755))
	}
}

func projectPaths(doc registry.Document) []string {
	var out []string
	for _, p := range doc.Projects {
		out = append(out, p.Path)
	}
	return out
}

func TestScanFindsMarkedDirectories(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root,
		"alpha/.git",
		"beta/.svn",
		"plain",
		"node_modules/dep/.git",
		"nested/deep/.git",
		"alpha/sub/.git",
	)

	doc, err := Scan(context.Background(), ScanOptions{
		Roots:    []string{root},
		MaxDepth: 1,
		Ignore:   []string{"node_modules"},
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(root, "alpha"), filepath.Join(root, "beta")}, projectPaths(doc))
	assert.Equal(t, "alpha", doc.Projects[0].Name)
	assert.Empty(t, doc.Groups)
}

func TestScanRespectsDepth(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "nested/deep/.git", "nested/deeper/x/.git")

	doc, err := Scan(context.Background(), ScanOptions{Roots: []string{root}, MaxDepth: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "nested", "deep")}, projectPaths(doc))

	doc, err = Scan(context.Background(), ScanOptions{Roots: []string{root}, MaxDepth: 3}, nil)
	require.NoError(t, err)
	assert.Len(t, doc.Projects, 2)
}

func TestScanSkipsMissingRootsAndDuplicates(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "app/.vscode")

	doc, err := Scan(context.Background(), ScanOptions{
		Roots: []string{filepath.Join(root, "missing"), root, root + string(os.PathSeparator)},
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "app")}, projectPaths(doc))
}

func TestScanRootItselfCanBeAProject(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, ".git", "child/.git")

	doc, err := Scan(context.Background(), ScanOptions{Roots: []string{root}}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{root}, projectPaths(doc))
}

func TestScanCancelled(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "a/.git")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Scan(ctx, ScanOptions{Roots: []string{root}}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFolderScannerSource(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "a/.git")
	s := &FolderScanner{Options: ScanOptions{Roots: []string{root}}}

	assert.Equal(t, "folders", s.Name())
	doc, err := s.Discover(context.Background())
	require.NoError(t, err)
	assert.Len(t, doc.Projects, 1)
}

const towerBookmarks = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>children</key>
	<array>
		<dict>
			<key>fileURL</key>
			<string>file:///Users/me/code/dotfiles/</string>
			<key>name</key>
			<string>dotfiles</string>
			<key>type</key>
			<integer>1</integer>
		</dict>
		<dict>
			<key>children</key>
			<array>
				<dict>
					<key>fileURL</key>
					<string>file:///Users/me/work/My%20API/</string>
					<key>name</key>
					<string></string>
				</dict>
				<dict>
					<key>children</key>
					<array/>
					<key>name</key>
					<string>Archive</string>
				</dict>
			</array>
			<key>name</key>
			<string>Work</string>
			<key>expanded</key>
			<true/>
		</dict>
	</array>
	<key>version</key>
	<integer>2</integer>
</dict>
</plist>
`

func TestTowerReaderParsesBookmarks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookmarks-v2.plist")
	require.NoError(t, os.WriteFile(path, []byte(towerBookmarks), 0o644))

	r := &TowerReader{Path: path, Logger: zaptest.NewLogger(t)}
	assert.Equal(t, "tower", r.Name())
	doc, err := r.Discover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []registry.ProjectDoc{{Name: "dotfiles", Path: "/Users/me/code/dotfiles"}}, doc.Projects)
	require.Len(t, doc.Groups, 1)
	work := doc.Groups[0]
	assert.Equal(t, "Work", work.Name)
	assert.Equal(t, []registry.ProjectDoc{{Name: "My API", Path: "/Users/me/work/My API"}}, work.Projects)
	require.Len(t, work.Groups, 1)
	assert.Equal(t, "Archive", work.Groups[0].Name)
}

func TestTowerReaderParsesBinaryBookmarks(t *testing.T) {
	bookmarks := map[string]any{
		"children": []any{
			map[string]any{"name": "api", "fileURL": "file:///Users/me/api/"},
			map[string]any{"name": "Side", "children": []any{
				map[string]any{"name": "toy", "path": "/Users/me/toy"},
			}},
		},
	}
	data, err := plist.Marshal(bookmarks, plist.BinaryFormat)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "bookmarks-v2.plist")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	doc, err := (&TowerReader{Path: path}).ReadTracked(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []registry.ProjectDoc{{Name: "api", Path: "/Users/me/api"}}, doc.Projects)
	require.Len(t, doc.Groups, 1)
	assert.Equal(t, "Side", doc.Groups[0].Name)
	assert.Equal(t, []registry.ProjectDoc{{Name: "toy", Path: "/Users/me/toy"}}, doc.Groups[0].Projects)
}

func TestTowerReaderRootArray(t *testing.T) {
	data, err := plist.Marshal([]any{
		map[string]any{"name": "solo", "fileURL": "file:///srv/solo"},
	}, plist.XMLFormat)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "bookmarks.plist")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	doc, err := (&TowerReader{Path: path}).ReadTracked(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []registry.ProjectDoc{{Name: "solo", Path: "/srv/solo"}}, doc.Projects)
}

func TestTowerReaderMissingFile(t *testing.T) {
	r := &TowerReader{Path: filepath.Join(t.TempDir(), "nope.plist")}
	doc, err := r.ReadTracked(context.Background())
	require.NoError(t, err)
	assert.True(t, doc.IsEmpty())
}

func TestTowerReaderRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookmarks.plist")
	require.NoError(t, os.WriteFile(path, []byte("bplist00\x00\x01"), 0o644))

	_, err := (&TowerReader{Path: path}).ReadTracked(context.Background())
	assert.Error(t, err)
}

func TestDescribePackageJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"name":"x","description":"  A tiny tool  "}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("readme text\n"), 0o644))

	desc, err := PathDescriber{}.Describe(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "A tiny tool", desc)
}

func TestDescribeInvalidPackageJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{`), 0o644))

	_, err := PathDescriber{}.Describe(context.Background(), dir)
	assert.Error(t, err)
}

func TestDescribeReadme(t *testing.T) {
	dir := t.TempDir()
	readme := "# Title\n\n![badge](x)\n```sh\nmake\n```\nFast static site builder.\nMore text.\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte(readme), 0o644))

	desc, err := PathDescriber{}.Describe(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "Fast static site builder.", desc)
}

func TestDescribeLongReadmeLineIsClipped(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte(strings.Repeat("word ", 60)), 0o644))

	desc, err := PathDescriber{}.Describe(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, []rune(desc), maxDescriptionRunes)
	assert.True(t, strings.HasSuffix(desc, "…"))
}

func TestDescribeGitRemote(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	_, err = repo.CreateRemote(&gitconfig.RemoteConfig{Name: "origin", URLs: []string{"git@github.com:me/tool.git"}})
	require.NoError(t, err)

	desc, err := PathDescriber{}.Describe(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "github.com/me/tool", desc)
}

func TestDescribeNothingFound(t *testing.T) {
	desc, err := PathDescriber{}.Describe(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, desc)
}

func TestRemoteSlug(t *testing.T) {
	tests := map[string]string{
		"git@github.com:me/tool.git":         "github.com/me/tool",
		"https://github.com/me/tool":         "github.com/me/tool",
		"https://user@gitlab.com/g/p.git":    "gitlab.com/g/p",
		"ssh://git@example.org/team/app.git": "example.org/team/app",
	}
	for in, want := range tests {
		assert.Equal(t, want, remoteSlug(in), in)
	}
}
