package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"howett.net/plist"

	"github.com/amirbrooks/projects-docstore/internal/registry"
)

// TowerReader reads the repositories bookmarked in Git Tower. Tower folders
// become groups and bookmarked repositories become projects.
type TowerReader struct {
	// Path is the bookmarks plist; empty means DefaultTowerBookmarks.
	Path   string
	Logger *zap.Logger
}

func (t *TowerReader) Name() string { return "tower" }

func (t *TowerReader) Discover(ctx context.Context) (registry.Document, error) {
	return t.ReadTracked(ctx)
}

// ReadTracked parses the bookmarks file. A missing file is an empty result.
func (t *TowerReader) ReadTracked(ctx context.Context) (registry.Document, error) {
	log := t.Logger
	if log == nil {
		log = zap.NewNop()
	}
	doc := registry.Document{Projects: []registry.ProjectDoc{}, Groups: []registry.GroupDoc{}}
	path := t.Path
	if path == "" {
		path = DefaultTowerBookmarks()
	}
	if path == "" {
		return doc, nil
	}
	if err := ctx.Err(); err != nil {
		return doc, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug("no tower bookmarks", zap.String("path", path))
			return doc, nil
		}
		return doc, err
	}
	defer f.Close()

	var root any
	if err := plist.NewDecoder(f).Decode(&root); err != nil {
		return doc, fmt.Errorf("tower bookmarks %s: %w", path, err)
	}
	for _, item := range topLevelNodes(root) {
		if isTowerFolder(item) {
			doc.Groups = append(doc.Groups, towerGroup(item))
		} else if p, ok := towerProject(item); ok {
			doc.Projects = append(doc.Projects, p)
		}
	}
	log.Debug("tower bookmarks read", zap.String("path", path), zap.Int("projects", len(doc.Projects)), zap.Int("groups", len(doc.Groups)))
	return doc, nil
}

// DefaultTowerBookmarks returns the first Tower bookmarks file found in the
// user's Application Support directory, or "" when there is none.
func DefaultTowerBookmarks() string {
	if runtime.GOOS != "darwin" {
		return ""
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	support := filepath.Join(home, "Library", "Application Support")
	for _, candidate := range []string{
		filepath.Join(support, "com.fournova.Tower3", "bookmarks-v2.plist"),
		filepath.Join(support, "com.fournova.Tower2", "bookmarks-v2.plist"),
	} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// towerNode is one decoded plist dictionary: a folder or a repository.
type towerNode = map[string]any

func isTowerFolder(n towerNode) bool {
	_, hasChildren := n["children"]
	return hasChildren && towerPath(n) == ""
}

func towerChildren(n towerNode) []towerNode {
	arr, _ := n["children"].([]any)
	out := make([]towerNode, 0, len(arr))
	for _, item := range arr {
		if child, ok := item.(towerNode); ok {
			out = append(out, child)
		}
	}
	return out
}

func towerString(n towerNode, key string) string {
	s, _ := n[key].(string)
	return strings.TrimSpace(s)
}

func towerGroup(n towerNode) registry.GroupDoc {
	g := registry.GroupDoc{Name: towerString(n, "name"), Projects: []registry.ProjectDoc{}}
	for _, child := range towerChildren(n) {
		if isTowerFolder(child) {
			g.Groups = append(g.Groups, towerGroup(child))
		} else if p, ok := towerProject(child); ok {
			g.Projects = append(g.Projects, p)
		}
	}
	return g
}

func towerProject(n towerNode) (registry.ProjectDoc, bool) {
	path := towerPath(n)
	if path == "" {
		return registry.ProjectDoc{}, false
	}
	name := towerString(n, "name")
	if name == "" {
		name = filepath.Base(path)
	}
	return registry.ProjectDoc{Name: name, Path: path}, true
}

func towerPath(n towerNode) string {
	raw := towerString(n, "fileURL")
	if raw == "" {
		raw = towerString(n, "path")
	}
	if raw == "" {
		return ""
	}
	if u, err := url.Parse(raw); err == nil && u.Scheme == "file" {
		raw = u.Path
	}
	return registry.NormalizePath(raw)
}

// topLevelNodes accepts both layouts Tower has written: a root dict holding
// "children" and a bare array.
func topLevelNodes(root any) []towerNode {
	switch v := root.(type) {
	case towerNode:
		return towerChildren(v)
	case []any:
		return towerChildren(towerNode{"children": v})
	}
	return nil
}
