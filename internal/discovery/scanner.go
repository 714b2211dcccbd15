// Package discovery produces candidate projects for the registry: a folder
// scanner, a Git Tower bookmarks reader and a per-path description lookup.
package discovery

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/amirbrooks/projects-docstore/internal/registry"
)

var (
	// DefaultAlwaysIgnore are directory names never descended into.
	DefaultAlwaysIgnore = []string{".vscode", ".git", ".svn"}
	// DefaultMarkers make the directory holding them a project.
	DefaultMarkers = []string{".git", ".svn", ".hg", ".vscode"}
)

type ScanOptions struct {
	Roots        []string
	MaxDepth     int
	Ignore       []string
	AlwaysIgnore []string
	Markers      []string
}

// FolderScanner finds projects under configured root directories.
type FolderScanner struct {
	Options ScanOptions
	Logger  *zap.Logger
}

func (s *FolderScanner) Name() string { return "folders" }

func (s *FolderScanner) Discover(ctx context.Context) (registry.Document, error) {
	return Scan(ctx, s.Options, s.Logger)
}

// Scan walks every root up to MaxDepth levels below it. A directory holding
// one of the markers becomes a root-level project named after the directory
// and is not descended into. Ignored names are skipped entirely; missing
// roots are logged and skipped.
func Scan(ctx context.Context, opts ScanOptions, log *zap.Logger) (registry.Document, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 1
	}
	if opts.AlwaysIgnore == nil {
		opts.AlwaysIgnore = DefaultAlwaysIgnore
	}
	if len(opts.Markers) == 0 {
		opts.Markers = DefaultMarkers
	}
	ignored := map[string]bool{}
	for _, name := range append(append([]string{}, opts.Ignore...), opts.AlwaysIgnore...) {
		if name = strings.TrimSpace(name); name != "" {
			ignored[name] = true
		}
	}

	doc := registry.Document{Projects: []registry.ProjectDoc{}, Groups: []registry.GroupDoc{}}
	seen := map[string]bool{}
	for _, root := range opts.Roots {
		root = registry.NormalizePath(root)
		if root == "" {
			continue
		}
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			log.Warn("skipping refresh root", zap.String("root", root), zap.Error(err))
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				log.Debug("skipping unreadable directory", zap.String("path", path), zap.Error(err))
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.IsDir() {
				return nil
			}
			if path != root && ignored[d.Name()] {
				return filepath.SkipDir
			}
			if hasMarker(path, opts.Markers) {
				if !seen[path] {
					seen[path] = true
					doc.Projects = append(doc.Projects, registry.ProjectDoc{Name: filepath.Base(path), Path: path})
				}
				return filepath.SkipDir
			}
			if depthBelow(root, path) >= opts.MaxDepth {
				return filepath.SkipDir
			}
			return nil
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return doc, err
			}
			log.Warn("scan failed", zap.String("root", root), zap.Error(err))
		}
	}
	log.Debug("folder scan finished", zap.Int("projects", len(doc.Projects)), zap.Int("roots", len(opts.Roots)))
	return doc, nil
}

func hasMarker(dir string, markers []string) bool {
	for _, m := range markers {
		if _, err := os.Lstat(filepath.Join(dir, m)); err == nil {
			return true
		}
	}
	return false
}

func depthBelow(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(os.PathSeparator)) + 1
}
