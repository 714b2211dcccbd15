package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/amirbrooks/projects-docstore/internal/registry"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid")
	timeNow     = func() time.Time { return time.Now().UTC() }
)

// Workspace is the on-disk home of the registry file and its config.
type Workspace struct {
	Root string
	cfg  Config
}

// Open opens a workspace rooted at root. It does not create files until Init
// is called; a missing config yields defaults.
func Open(root string) (*Workspace, error) {
	ws := &Workspace{Root: expandHome(root)}
	cfg, err := LoadConfig(ws.Root)
	ws.cfg = cfg
	if err != nil {
		return ws, err
	}
	return ws, nil
}

// Init creates the store root, the config file and, unless one exists, a
// sample registry. With force the sample overwrites an existing registry.
func (w *Workspace) Init(force bool) (bool, error) {
	if err := os.MkdirAll(w.Root, 0o755); err != nil {
		return false, err
	}
	if _, err := os.Stat(w.ConfigPath()); errors.Is(err, fs.ErrNotExist) {
		if err := writeConfigFile(w.ConfigPath(), w.cfg); err != nil {
			return false, err
		}
	}
	if w.HasRegistry() && !force {
		return false, nil
	}
	if err := w.WriteRegistry(registry.FromDocument(sampleDocument())); err != nil {
		return false, err
	}
	return true, nil
}

func sampleDocument() registry.Document {
	return registry.Document{
		Projects: []registry.ProjectDoc{{
			Name:        "Project",
			Description: "An awesome project",
			Path:        "/path/to/project",
		}},
		Groups: []registry.GroupDoc{{
			Name: "Group",
			Projects: []registry.ProjectDoc{{
				Name:        "Nested Project",
				Description: "An awesome nested project",
				Path:        "/path/to/nested/project",
			}},
		}},
	}
}

func (w *Workspace) Config() Config {
	return w.cfg
}

func (w *Workspace) ConfigPath() string {
	return filepath.Join(w.Root, configFileName)
}

// RegistryPath resolves the registry file; relative paths are taken from the
// store root.
func (w *Workspace) RegistryPath() string {
	p := strings.TrimSpace(w.cfg.Registry)
	if p == "" {
		return filepath.Join(w.Root, registryFileName)
	}
	p = expandHome(p)
	if !filepath.IsAbs(p) {
		p = filepath.Join(w.Root, p)
	}
	return p
}

func (w *Workspace) HasRegistry() bool {
	_, err := os.Stat(w.RegistryPath())
	return err == nil
}

// ReadRegistry loads the registry file. A missing file is an empty registry.
func (w *Workspace) ReadRegistry() (*registry.Registry, error) {
	path := w.RegistryPath()
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return registry.New(), nil
		}
		return nil, fmt.Errorf("read registry: %w", err)
	}
	doc, err := decodeDocument(path, b)
	if err != nil {
		return nil, fmt.Errorf("%w: registry %s: %v", ErrInvalid, path, err)
	}
	return registry.FromDocument(doc), nil
}

// WriteRegistry overwrites the registry file as a whole.
func (w *Workspace) WriteRegistry(r *registry.Registry) error {
	path := w.RegistryPath()
	b, err := encodeDocument(path, r.Document())
	if err != nil {
		return err
	}
	if err := atomicWriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	return nil
}

// SetActiveGroup records the group the user entered; empty clears it.
func (w *Workspace) SetActiveGroup(name string) error {
	cfg, err := readConfigFile(w.ConfigPath())
	if err != nil {
		return err
	}
	cfg.Group = strings.TrimSpace(name)
	if err := writeConfigFile(w.ConfigPath(), cfg); err != nil {
		return err
	}
	w.cfg.Group = cfg.Group
	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func decodeDocument(path string, b []byte) (registry.Document, error) {
	var doc registry.Document
	if len(strings.TrimSpace(string(b))) == 0 {
		return doc, nil
	}
	if isYAML(path) {
		err := yaml.Unmarshal(b, &doc)
		return doc, err
	}
	err := json.Unmarshal(b, &doc)
	return doc, err
}

func encodeDocument(path string, doc registry.Document) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(&doc)
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~"+string(os.PathSeparator)) || path == "~" {
		home, _ := os.UserHomeDir()
		if home != "" {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// ExpandHome resolves a leading ~ to the user's home directory.
func ExpandHome(path string) string {
	return expandHome(path)
}

func atomicWriteFile(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".tmp-%d", timeNow().UnixNano()))
	if err := os.WriteFile(tmp, data, perm); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	// Rename is atomic on same filesystem.
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
