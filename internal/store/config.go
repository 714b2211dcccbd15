package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

const (
	configFileName   = "config.yaml"
	registryFileName = "projects.json"
	envPrefix        = "PROJECTS_"
)

type Config struct {
	Schema   int           `koanf:"schema" yaml:"schema"`
	Registry string        `koanf:"registry" yaml:"registry,omitempty"`
	Group    string        `koanf:"group" yaml:"group,omitempty"` // active group, empty = all
	Editor   string        `koanf:"editor" yaml:"editor,omitempty"`
	Refresh  RefreshConfig `koanf:"refresh" yaml:"refresh"`
	Tower    TowerConfig   `koanf:"tower" yaml:"tower,omitempty"`
	Open     OpenConfig    `koanf:"open" yaml:"open"`
}

type RefreshConfig struct {
	Roots         []string `koanf:"roots" yaml:"roots"`
	Depth         int      `koanf:"depth" yaml:"depth"`
	IgnoreFolders []string `koanf:"ignore_folders" yaml:"ignore_folders"`
	Describe      *bool    `koanf:"describe" yaml:"describe,omitempty"`
}

// DescribeEnabled reports whether refresh should look up missing descriptions.
func (r RefreshConfig) DescribeEnabled() bool {
	return r.Describe == nil || *r.Describe
}

type TowerConfig struct {
	Bookmarks string `koanf:"bookmarks" yaml:"bookmarks,omitempty"`
	Disabled  bool   `koanf:"disabled" yaml:"disabled,omitempty"`
}

type OpenConfig struct {
	Command       string `koanf:"command" yaml:"command"`
	NewWindowFlag string `koanf:"new_window_flag" yaml:"new_window_flag"`
}

func defaultConfig() Config {
	return Config{
		Schema: 1,
		Refresh: RefreshConfig{
			Roots:         []string{},
			Depth:         1,
			IgnoreFolders: []string{"node_modules", "vendor"},
		},
		Open: OpenConfig{
			Command:       "code",
			NewWindowFlag: "--new-window",
		},
	}
}

// applyDefaults fills zero values left by a partial config file.
func applyDefaults(cfg *Config) {
	def := defaultConfig()
	if cfg.Schema == 0 {
		cfg.Schema = def.Schema
	}
	if cfg.Refresh.Depth <= 0 {
		cfg.Refresh.Depth = def.Refresh.Depth
	}
	if cfg.Refresh.IgnoreFolders == nil {
		cfg.Refresh.IgnoreFolders = def.Refresh.IgnoreFolders
	}
	if cfg.Refresh.Roots == nil {
		cfg.Refresh.Roots = def.Refresh.Roots
	}
	if strings.TrimSpace(cfg.Open.Command) == "" {
		cfg.Open.Command = def.Open.Command
	}
	if strings.TrimSpace(cfg.Open.NewWindowFlag) == "" {
		cfg.Open.NewWindowFlag = def.Open.NewWindowFlag
	}
}

// LoadConfig reads <root>/config.yaml, then applies PROJECTS_* environment
// overrides:
//
//	PROJECTS_GROUP                  -> group
//	PROJECTS_REFRESH_DEPTH          -> refresh.depth
//	PROJECTS_REFRESH_ROOTS=a,b      -> refresh.roots
//	PROJECTS_OPEN_NEW_WINDOW_FLAG   -> open.new_window_flag
//
// A missing file yields the defaults.
func LoadConfig(root string) (Config, error) {
	k := koanf.New(".")

	b, err := os.ReadFile(filepath.Join(root, configFileName))
	switch {
	case err == nil:
		if err := k.Load(rawbytes.Provider(b), yaml.Parser()); err != nil {
			return defaultConfig(), fmt.Errorf("%w: config: %v", ErrInvalid, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return defaultConfig(), err
	}

	if err := k.Load(env.ProviderWithValue(envPrefix, ".", envKeyValue), nil); err != nil {
		return defaultConfig(), fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return defaultConfig(), fmt.Errorf("%w: config: %v", ErrInvalid, err)
	}
	applyDefaults(&cfg)
	return cfg, nil
}

// envKeyValue maps PROJECTS_SECTION_FIELD_NAME to section.field_name and
// splits list values on commas.
func envKeyValue(key, value string) (string, any) {
	name := strings.ToLower(strings.TrimPrefix(key, envPrefix))
	if name == "root" {
		// PROJECTS_ROOT selects the store itself, not a config key.
		return "", nil
	}
	parts := strings.SplitN(name, "_", 2)
	if len(parts) == 2 {
		switch parts[0] {
		case "refresh", "tower", "open":
			name = parts[0] + "." + parts[1]
		}
	}
	switch name {
	case "refresh.roots", "refresh.ignore_folders":
		return name, splitList(value)
	}
	return name, value
}

func splitList(value string) []string {
	out := []string{}
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// readConfigFile reads the config file without environment overrides so it
// can be rewritten without persisting them.
func readConfigFile(path string) (Config, error) {
	cfg := defaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yamlv3.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: config: %v", ErrInvalid, err)
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func writeConfigFile(path string, cfg Config) error {
	b, err := yamlv3.Marshal(&cfg)
	if err != nil {
		return err
	}
	return atomicWriteFile(path, b, 0o644)
}
