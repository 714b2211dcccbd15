package discovery

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

const maxDescriptionRunes = 120

var readmeNames = []string{"README.md", "readme.md", "README.markdown", "README.rst", "README.txt", "README"}

// PathDescriber derives a short description for a project directory from,
// in order: the package.json description, the first prose line of the
// README, and the origin remote of a git repository.
type PathDescriber struct{}

func (PathDescriber) Describe(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if desc, err := packageDescription(path); err != nil || desc != "" {
		return desc, err
	}
	if desc, err := readmeDescription(path); err != nil || desc != "" {
		return desc, err
	}
	return gitRemoteDescription(path)
}

func packageDescription(dir string) (string, error) {
	b, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	var pkg struct {
		Description string `json:"description"`
	}
	if err := json.Unmarshal(b, &pkg); err != nil {
		return "", fmt.Errorf("package.json: %w", err)
	}
	return clip(pkg.Description), nil
}

func readmeDescription(dir string) (string, error) {
	for _, name := range readmeNames {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return "", err
		}
		desc, err := firstProseLine(f)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("%s: %w", name, err)
		}
		return desc, nil
	}
	return "", nil
}

func firstProseLine(f *os.File) (string, error) {
	sc := bufio.NewScanner(f)
	inFence := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "```") {
			inFence = !inFence
			continue
		}
		if inFence || line == "" {
			continue
		}
		switch line[0] {
		case '#', '!', '[', '<', '=', '-', '|', '>':
			continue
		}
		return clip(line), nil
	}
	return "", sc.Err()
}

func gitRemoteDescription(dir string) (string, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return "", nil
		}
		return "", err
	}
	remote, err := repo.Remote("origin")
	if err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return "", nil
		}
		return "", err
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", nil
	}
	return remoteSlug(urls[0]), nil
}

// remoteSlug turns git@github.com:me/tool.git or https://github.com/me/tool
// into github.com/me/tool.
func remoteSlug(remote string) string {
	s := strings.TrimSpace(remote)
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	} else if at := strings.Index(s, "@"); at >= 0 {
		if colon := strings.Index(s[at:], ":"); colon >= 0 {
			s = s[:at+colon] + "/" + s[at+colon+1:]
		}
	}
	if at := strings.Index(s, "@"); at >= 0 && at < strings.Index(s+"/", "/") {
		s = s[at+1:]
	}
	s = strings.TrimSuffix(strings.TrimSuffix(s, "/"), ".git")
	return s
}

func clip(s string) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= maxDescriptionRunes {
		return s
	}
	return string(r[:maxDescriptionRunes-1]) + "…"
}
