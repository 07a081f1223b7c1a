package manifest

import (
	"fmt"
	"path/filepath"
	"slices"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/uvguard/internal/pyreq"
)

// Project is one manifest-bearing project of a uv workspace.
type Project struct {
	Name  string
	Dir   string
	Root  bool
	Store *Store
}

// Selection mirrors the uv sync flags that pick workspace projects.
type Selection struct {
	AllPackages      bool
	Packages         []string
	ExcludePackages  []string
	NoInstallProject bool
}

// Workspace returns the root project followed by its workspace members in
// path order. A root without [tool.uv.workspace] yields only itself.
func (s *Store) Workspace(root *Manifest) ([]Project, error) {
	rootDir, err := filepath.Abs(s.Dir)
	if err != nil {
		return nil, err
	}
	projects := []Project{{Name: root.Name, Dir: rootDir, Root: true, Store: s}}

	members, excludes, err := workspacePatterns(root.doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrManifestCorrupt, root.Path, err)
	}

	seen := map[string]bool{rootDir: true}
	var dirs []string
	for _, pattern := range members {
		matches, err := doublestar.FilepathGlob(filepath.Join(rootDir, filepath.FromSlash(pattern)))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: workspace member %q: %v", ErrManifestCorrupt, root.Path, pattern, err)
		}
		for _, dir := range matches {
			dir = filepath.Clean(dir)
			if seen[dir] || excluded(rootDir, dir, excludes) {
				continue
			}
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	sort.Strings(dirs)

	for _, dir := range dirs {
		member := s.At(dir)
		if !member.Exists() {
			continue
		}
		m, err := member.Load()
		if err != nil {
			return nil, err
		}
		name := m.Name
		if name == "" {
			name = filepath.Base(dir)
		}
		projects = append(projects, Project{Name: name, Dir: dir, Store: member})
	}
	log.Debug().Str("root", rootDir).Int("projects", len(projects)).Msg("workspace discovered")
	return projects, nil
}

// Select applies sel to projects, keeping their order.
func (sel Selection) Select(projects []Project) []Project {
	var out []Project
	for _, p := range projects {
		if containsName(sel.ExcludePackages, p.Name) {
			continue
		}
		switch {
		case p.Root:
			if sel.NoInstallProject {
				continue
			}
		case sel.AllPackages || containsName(sel.Packages, p.Name):
		default:
			continue
		}
		out = append(out, p)
	}
	return out
}

func containsName(names []string, name string) bool {
	want := pyreq.NormalizeName(name)
	return want != "" && slices.ContainsFunc(names, func(n string) bool {
		return pyreq.NormalizeName(n) == want
	})
}

func excluded(rootDir, dir string, patterns []string) bool {
	rel, err := filepath.Rel(rootDir, dir)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func workspacePatterns(doc map[string]any) ([]string, []string, error) {
	tool, _ := doc["tool"].(map[string]any)
	uv, _ := tool["uv"].(map[string]any)
	ws, ok := uv["workspace"]
	if !ok {
		return nil, nil, nil
	}
	table, ok := ws.(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("[tool.uv.workspace] is not a table")
	}
	members, _, err := stringList(table, "members")
	if err != nil {
		return nil, nil, err
	}
	excludes, _, err := stringList(table, "exclude")
	if err != nil {
		return nil, nil, err
	}
	return members, excludes, nil
}
