package manifest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/uvguard/internal/testutil/testlog"
)

func setupWorkspace(t *testing.T) (*Store, *Manifest) {
	t.Helper()
	root := t.TempDir()
	s := writeManifest(t, root, `[project]
name = "root-project"
guardrails = ["hub://g/root-guard"]

[tool.uv.workspace]
members = ["packages/*"]
exclude = ["packages/skip"]
`)
	writeManifest(t, filepath.Join(root, "packages", "pkg-a"), "[project]\nname = \"pkg-a\"\nguardrails = [\"hub://g/a-guard\"]\n")
	writeManifest(t, filepath.Join(root, "packages", "pkg-b"), "[project]\nname = \"pkg-b\"\nguardrails = [\"hub://g/b-guard\"]\n")
	writeManifest(t, filepath.Join(root, "packages", "skip"), "[project]\nname = \"skip\"\n")

	m, err := s.Load()
	require.NoError(t, err)
	return s, m
}

func names(projects []Project) []string {
	out := make([]string, 0, len(projects))
	for _, p := range projects {
		out = append(out, p.Name)
	}
	return out
}

func TestWorkspaceDiscovery(t *testing.T) {
	testlog.Start(t)
	s, m := setupWorkspace(t)

	projects, err := s.Workspace(m)
	require.NoError(t, err)
	assert.Equal(t, []string{"root-project", "pkg-a", "pkg-b"}, names(projects))
	assert.True(t, projects[0].Root)
	assert.False(t, projects[1].Root)

	member, err := projects[1].Store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"hub://g/a-guard"}, member.Validators)
}

func TestWorkspaceWithoutMembers(t *testing.T) {
	testlog.Start(t)
	s := writeManifest(t, t.TempDir(), "[project]\nname = \"solo\"\n")
	m, err := s.Load()
	require.NoError(t, err)

	projects, err := s.Workspace(m)
	require.NoError(t, err)
	assert.Equal(t, []string{"solo"}, names(projects))
}

func TestSelection(t *testing.T) {
	testlog.Start(t)
	s, m := setupWorkspace(t)
	projects, err := s.Workspace(m)
	require.NoError(t, err)

	cases := []struct {
		name string
		sel  Selection
		want []string
	}{
		{"default root only", Selection{}, []string{"root-project"}},
		{"all packages", Selection{AllPackages: true}, []string{"root-project", "pkg-a", "pkg-b"}},
		{"specific package", Selection{Packages: []string{"pkg_a"}}, []string{"root-project", "pkg-a"}},
		{"no install project", Selection{NoInstallProject: true}, nil},
		{"no project but all", Selection{NoInstallProject: true, AllPackages: true}, []string{"pkg-a", "pkg-b"}},
		{"exclude package", Selection{AllPackages: true, ExcludePackages: []string{"pkg-b"}}, []string{"root-project", "pkg-a"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.sel.Select(projects)
			if tc.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tc.want, names(got))
		})
	}
}
