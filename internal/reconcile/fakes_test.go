package reconcile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/goleak"

	"github.com/danmuck/uvguard/internal/hub"
	"github.com/danmuck/uvguard/internal/manifest"
	"github.com/danmuck/uvguard/internal/tools"
	"github.com/danmuck/uvguard/internal/uv"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeResolver struct {
	packages map[string]string
	errs     map[string]error
	calls    []string
}

func (f *fakeResolver) Resolve(_ context.Context, uri string) (hub.Resolution, error) {
	f.calls = append(f.calls, uri)
	ref, err := hub.ParseURI(uri)
	if err != nil {
		return hub.Resolution{}, err
	}
	if err := f.errs[ref.ID.URI()]; err != nil {
		return hub.Resolution{}, err
	}
	pkg, ok := f.packages[ref.ID.URI()]
	if !ok {
		return hub.Resolution{}, fmt.Errorf("%w: %s", hub.ErrUnknownValidator, uri)
	}
	return hub.Resolution{Ref: ref, Package: pkg, Directive: hub.Directive{URI: ref.String()}}, nil
}

type toolCall struct {
	verb     string
	packages []string
	policy   uv.IndexPolicy
	extra    []string
}

// fakeTool records calls and, like uv, edits the manifest it manages.
type fakeTool struct {
	store    *manifest.Store
	calls    []toolCall
	failVerb map[string]error
	// onSync observes the manifest on disk at the time sync runs.
	onSync func()
}

func (f *fakeTool) fail(verb string) error {
	if err := f.failVerb[verb]; err != nil {
		return &tools.ToolInvocationError{Tool: "uv", Verb: verb, ExitCode: 1, Stderr: err.Error(), Cause: err}
	}
	return nil
}

func (f *fakeTool) Init(_ context.Context, extra []string) error {
	f.calls = append(f.calls, toolCall{verb: "init", extra: extra})
	if err := f.fail("init"); err != nil {
		return err
	}
	return os.WriteFile(f.store.Path(), []byte("[project]\nname = \"demo\"\nversion = \"0.1.0\"\ndependencies = []\n"), 0o644)
}

func (f *fakeTool) Add(_ context.Context, packages []string, policy uv.IndexPolicy, extra []string) error {
	f.calls = append(f.calls, toolCall{verb: "add", packages: packages, policy: policy, extra: extra})
	if err := f.fail("add"); err != nil {
		return err
	}
	if !f.store.Exists() {
		return nil
	}
	m, err := f.store.Load()
	if err != nil {
		return err
	}
	for _, p := range packages {
		m.EnsurePackage(p)
	}
	return f.store.Save(m)
}

func (f *fakeTool) Remove(_ context.Context, packages []string, extra []string) error {
	f.calls = append(f.calls, toolCall{verb: "remove", packages: packages, extra: extra})
	if err := f.fail("remove"); err != nil {
		return err
	}
	m, err := f.store.Load()
	if err != nil {
		return err
	}
	for _, p := range packages {
		m.RemovePackage(p)
	}
	return f.store.Save(m)
}

func (f *fakeTool) Sync(_ context.Context, policy uv.IndexPolicy, extra []string) error {
	f.calls = append(f.calls, toolCall{verb: "sync", policy: policy, extra: extra})
	if f.onSync != nil {
		f.onSync()
	}
	return f.fail("sync")
}

func (f *fakeTool) verbs() []string {
	var out []string
	for _, c := range f.calls {
		out = append(out, c.verb)
	}
	return out
}

type installCall struct {
	dir     string
	uri     string
	pkg     string
	require string
}

type fakeInstaller struct {
	calls []installCall
	fail  map[string]error
}

func (f *fakeInstaller) Install(_ context.Context, dir string, res hub.Resolution) error {
	f.calls = append(f.calls, installCall{dir: dir, uri: res.URI(), pkg: res.Package, require: res.Requirement()})
	if err := f.fail[res.Ref.ID.URI()]; err != nil {
		return &tools.ToolInvocationError{Tool: "uv", Verb: "run", ExitCode: 1, Stderr: err.Error(), Cause: err}
	}
	return nil
}

type harness struct {
	dir       string
	store     *manifest.Store
	resolver  *fakeResolver
	tool      *fakeTool
	installer *fakeInstaller
	engine    *Engine
}

func newHarness(t *testing.T, body string) *harness {
	t.Helper()
	dir := t.TempDir()
	store := manifest.NewStore(dir, "", "")
	if body != "" {
		if err := os.WriteFile(filepath.Join(dir, manifest.DefaultFile), []byte(body), 0o644); err != nil {
			t.Fatalf("write manifest: %v", err)
		}
	}
	h := &harness{
		dir:   dir,
		store: store,
		resolver: &fakeResolver{packages: map[string]string{
			"hub://g/x": "pkg-x",
			"hub://g/y": "pkg-y",
		}},
		tool:      &fakeTool{store: store},
		installer: &fakeInstaller{},
	}
	h.engine = &Engine{
		Store:       store,
		Resolver:    h.resolver,
		Tool:        h.tool,
		Installer:   h.installer,
		CorePackage: "guardrails-ai",
	}
	return h
}

func (h *harness) load(t *testing.T) *manifest.Manifest {
	t.Helper()
	m, err := h.store.Load()
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	return m
}

func (h *harness) raw(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(h.store.Path())
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	return string(data)
}
