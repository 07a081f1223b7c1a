package reconcile

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/uvguard/internal/hub"
	"github.com/danmuck/uvguard/internal/manifest"
	"github.com/danmuck/uvguard/internal/observability"
	"github.com/danmuck/uvguard/internal/uv"
)

var ErrValidatorNotDeclared = errors.New("reconcile: validator not declared")

// PackageTool is the package manager capability the engine drives.
type PackageTool interface {
	Init(ctx context.Context, extra []string) error
	Add(ctx context.Context, packages []string, policy uv.IndexPolicy, extra []string) error
	Remove(ctx context.Context, packages []string, extra []string) error
	Sync(ctx context.Context, policy uv.IndexPolicy, extra []string) error
}

// AssetInstaller materialises a resolved validator's assets in dir.
type AssetInstaller interface {
	Install(ctx context.Context, dir string, res hub.Resolution) error
}

// Engine wires the manifest store, resolver and adapters of one project.
type Engine struct {
	Store       *manifest.Store
	Resolver    hub.Resolver
	Tool        PackageTool
	Installer   AssetInstaller
	CorePackage string
}

// SyncOptions selects workspace projects and carries the uv sync tail.
type SyncOptions struct {
	Selection manifest.Selection
	Extra     []string
}

// run wraps one operation with its logger, timing and metrics.
func (e *Engine) run(ctx context.Context, op string, fn func(context.Context, *Outcome) error) (*Outcome, error) {
	logger := observability.OperationLogger(op)
	ctx = logger.WithContext(ctx)
	out := &Outcome{Operation: op}

	start := time.Now()
	logger.Info().Str("project", e.Store.Dir).Msg("operation started")
	if err := fn(ctx, out); err != nil && out.OK() {
		// failures outside a named step still fail the operation
		out.record(op, "", err)
	}
	elapsed := time.Since(start)
	err := out.Err()
	observability.RecordOperation(op, elapsed, err == nil)

	ev := logger.Info()
	if err != nil {
		ev = logger.Error().Int("failed_steps", len(out.Failed()))
	}
	ev.Int("steps", len(out.Steps)).Dur("elapsed", elapsed).Msg("operation finished")
	return out, err
}

// memo resolves each identifier at most once per operation.
type memo struct {
	resolver hub.Resolver
	cache    map[string]hub.Resolution
}

func newMemo(r hub.Resolver) *memo {
	return &memo{resolver: r, cache: map[string]hub.Resolution{}}
}

func (m *memo) resolve(ctx context.Context, uri string) (hub.Resolution, error) {
	if res, ok := m.cache[uri]; ok {
		return res, nil
	}
	res, err := m.resolver.Resolve(ctx, uri)
	if err != nil {
		return hub.Resolution{}, err
	}
	m.cache[uri] = res
	return res, nil
}

func splitTargets(targets []string) (validators, packages []string) {
	for _, t := range targets {
		if hub.IsURI(t) {
			validators = append(validators, t)
			continue
		}
		packages = append(packages, t)
	}
	return validators, packages
}

// Init creates the project when needed and declares the core package.
func (e *Engine) Init(ctx context.Context, extra []string) (*Outcome, error) {
	return e.run(ctx, "init", func(ctx context.Context, out *Outcome) error {
		lg := zerolog.Ctx(ctx)
		if e.Store.Exists() {
			lg.Info().Str("path", e.Store.Path()).Msg("manifest exists, skipping package init")
		} else if err := e.Tool.Init(ctx, extra); err != nil {
			return out.record(StepInit, "", err)
		} else {
			out.record(StepInit, "", nil)
		}

		m, err := e.Store.Load()
		if err != nil {
			return out.record(StepLoad, e.Store.Path(), err)
		}
		out.Manifest = m
		if m.HasPackage(e.CorePackage) {
			lg.Info().Str("package", e.CorePackage).Msg("core package already declared")
			return nil
		}

		if err := e.Tool.Add(ctx, []string{e.CorePackage}, uv.IndexOff, nil); err != nil {
			return out.record(StepAdd, e.CorePackage, err)
		}
		out.record(StepAdd, e.CorePackage, nil)

		m, err = e.Store.Load()
		if err != nil {
			return out.record(StepLoad, e.Store.Path(), err)
		}
		m.EnsurePackage(e.CorePackage)
		return e.commit(ctx, out, m)
	})
}

// Add installs plain packages and validators in one package tool call,
// records the validators, then installs their assets.
func (e *Engine) Add(ctx context.Context, targets, extra []string) (*Outcome, error) {
	return e.run(ctx, "add", func(ctx context.Context, out *Outcome) error {
		if len(targets) == 0 {
			return errors.New("add: no targets")
		}
		validators, packages := splitTargets(targets)
		if len(validators) == 0 {
			return out.record(StepAdd, "", e.Tool.Add(ctx, packages, uv.IndexAuto, extra))
		}

		m, err := e.Store.Load()
		if err != nil {
			return out.record(StepLoad, e.Store.Path(), err)
		}
		out.Manifest = m

		resolver := newMemo(e.Resolver)
		resolved := make([]hub.Resolution, 0, len(validators))
		for _, v := range validators {
			res, err := resolver.resolve(ctx, m.EffectiveValidator(v))
			if err != nil {
				return out.record(StepResolve, v, err)
			}
			resolved = append(resolved, res)
		}

		reqs := append([]string{}, packages...)
		for _, res := range resolved {
			reqs = append(reqs, res.Requirement())
		}
		if err := e.Tool.Add(ctx, reqs, uv.IndexRequired, extra); err != nil {
			return out.record(StepAdd, "", err)
		}
		out.record(StepAdd, "", nil)

		// the package tool rewrote the manifest; apply our part on top
		fresh, err := e.Store.Load()
		if err != nil {
			return out.record(StepLoad, e.Store.Path(), err)
		}
		for _, res := range resolved {
			fresh.UpsertValidator(res.URI())
			fresh.EnsurePackage(res.Requirement())
		}
		if err := e.commit(ctx, out, fresh); err != nil {
			return err
		}

		// install failures leave the manifest as committed; sync repairs assets
		for _, res := range resolved {
			out.record(StepInstall, res.URI(), e.Installer.Install(ctx, e.Store.Dir, res))
		}
		return nil
	})
}

// Remove drops validators (and their packages) from the project. A package
// still resolved by a remaining validator is kept.
func (e *Engine) Remove(ctx context.Context, targets, extra []string) (*Outcome, error) {
	return e.run(ctx, "remove", func(ctx context.Context, out *Outcome) error {
		if len(targets) == 0 {
			return errors.New("remove: no targets")
		}
		validators, packages := splitTargets(targets)
		if len(validators) == 0 {
			return out.record(StepRemove, "", e.Tool.Remove(ctx, packages, extra))
		}
		lg := zerolog.Ctx(ctx)

		m, err := e.Store.Load()
		if err != nil {
			return out.record(StepLoad, e.Store.Path(), err)
		}
		out.Manifest = m

		resolver := newMemo(e.Resolver)
		var removed []string
		removing := map[string]bool{}
		for _, v := range validators {
			declared, ok := m.Validator(v)
			if !ok {
				return out.record(StepLookup, v, fmt.Errorf("%w: %s", ErrValidatorNotDeclared, v))
			}
			if removing[declared] {
				continue
			}
			removing[declared] = true
			removed = append(removed, declared)
		}

		var dropped []string
		for _, declared := range removed {
			res, err := resolver.resolve(ctx, declared)
			if err != nil {
				return out.record(StepResolve, declared, err)
			}
			dropped = append(dropped, res.Package)
		}

		// packages other validators still need stay declared
		keep := map[string]bool{}
		for _, v := range m.Validators {
			if slices.ContainsFunc(removed, func(r string) bool { return hub.SameValidator(r, v) }) {
				continue
			}
			if pkg, ok := e.packageOf(ctx, resolver, v); ok {
				keep[pkg] = true
			}
		}

		uninstall := append([]string{}, packages...)
		var detach []string
		for _, pkg := range dropped {
			switch {
			case keep[pkg]:
				lg.Info().Str("package", pkg).Msg("package still required by another validator")
			case !m.HasPackage(pkg):
				lg.Warn().Str("package", pkg).Msg("package not declared, skipping package removal")
			case !slices.Contains(detach, pkg):
				detach = append(detach, pkg)
				uninstall = append(uninstall, pkg)
			}
		}

		if len(uninstall) > 0 {
			if err := e.Tool.Remove(ctx, uninstall, extra); err != nil {
				return out.record(StepRemove, "", err)
			}
			out.record(StepRemove, "", nil)
		}

		fresh, err := e.Store.Load()
		if err != nil {
			return out.record(StepLoad, e.Store.Path(), err)
		}
		for _, v := range removed {
			fresh.RemoveValidator(v)
		}
		for _, pkg := range detach {
			fresh.RemovePackage(pkg)
		}
		return e.commit(ctx, out, fresh)
	})
}

// packageOf names the package a remaining validator needs. When the
// resolver fails, the hub naming rule stands in so an unrelated entry never
// blocks a removal.
func (e *Engine) packageOf(ctx context.Context, resolver *memo, uri string) (string, bool) {
	res, err := resolver.resolve(ctx, uri)
	if err == nil {
		return res.Package, true
	}
	lg := zerolog.Ctx(ctx).Warn().Err(err).Str("validator", uri)
	ref, perr := hub.ParseURI(uri)
	if perr != nil {
		lg.Msg("remaining validator unresolvable, ignored")
		return "", false
	}
	lg.Str("package", ref.ID.PackageName()).Msg("remaining validator unresolvable, keeping its default package")
	return ref.ID.PackageName(), true
}

type pendingInstall struct {
	dir string
	res hub.Resolution
}

// Sync repairs drift in every selected project, runs the package sync and
// then reinstalls every declared validator's assets.
func (e *Engine) Sync(ctx context.Context, opts SyncOptions) (*Outcome, error) {
	return e.run(ctx, "sync", func(ctx context.Context, out *Outcome) error {
		lg := zerolog.Ctx(ctx)

		root, err := e.Store.Load()
		if err != nil {
			return out.record(StepLoad, e.Store.Path(), err)
		}
		out.Manifest = root
		projects, err := e.Store.Workspace(root)
		if err != nil {
			return out.record(StepLoad, e.Store.Path(), err)
		}
		selected := opts.Selection.Select(projects)

		type checkout struct {
			project  manifest.Project
			manifest *manifest.Manifest
			resolved []hub.Resolution
		}
		resolver := newMemo(e.Resolver)
		var checkouts []checkout
		for _, p := range selected {
			m := root
			if !p.Root {
				if m, err = p.Store.Load(); err != nil {
					return out.record(StepLoad, p.Store.Path(), err)
				}
			}
			c := checkout{project: p, manifest: m}
			for _, v := range m.Validators {
				res, err := resolver.resolve(ctx, v)
				if err != nil {
					return out.record(StepResolve, v, err)
				}
				c.resolved = append(c.resolved, res)
			}
			checkouts = append(checkouts, c)
		}

		repairs := 0
		policy := uv.IndexAuto
		var installs []pendingInstall
		for _, c := range checkouts {
			m := c.manifest
			droppedValidators, droppedPackages := m.Dedupe()
			for _, v := range droppedValidators {
				lg.Warn().Str("project", c.project.Name).Str("validator", v).Msg("duplicate validator entry dropped")
			}
			for _, pkg := range droppedPackages {
				lg.Warn().Str("project", c.project.Name).Str("package", pkg).Msg("duplicate package requirement dropped")
			}
			for _, res := range c.resolved {
				if m.EnsurePackage(res.Requirement()) {
					repairs++
					lg.Warn().
						Str("project", c.project.Name).
						Str("validator", res.URI()).
						Str("package", res.Package).
						Msg("validator package missing, re-declared")
				}
			}
			if len(m.Validators) > 0 {
				policy = uv.IndexRequired
				m.EnsurePackage(e.CorePackage)
			}
			if m.Dirty() {
				if err := c.project.Store.Save(m); err != nil {
					return out.record(StepSave, c.project.Store.Path(), err)
				}
				out.record(StepSave, c.project.Store.Path(), nil)
			}
			for _, res := range c.resolved {
				if containsInstall(installs, res) {
					continue
				}
				installs = append(installs, pendingInstall{dir: c.project.Dir, res: res})
			}
		}
		observability.RecordDriftRepairs(repairs)

		if err := e.Tool.Sync(ctx, policy, opts.Extra); err != nil {
			return out.record(StepSync, "", err)
		}
		out.record(StepSync, "", nil)

		// sync may prune assets it does not know about; reinstall them all
		for _, inst := range installs {
			err := e.Installer.Install(ctx, inst.dir, inst.res)
			if err != nil {
				lg.Error().Err(err).Str("validator", inst.res.URI()).Msg("validator install failed")
			}
			out.record(StepInstall, inst.res.URI(), err)
		}
		return nil
	})
}

// commit persists m when it differs from what is on disk.
func (e *Engine) commit(ctx context.Context, out *Outcome, m *manifest.Manifest) error {
	out.Manifest = m
	if !m.Dirty() {
		zerolog.Ctx(ctx).Debug().Str("path", e.Store.Path()).Msg("manifest already up to date")
		return nil
	}
	if err := e.Store.Save(m); err != nil {
		return out.record(StepSave, e.Store.Path(), err)
	}
	out.record(StepSave, e.Store.Path(), nil)
	return nil
}

func containsInstall(list []pendingInstall, res hub.Resolution) bool {
	for _, inst := range list {
		if inst.res.Ref.ID == res.Ref.ID {
			return true
		}
	}
	return false
}
