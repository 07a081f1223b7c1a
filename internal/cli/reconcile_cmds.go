package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danmuck/uvguard/internal/manifest"
	"github.com/danmuck/uvguard/internal/reconcile"
)

const (
	FlagAllPackages      = "all-packages"
	FlagPackage          = "package"
	FlagNoInstallProject = "no-install-project"
	FlagNoInstallPackage = "no-install-package"
)

// passthroughCmd builds a command whose flags are parsed by hand so unknown
// ones reach uv untouched.
func passthroughCmd(a *app, use, short, long string, extend func(*passthrough), run func(*cobra.Command, []string) error) *cobra.Command {
	return &cobra.Command{
		Use:                use,
		Short:              short,
		Long:               long,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.globals()
			if extend != nil {
				extend(p)
			}
			rest, err := p.parse(args)
			if err != nil {
				return err
			}
			if p.help {
				return cmd.Help()
			}
			if err := a.prepare(); err != nil {
				return err
			}
			return run(cmd, rest)
		},
	}
}

func finish(out *reconcile.Outcome, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s failed: %w", out.Operation, err)
}

func newInitCmd(a *app) *cobra.Command {
	return passthroughCmd(a, "init [uv init args...]",
		"Create a uv project and declare the guardrails runtime",
		`Runs "uv init" unless pyproject.toml already exists, then adds the core
guardrails package. Extra arguments are passed to "uv init".`,
		nil,
		func(cmd *cobra.Command, args []string) error {
			return finish(a.engine().Init(cmd.Context(), args))
		})
}

func newAddCmd(a *app) *cobra.Command {
	return passthroughCmd(a, "add <target...> [uv add args...]",
		"Add packages or hub:// validators",
		`Adds packages with "uv add". hub:// targets are resolved to their package,
recorded in [project].guardrails and have their assets installed.

Arguments after the targets, and any flags uvguard does not know, are passed
to "uv add" unchanged.`,
		nil,
		func(cmd *cobra.Command, args []string) error {
			targets, extra := splitTargets(args)
			if len(targets) == 0 {
				return errors.New("add: at least one package or hub:// validator is required")
			}
			return finish(a.engine().Add(cmd.Context(), targets, extra))
		})
}

func newRemoveCmd(a *app) *cobra.Command {
	return passthroughCmd(a, "remove <target...> [uv remove args...]",
		"Remove packages or hub:// validators",
		`Removes packages with "uv remove". hub:// targets must be declared in
[project].guardrails; their package is removed unless another declared
validator still needs it. Validator assets are not uninstalled.`,
		nil,
		func(cmd *cobra.Command, args []string) error {
			targets, extra := splitTargets(args)
			if len(targets) == 0 {
				return errors.New("remove: at least one package or hub:// validator is required")
			}
			return finish(a.engine().Remove(cmd.Context(), targets, extra))
		})
}

func newSyncCmd(a *app) *cobra.Command {
	var sel manifest.Selection
	return passthroughCmd(a, "sync [uv sync args...]",
		"Repair validator drift, run uv sync and reinstall validator assets",
		`Ensures every declared validator's package is declared, runs "uv sync", then
reinstalls the assets of every declared validator, since uv sync prunes them.

Workspace selection flags (--all-packages, --package, --no-install-project,
--no-install-package) choose which projects are repaired and are also passed
to "uv sync". All other arguments go to "uv sync" unchanged.`,
		func(p *passthrough) {
			sel = manifest.Selection{}
			p.bools = map[string]*bool{
				FlagAllPackages:      &sel.AllPackages,
				FlagNoInstallProject: &sel.NoInstallProject,
			}
			p.lists = map[string]*[]string{
				FlagPackage:          &sel.Packages,
				FlagNoInstallPackage: &sel.ExcludePackages,
			}
			p.forward = map[string]bool{
				FlagAllPackages:      true,
				FlagNoInstallProject: true,
				FlagPackage:          true,
				FlagNoInstallPackage: true,
			}
		},
		func(cmd *cobra.Command, args []string) error {
			return finish(a.engine().Sync(cmd.Context(), reconcile.SyncOptions{Selection: sel, Extra: args}))
		})
}
