// Package cli is the uvguard command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/danmuck/uvguard/internal/config"
	"github.com/danmuck/uvguard/internal/guardrails"
	"github.com/danmuck/uvguard/internal/hub"
	"github.com/danmuck/uvguard/internal/logging"
	"github.com/danmuck/uvguard/internal/manifest"
	"github.com/danmuck/uvguard/internal/reconcile"
	"github.com/danmuck/uvguard/internal/tools"
	"github.com/danmuck/uvguard/internal/uv"
)

const (
	FlagProject  = "project"
	FlagLogLevel = "log-level"
	FlagConfig   = "config"
)

// Options injects collaborators; zero values select the real ones.
type Options struct {
	Runner   tools.CommandRunner
	Settings *config.Settings
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
}

// app carries the global flags and lazily loaded settings of one run.
type app struct {
	opts       Options
	project    string
	logLevel   string
	configPath string
	settings   config.Settings
	loaded     bool
}

func (a *app) globals() *passthrough {
	return &passthrough{strings: map[string]*string{
		FlagProject:  &a.project,
		FlagLogLevel: &a.logLevel,
		FlagConfig:   &a.configPath,
	}}
}

// prepare applies the log level and loads settings once.
func (a *app) prepare() error {
	if a.logLevel != "" && !logging.SetLevel(a.logLevel) {
		return fmt.Errorf("invalid --%s %q", FlagLogLevel, a.logLevel)
	}
	if a.loaded {
		return nil
	}
	switch {
	case a.opts.Settings != nil:
		a.settings = *a.opts.Settings
	default:
		path := a.configPath
		if path == "" {
			path = config.DefaultPath()
		}
		s, err := config.Load(path)
		if err != nil {
			return err
		}
		a.settings = s
	}
	a.loaded = true
	log.Debug().Str("project", a.projectDir()).Str("uv", a.settings.UVBin).Msg("settings loaded")
	return nil
}

// Settings returns the loaded settings; valid after a command ran.
func (a *app) Settings() config.Settings {
	return a.settings
}

func (a *app) projectDir() string {
	dir := a.project
	if dir == "" {
		dir = "."
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}

func (a *app) runner() tools.CommandRunner {
	if a.opts.Runner != nil {
		return a.opts.Runner
	}
	return tools.ExecRunner{Stdin: a.opts.Stdin, Stdout: a.opts.Stdout, Stderr: a.opts.Stderr}
}

func (a *app) tokens() hub.TokenSource {
	return hub.TokenSource{Token: a.settings.HubToken, RCPath: a.settings.RCPath}
}

func (a *app) uv() *uv.Client {
	return uv.NewClient(a.settings.UVBin, a.projectDir(), a.runner(), uv.Index{
		HubURL:     a.settings.HubIndexURL,
		DefaultURL: a.settings.DefaultIndexURL,
		Tokens:     a.tokens(),
	})
}

func (a *app) installer() *guardrails.Installer {
	return guardrails.NewInstaller(a.uv(), a.settings.GuardrailsBin, a.runner())
}

func (a *app) store() *manifest.Store {
	return manifest.NewStore(a.projectDir(), a.settings.ManifestFile, a.settings.ValidatorsKey)
}

func (a *app) resolver() hub.Resolver {
	timeout, _ := a.settings.Timeout()
	return &hub.HubResolver{
		IndexURL: a.settings.HubIndexURL,
		Tokens:   a.tokens(),
		Verify:   a.settings.VerifyRegistry,
		Timeout:  timeout,
	}
}

func (a *app) engine() *reconcile.Engine {
	return &reconcile.Engine{
		Store:       a.store(),
		Resolver:    a.resolver(),
		Tool:        a.uv(),
		Installer:   a.installer(),
		CorePackage: a.settings.CorePackage,
	}
}

// New builds the command tree. The returned loader exposes the settings
// the executed command ran with.
func New(opts Options) (*cobra.Command, func() config.Settings) {
	a := &app{opts: opts}
	cmd := &cobra.Command{
		Use:   "uvguard",
		Short: "Keep Guardrails Hub validators in sync with a uv project",
		Long: `uvguard wraps uv so that Guardrails Hub validators declared in pyproject.toml
survive uv's dependency pruning.

Validators are hub:// identifiers kept in [project].guardrails. Every validator's
package is kept in [project].dependencies, and "uvguard sync" reinstalls the
validator assets that "uv sync" removes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}
	if opts.Stdout != nil {
		cmd.SetOut(opts.Stdout)
	}
	if opts.Stderr != nil {
		cmd.SetErr(opts.Stderr)
	}
	if opts.Stdin != nil {
		cmd.SetIn(opts.Stdin)
	}

	cmd.PersistentFlags().StringVar(&a.project, FlagProject, "", "project directory containing pyproject.toml (default: current directory)")
	cmd.PersistentFlags().StringVar(&a.logLevel, FlagLogLevel, "", "log level: trace|debug|info|warn|error|off")
	cmd.PersistentFlags().StringVar(&a.configPath, FlagConfig, "", "uvguard settings file (default: $UVGUARD_CONFIG or the user config dir)")

	cmd.AddCommand(newInitCmd(a))
	cmd.AddCommand(newAddCmd(a))
	cmd.AddCommand(newRemoveCmd(a))
	cmd.AddCommand(newSyncCmd(a))
	cmd.AddCommand(newConfigureCmd(a))
	cmd.AddCommand(newCheckCmd(a))
	cmd.AddCommand(newConfigCmd(a))
	for _, fc := range forwardedCommands {
		cmd.AddCommand(newForwardCmd(a, fc.name, fc.short))
	}
	return cmd, a.Settings
}

// Execute runs the command tree with args and returns the settings used and
// the command error.
func Execute(ctx context.Context, args []string, opts Options) (config.Settings, error) {
	cmd, settings := New(opts)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return settings(), err
}

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) {
		return 130
	}
	var fwd *forwardError
	if errors.As(err, &fwd) && fwd.code > 0 {
		return fwd.code
	}
	return 1
}

// PrintError writes err for the user unless the external tool already did.
func PrintError(w io.Writer, err error) {
	if err == nil {
		return
	}
	var fwd *forwardError
	if errors.As(err, &fwd) && fwd.reported {
		return
	}
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, "uvguard: %v\n", err)
}
