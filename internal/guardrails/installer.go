// Package guardrails is the asset installer adapter. Validator assets are
// materialised by the hub CLI running inside the project's environment.
package guardrails

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/uvguard/internal/hub"
	"github.com/danmuck/uvguard/internal/tools"
)

const Tool = "guardrails"

// ProjectRunner runs a command inside the project environment (uv run).
type ProjectRunner interface {
	Run(ctx context.Context, dir string, args []string) error
}

// Installer drives `guardrails hub install` and `guardrails configure`.
type Installer struct {
	Project ProjectRunner
	// Bin is the guardrails executable used outside the project
	// environment, for configure.
	Bin    string
	Runner tools.CommandRunner
}

func NewInstaller(project ProjectRunner, bin string, runner tools.CommandRunner) *Installer {
	if bin == "" {
		bin = Tool
	}
	if runner == nil {
		runner = tools.ExecRunner{}
	}
	return &Installer{Project: project, Bin: bin, Runner: runner}
}

// Install materialises the assets of one resolved validator in dir.
func (i *Installer) Install(ctx context.Context, dir string, res hub.Resolution) error {
	uri := res.Directive.URI
	if uri == "" {
		uri = res.URI()
	}
	log.Info().Str("validator", uri).Str("package", res.Package).Msg("installing validator assets")
	if err := i.Project.Run(ctx, dir, []string{Tool, "hub", "install", uri}); err != nil {
		return fmt.Errorf("guardrails hub install %s: %w", uri, err)
	}
	return nil
}

// Configure runs `guardrails configure` directly rather than through uv run,
// since uv would try to sync against the hub index before a token exists.
func (i *Installer) Configure(ctx context.Context, args []string) error {
	cmd := tools.Command{
		Name:        i.Bin,
		Args:        append([]string{"configure"}, args...),
		Interactive: true,
	}
	_, err := tools.Invoke(ctx, i.Runner, Tool, "configure", cmd)
	var invErr *tools.ToolInvocationError
	if errors.As(err, &invErr) && invErr.ExitCode == tools.ExitNotFound {
		return fmt.Errorf("%w (install it with `uv tool install guardrails-ai`)", err)
	}
	return err
}
