package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/danmuck/uvguard/internal/tools"
)

var forwardedCommands = []struct {
	name  string
	short string
}{
	{"auth", "Manage authentication (uv auth)"},
	{"lock", "Update the project's lockfile (uv lock)"},
	{"export", "Export the lockfile to an alternate format (uv export)"},
	{"tree", "Display the project's dependency tree (uv tree)"},
	{"format", "Format Python code in the project (uv format)"},
	{"tool", "Run and install commands provided by Python packages (uv tool)"},
	{"python", "Manage Python versions and installations (uv python)"},
	{"pip", "Manage Python packages with a pip-compatible interface (uv pip)"},
	{"venv", "Create a virtual environment (uv venv)"},
	{"build", "Build Python packages into source distributions and wheels (uv build)"},
	{"publish", "Upload distributions to an index (uv publish)"},
	{"cache", "Manage uv's cache (uv cache)"},
	{"self", "Manage the uv executable (uv self)"},
}

// forwardError carries the exit status of a terminal-attached tool run.
// reported is set when the tool already wrote its error to the terminal.
type forwardError struct {
	code     int
	reported bool
	err      error
}

func (e *forwardError) Error() string { return e.err.Error() }
func (e *forwardError) Unwrap() error { return e.err }

func forwarded(err error) error {
	var invErr *tools.ToolInvocationError
	if !errors.As(err, &invErr) {
		return err
	}
	return &forwardError{
		code:     invErr.ExitCode,
		reported: invErr.ExitCode != tools.ExitNotFound,
		err:      err,
	}
}

func newForwardCmd(a *app, name, short string) *cobra.Command {
	return passthroughCmd(a, name+" [args...]", short,
		`Runs "uv `+name+`" with the given arguments, attached to the terminal.`,
		nil,
		func(cmd *cobra.Command, args []string) error {
			return forwarded(a.uv().Forward(cmd.Context(), name, args))
		})
}

func newConfigureCmd(a *app) *cobra.Command {
	return passthroughCmd(a, "configure [guardrails configure args...]",
		"Configure the Guardrails Hub token",
		`Runs "guardrails configure" directly, outside the project environment, so a
token can be stored before the hub index is reachable.`,
		nil,
		func(cmd *cobra.Command, args []string) error {
			return forwarded(a.installer().Configure(cmd.Context(), args))
		})
}
