package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/uvguard/internal/observability"
)

var ErrToolInvocationFailed = errors.New("tools: invocation failed")

// ToolInvocationError reports a non-zero exit from an external tool.
type ToolInvocationError struct {
	Tool     string
	Verb     string
	Args     []string
	ExitCode int
	Stderr   string
	Cause    error
}

func (e *ToolInvocationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s failed (exit %d)", e.Tool, e.Verb, e.ExitCode)
	if e.ExitCode == ExitNotFound {
		fmt.Fprintf(&b, ": unable to invoke %s, ensure it is installed and on PATH", e.Tool)
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		b.WriteString(":\n")
		b.WriteString(stderr)
	}
	return b.String()
}

func (e *ToolInvocationError) Is(target error) bool {
	return target == ErrToolInvocationFailed
}

func (e *ToolInvocationError) Unwrap() error {
	return e.Cause
}

// Invoke runs cmd through runner and converts a failure into a
// ToolInvocationError labelled with tool and verb. Every call is logged and
// counted in the tool metrics.
func Invoke(ctx context.Context, runner CommandRunner, tool, verb string, cmd Command) (Result, error) {
	start := time.Now()
	res, err := runner.Run(ctx, cmd)
	exit := res.ExitCode
	if err != nil && exit == 0 {
		exit = 1
	}
	elapsed := time.Since(start)
	observability.RecordToolInvocation(tool, verb, exit, elapsed)
	log.Debug().
		Str("tool", tool).
		Str("verb", verb).
		Str("dir", cmd.Dir).
		Int("exit_code", exit).
		Dur("elapsed", elapsed).
		Msg("tool invoked")
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("%s %s: %w", tool, verb, ctxErr)
	}
	stderr := string(res.Stderr)
	if exit == ExitNotFound && strings.TrimSpace(stderr) == "" {
		stderr = err.Error()
	}
	return res, &ToolInvocationError{
		Tool:     tool,
		Verb:     verb,
		Args:     append([]string(nil), cmd.Args...),
		ExitCode: exit,
		Stderr:   stderr,
		Cause:    err,
	}
}
