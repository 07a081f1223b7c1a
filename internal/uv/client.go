package uv

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/uvguard/internal/hub"
	"github.com/danmuck/uvguard/internal/tools"
)

const Tool = "uv"

// IndexPolicy controls whether a call carries the hub index flags.
type IndexPolicy int

const (
	// IndexOff never passes index flags.
	IndexOff IndexPolicy = iota
	// IndexAuto passes index flags when a hub token can be found.
	IndexAuto
	// IndexRequired fails with hub.ErrTokenMissing when no token is found.
	IndexRequired
)

// quietEnv keeps uv's python children from tripping over the host locale
// while their output is captured.
var quietEnv = []string{"PYTHONIOENCODING=utf-8", "LANG=C.UTF-8"}

// Index describes the hub package index and the default public index.
type Index struct {
	HubURL     string
	DefaultURL string
	Tokens     hub.TokenSource
}

// Flags returns --index/--default-index with the hub token embedded as
// basic auth credentials.
func (ix Index) Flags() ([]string, error) {
	token, err := ix.Tokens.Resolve()
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(strings.TrimSpace(ix.HubURL))
	if err != nil {
		return nil, fmt.Errorf("uv: hub index url: %w", err)
	}
	u.User = url.UserPassword("__token__", token)
	return []string{
		"--index=" + u.String(),
		"--default-index=" + strings.TrimSpace(ix.DefaultURL),
	}, nil
}

// Client invokes uv subcommands in one project directory.
type Client struct {
	Bin    string
	Dir    string
	Runner tools.CommandRunner
	Index  Index
}

func NewClient(bin, dir string, runner tools.CommandRunner, index Index) *Client {
	if bin == "" {
		bin = Tool
	}
	if runner == nil {
		runner = tools.ExecRunner{}
	}
	return &Client{Bin: bin, Dir: dir, Runner: runner, Index: index}
}

// Init runs `uv init`.
func (c *Client) Init(ctx context.Context, extra []string) error {
	return c.quiet(ctx, "", "init", nil, extra)
}

// Add runs `uv add <packages> [index flags] <extra>`.
func (c *Client) Add(ctx context.Context, packages []string, policy IndexPolicy, extra []string) error {
	flags, err := c.indexFlags(policy)
	if err != nil {
		return err
	}
	args := append(append([]string{}, packages...), flags...)
	return c.quiet(ctx, "", "add", args, extra)
}

// Remove runs `uv remove <packages> <extra>`.
func (c *Client) Remove(ctx context.Context, packages []string, extra []string) error {
	return c.quiet(ctx, "", "remove", packages, extra)
}

// Sync runs `uv sync [index flags] <extra>`.
func (c *Client) Sync(ctx context.Context, policy IndexPolicy, extra []string) error {
	flags, err := c.indexFlags(policy)
	if err != nil {
		return err
	}
	return c.quiet(ctx, "", "sync", flags, extra)
}

// Run runs `uv run <args>` inside dir, or the client directory when dir is
// empty.
func (c *Client) Run(ctx context.Context, dir string, args []string) error {
	return c.quiet(ctx, dir, "run", args, nil)
}

// Forward runs `uv <verb> <args>` attached to the caller's terminal.
func (c *Client) Forward(ctx context.Context, verb string, args []string) error {
	cmd := tools.Command{
		Name:        c.Bin,
		Args:        append([]string{verb}, args...),
		Dir:         c.Dir,
		Interactive: true,
	}
	_, err := tools.Invoke(ctx, c.Runner, Tool, verb, cmd)
	return err
}

func (c *Client) indexFlags(policy IndexPolicy) ([]string, error) {
	switch policy {
	case IndexOff:
		return nil, nil
	case IndexRequired:
		return c.Index.Flags()
	}
	flags, err := c.Index.Flags()
	if err != nil {
		log.Debug().Err(err).Msg("uv index flags skipped")
		return nil, nil
	}
	return flags, nil
}

func (c *Client) quiet(ctx context.Context, dir, verb string, args, extra []string) error {
	if dir == "" {
		dir = c.Dir
	}
	full := make([]string, 0, 2+len(args)+len(extra))
	full = append(full, verb, "--quiet")
	full = append(full, args...)
	full = append(full, extra...)

	log.Info().Str("tool", Tool).Str("dir", dir).Strs("args", Redact(full)).Msg("running uv")
	_, err := tools.Invoke(ctx, c.Runner, Tool, verb, tools.Command{
		Name: c.Bin,
		Args: full,
		Dir:  dir,
		Env:  quietEnv,
	})
	return err
}

// Redact masks credentials embedded in index urls.
func Redact(args []string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = arg
		name, value, ok := strings.Cut(arg, "=")
		if !ok || !strings.HasPrefix(name, "--") {
			continue
		}
		u, err := url.Parse(value)
		if err != nil || u.User == nil {
			continue
		}
		if _, ok := u.User.Password(); !ok {
			continue
		}
		// the mask is spliced in as text so it is not percent-encoded
		u.User = url.User(u.User.Username())
		masked := strings.Replace(u.String(), "@", ":***@", 1)
		out[i] = name + "=" + masked
	}
	return out
}
