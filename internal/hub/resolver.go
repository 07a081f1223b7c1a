package hub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Directive is everything the asset installer needs to materialise a
// validator's assets.
type Directive struct {
	URI string
}

// Resolution maps one identifier to its concrete package.
type Resolution struct {
	Ref       Ref
	Package   string
	Directive Directive
}

// URI is the identifier as it should be recorded in the manifest.
func (r Resolution) URI() string {
	return r.Ref.String()
}

// Requirement is the requirement string passed to the package tool: the
// resolved package carrying the identifier's version specifier.
func (r Resolution) Requirement() string {
	if r.Package == "" {
		return r.Ref.Requirement()
	}
	return r.Package + r.Ref.Specifier
}

// Resolver maps validator identifiers to packages.
type Resolver interface {
	Resolve(ctx context.Context, uri string) (Resolution, error)
}

// HubResolver derives package names from the identifier and, when
// Verify is set, confirms the package exists on the hub index.
type HubResolver struct {
	IndexURL string
	Tokens   TokenSource
	Verify   bool
	Client   *http.Client
	Timeout  time.Duration
}

func (r *HubResolver) Resolve(ctx context.Context, uri string) (Resolution, error) {
	ref, err := ParseURI(uri)
	if err != nil {
		return Resolution{}, err
	}
	res := Resolution{
		Ref:       ref,
		Package:   ref.ID.PackageName(),
		Directive: Directive{URI: ref.String()},
	}
	if !r.Verify {
		return res, nil
	}
	if err := r.probe(ctx, res.Package); err != nil {
		return Resolution{}, fmt.Errorf("resolve %s: %w", ref.ID.URI(), err)
	}
	return res, nil
}

// probe asks the simple index for the package page.
func (r *HubResolver) probe(ctx context.Context, pkg string) error {
	token, err := r.Tokens.Resolve()
	if err != nil {
		return err
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	endpoint, err := url.JoinPath(strings.TrimSpace(r.IndexURL), pkg, "/")
	if err != nil {
		return fmt.Errorf("%w: index url: %v", ErrResolverUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrResolverUnavailable, err)
	}
	req.SetBasicAuth("__token__", token)
	req.Header.Set("Accept", "text/html")

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrResolverUnavailable, err)
	}
	defer resp.Body.Close()

	log.Debug().Str("package", pkg).Int("status", resp.StatusCode).Msg("hub index probe")
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: package %s not found on hub index", ErrUnknownValidator, pkg)
	default:
		return fmt.Errorf("%w: hub index returned %s", ErrResolverUnavailable, resp.Status)
	}
}
