package hub

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/uvguard/internal/pyreq"
)

// Scheme prefixes every validator identifier.
const Scheme = "hub://"

var (
	ErrUnknownValidator    = errors.New("hub: unknown validator")
	ErrResolverUnavailable = errors.New("hub: resolver unavailable")
	ErrTokenMissing        = errors.New("hub: token missing")
)

// ID names a validator inside the hub, independent of any version.
type ID struct {
	Namespace string
	Name      string
}

func (id ID) String() string {
	return id.Namespace + "/" + id.Name
}

// URI returns the unversioned hub identifier.
func (id ID) URI() string {
	return Scheme + id.String()
}

// PackageName is the normalised distribution name that ships the validator.
func (id ID) PackageName() string {
	return pyreq.NormalizeName(id.Namespace + "-grhub-" + id.Name)
}

// Ref is a parsed identifier, possibly pinned by a version specifier.
type Ref struct {
	ID        ID
	Specifier string
}

func (r Ref) String() string {
	return r.ID.URI() + r.Specifier
}

// Requirement is the PEP 508 requirement handed to the package tool.
func (r Ref) Requirement() string {
	return r.ID.PackageName() + r.Specifier
}

// IsURI reports whether target uses the validator scheme.
func IsURI(target string) bool {
	return strings.HasPrefix(strings.TrimSpace(target), Scheme)
}

// ParseURI splits "hub://namespace/name<specifier>" into its parts.
func ParseURI(raw string) (Ref, error) {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, Scheme) {
		return Ref{}, fmt.Errorf("%w: %q is not a %s identifier", ErrUnknownValidator, raw, Scheme)
	}
	s = strings.TrimPrefix(s, Scheme)

	cut := strings.IndexAny(s, "<>=!~;[ ")
	spec := ""
	if cut >= 0 {
		spec = strings.ReplaceAll(s[cut:], " ", "")
		s = s[:cut]
	}

	ns, name, ok := strings.Cut(s, "/")
	if !ok || !validSegment(ns) || !validSegment(name) {
		return Ref{}, fmt.Errorf("%w: %q must look like %snamespace/name", ErrUnknownValidator, raw, Scheme)
	}
	return Ref{ID: ID{Namespace: ns, Name: name}, Specifier: spec}, nil
}

// SameValidator reports whether two identifiers name the same validator.
// Unparseable identifiers compare by their trimmed text.
func SameValidator(a, b string) bool {
	ra, errA := ParseURI(a)
	rb, errB := ParseURI(b)
	if errA != nil || errB != nil {
		return strings.TrimSpace(a) == strings.TrimSpace(b)
	}
	return ra.ID == rb.ID
}

func validSegment(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		ok := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
			c == '-' || c == '_' || c == '.'
		if !ok {
			return false
		}
	}
	return true
}
