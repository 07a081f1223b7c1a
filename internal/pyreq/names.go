// Package pyreq implements the small subset of Python packaging naming rules
// uvguard needs: PEP 503 name normalisation and extracting the distribution
// name from a PEP 508 requirement string.
package pyreq

import (
	"strings"
)

// NormalizeName lowercases name and collapses runs of "-", "_" and "." into
// a single "-".
func NormalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	sep := false
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r == '-' || r == '_' || r == '.':
			sep = true
			continue
		case sep && b.Len() > 0:
			b.WriteByte('-')
		}
		sep = false
		b.WriteRune(toLower(r))
	}
	return b.String()
}

// RequirementName returns the normalised distribution name of a requirement
// such as "Foo_Bar[extra]>=1.0; python_version<'3.12'". It returns "" when
// req does not start with a valid name.
func RequirementName(req string) string {
	req = strings.TrimSpace(req)
	end := 0
	for end < len(req) && isNameByte(req[end]) {
		end++
	}
	if end == 0 || !isAlnum(req[0]) {
		return ""
	}
	return NormalizeName(req[:end])
}

// SameName reports whether two requirements name the same distribution.
func SameName(a, b string) bool {
	na := RequirementName(a)
	return na != "" && na == RequirementName(b)
}

func isNameByte(c byte) bool {
	return isAlnum(c) || c == '-' || c == '_' || c == '.'
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}
