package manifest

import (
	"slices"

	"github.com/danmuck/uvguard/internal/hub"
	"github.com/danmuck/uvguard/internal/pyreq"
)

// Manifest is a checked-out copy of one project's configuration.
type Manifest struct {
	Path       string
	Name       string
	Packages   []string
	Validators []string

	raw  []byte
	doc  map[string]any
	keys ownedKeys
}

// ownedKeys records the owned keys as they were when the file was read.
type ownedKeys struct {
	packages         bool
	validators       bool
	loadedPackages   []string
	loadedValidators []string
}

// Dirty reports whether the projections differ from what was loaded.
func (m *Manifest) Dirty() bool {
	return !slices.Equal(m.Packages, m.keys.loadedPackages) ||
		!slices.Equal(m.Validators, m.keys.loadedValidators)
}

// HasPackage reports whether a requirement for name is declared.
func (m *Manifest) HasPackage(name string) bool {
	return m.packageIndex(name) >= 0
}

// EnsurePackage appends req unless a requirement with the same name is
// already declared.
func (m *Manifest) EnsurePackage(req string) bool {
	if m.HasPackage(req) {
		return false
	}
	m.Packages = append(m.Packages, req)
	return true
}

// RemovePackage drops every requirement naming the same distribution.
func (m *Manifest) RemovePackage(name string) bool {
	before := len(m.Packages)
	m.Packages = slices.DeleteFunc(m.Packages, func(req string) bool {
		return pyreq.SameName(req, name)
	})
	return len(m.Packages) != before
}

func (m *Manifest) packageIndex(name string) int {
	return slices.IndexFunc(m.Packages, func(req string) bool {
		return pyreq.SameName(req, name)
	})
}

// Validator returns the declared entry naming the same validator as uri.
func (m *Manifest) Validator(uri string) (string, bool) {
	i := slices.IndexFunc(m.Validators, func(v string) bool {
		return hub.SameValidator(v, uri)
	})
	if i < 0 {
		return "", false
	}
	return m.Validators[i], true
}

// EffectiveValidator is the identifier an add of uri would leave in the
// manifest: a version-pinned uri replaces the declared entry, an unpinned
// one keeps whatever is already declared.
func (m *Manifest) EffectiveValidator(uri string) string {
	existing, ok := m.Validator(uri)
	if !ok {
		return uri
	}
	if ref, err := hub.ParseURI(uri); err == nil && ref.Specifier != "" {
		return uri
	}
	return existing
}

// UpsertValidator records uri and returns the entry that ends up declared.
func (m *Manifest) UpsertValidator(uri string) (string, bool) {
	effective := m.EffectiveValidator(uri)
	for i, v := range m.Validators {
		if !hub.SameValidator(v, uri) {
			continue
		}
		if v == effective {
			return effective, false
		}
		m.Validators[i] = effective
		return effective, true
	}
	m.Validators = append(m.Validators, effective)
	return effective, true
}

// RemoveValidator drops the entry naming the same validator as uri.
func (m *Manifest) RemoveValidator(uri string) bool {
	before := len(m.Validators)
	m.Validators = slices.DeleteFunc(m.Validators, func(v string) bool {
		return hub.SameValidator(v, uri)
	})
	return len(m.Validators) != before
}

// Dedupe removes repeated validators (by id) and packages (by name),
// keeping the first occurrence, and returns the entries it dropped.
func (m *Manifest) Dedupe() (validators, packages []string) {
	var keptValidators []string
	for _, v := range m.Validators {
		if slices.ContainsFunc(keptValidators, func(seen string) bool { return hub.SameValidator(seen, v) }) {
			validators = append(validators, v)
			continue
		}
		keptValidators = append(keptValidators, v)
	}
	var keptPackages []string
	for _, p := range m.Packages {
		if slices.ContainsFunc(keptPackages, func(seen string) bool { return pyreq.SameName(seen, p) }) {
			packages = append(packages, p)
			continue
		}
		keptPackages = append(keptPackages, p)
	}
	if len(validators) > 0 || len(packages) > 0 {
		m.Validators = keptValidators
		m.Packages = keptPackages
	}
	return validators, packages
}
