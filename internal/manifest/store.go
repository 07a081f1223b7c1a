package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"
)

const (
	ProjectTable         = "project"
	PackagesKey          = "dependencies"
	DefaultFile          = "pyproject.toml"
	DefaultValidatorsKey = "guardrails"
	tempFilePrefix       = ".uvguard-"
)

// Store reads and writes one project's manifest file.
type Store struct {
	Dir           string
	File          string
	ValidatorsKey string
}

func NewStore(dir, file, validatorsKey string) *Store {
	if file == "" {
		file = DefaultFile
	}
	if validatorsKey == "" {
		validatorsKey = DefaultValidatorsKey
	}
	return &Store{Dir: dir, File: file, ValidatorsKey: validatorsKey}
}

// At returns a store for the same file name inside another directory.
func (s *Store) At(dir string) *Store {
	return &Store{Dir: dir, File: s.File, ValidatorsKey: s.ValidatorsKey}
}

func (s *Store) Path() string {
	return filepath.Join(s.Dir, s.File)
}

func (s *Store) Exists() bool {
	info, err := os.Stat(s.Path())
	return err == nil && !info.IsDir()
}

// Load reads the manifest. Missing owned keys are treated as empty lists.
func (s *Store) Load() (*Manifest, error) {
	path := s.Path()
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s not found", ErrManifestMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("manifest read %s: %w", path, err)
	}
	return s.parse(path, raw)
}

func (s *Store) parse(path string, raw []byte) (*Manifest, error) {
	doc := map[string]any{}
	if _, err := toml.NewDecoder(bytes.NewReader(raw)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: could not parse %s: %v", ErrManifestCorrupt, path, err)
	}

	m := &Manifest{Path: path, raw: raw, doc: doc}
	project, err := projectTable(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrManifestCorrupt, path, err)
	}
	if name, ok := project["name"].(string); ok {
		m.Name = name
	}
	m.Packages, m.keys.packages, err = stringList(project, PackagesKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrManifestCorrupt, path, err)
	}
	m.Validators, m.keys.validators, err = stringList(project, s.ValidatorsKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrManifestCorrupt, path, err)
	}
	m.keys.loadedPackages = slices.Clone(m.Packages)
	m.keys.loadedValidators = slices.Clone(m.Validators)
	return m, nil
}

// Save writes both projections back. Only the two owned arrays change in
// the file text; when that edit cannot be made in place the document is
// re-encoded with identical semantics instead.
func (s *Store) Save(m *Manifest) error {
	path := s.Path()
	expected, err := s.expectedDocument(m)
	if err != nil {
		return err
	}

	out, err := s.splice(m)
	if err == nil {
		err = verify(out, expected)
	}
	if err != nil {
		log.Warn().Str("path", path).Err(err).Msg("manifest in-place edit unavailable, re-encoding document")
		var buf bytes.Buffer
		if encErr := toml.NewEncoder(&buf).Encode(expected); encErr != nil {
			return fmt.Errorf("manifest encode %s: %w", path, encErr)
		}
		out = buf.Bytes()
	}

	if err := writeAtomic(path, out); err != nil {
		return fmt.Errorf("manifest write %s: %w", path, err)
	}

	saved, err := s.parse(path, out)
	if err != nil {
		return err
	}
	*m = *saved
	return nil
}

func (s *Store) splice(m *Manifest) ([]byte, error) {
	out := m.raw
	var err error
	if !slices.Equal(m.Packages, m.keys.loadedPackages) {
		if out, err = spliceArray(out, ProjectTable, PackagesKey, m.Packages); err != nil {
			return nil, err
		}
	}
	if !slices.Equal(m.Validators, m.keys.loadedValidators) {
		if out, err = spliceArray(out, ProjectTable, s.ValidatorsKey, m.Validators); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// expectedDocument is the original document with the projections applied.
func (s *Store) expectedDocument(m *Manifest) (map[string]any, error) {
	doc := maps.Clone(m.doc)
	if doc == nil {
		doc = map[string]any{}
	}
	project, err := projectTable(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrManifestCorrupt, m.Path, err)
	}
	project = maps.Clone(project)
	if project == nil {
		project = map[string]any{}
	}
	if m.keys.packages || len(m.Packages) > 0 {
		project[PackagesKey] = anyList(m.Packages)
	}
	if m.keys.validators || len(m.Validators) > 0 {
		project[s.ValidatorsKey] = anyList(m.Validators)
	}
	if len(project) > 0 {
		doc[ProjectTable] = project
	}
	return doc, nil
}

func verify(out []byte, expected map[string]any) error {
	got := map[string]any{}
	if _, err := toml.NewDecoder(bytes.NewReader(out)).Decode(&got); err != nil {
		return fmt.Errorf("edited document does not parse: %w", err)
	}
	if !sameValue(got, expected) {
		return errors.New("edited document differs outside the owned keys")
	}
	return nil
}

// sameValue is reflect.DeepEqual with time values compared by instant.
func sameValue(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, ok := bv[k]
			if !ok || !sameValue(v, w) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !sameValue(av[i], bv[i]) {
				return false
			}
		}
		return true
	case []map[string]any:
		bv, ok := b.([]map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !sameValue(av[i], bv[i]) {
				return false
			}
		}
		return true
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	}
	return reflect.DeepEqual(a, b)
}

func projectTable(doc map[string]any) (map[string]any, error) {
	raw, ok := doc[ProjectTable]
	if !ok {
		return nil, nil
	}
	project, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("[%s] is not a table", ProjectTable)
	}
	return project, nil
}

func stringList(table map[string]any, key string) ([]string, bool, error) {
	raw, ok := table[key]
	if !ok {
		return nil, false, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, true, fmt.Errorf("%q is not an array", key)
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, true, fmt.Errorf("%q[%d] is not a string", key, i)
		}
		out = append(out, s)
	}
	return out, true, nil
}

func anyList(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// writeAtomic materialises data next to path and renames it into place.
func writeAtomic(path string, data []byte) error {
	mode := fs.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), tempFilePrefix+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}
