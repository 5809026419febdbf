package datamodel

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tailscale/hujson"

	"github.com/calvinalkan/confdb/pkg/fs"
)

// Registry maps model identifiers to their definitions.
//
// A Registry is immutable after construction and safe for concurrent use.
type Registry struct {
	models map[string]*Model
}

// NewRegistry validates models and indexes them by identifier.
func NewRegistry(models ...*Model) (*Registry, error) {
	r := &Registry{models: make(map[string]*Model, len(models))}

	for _, m := range models {
		if m == nil {
			continue
		}

		if err := m.validate(); err != nil {
			return nil, err
		}

		if _, dup := r.models[m.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateModel, m.ID)
		}

		r.models[m.ID] = m
	}

	return r, nil
}

// Lookup returns the model registered under id.
func (r *Registry) Lookup(id string) (*Model, error) {
	m, ok := r.models[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchModel, id)
	}

	return m, nil
}

// IDs returns all registered identifiers, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.models))
	for id := range r.models {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}

// LoadDir reads every *.json file in dir as a model definition. Comments
// and trailing commas are allowed. Files whose "type" is set to something
// other than "config" are skipped.
func LoadDir(fsys fs.FS, dir string) (*Registry, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read datamodel dir: %w", err)
	}

	var models []*Model

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(dir, entry.Name())

		data, err := fsys.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read datamodel: %w", err)
		}

		m, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		if m.Type != "" && m.Type != "config" {
			continue
		}

		models = append(models, m)
	}

	return NewRegistry(models...)
}

// Parse decodes one JSONC model definition. The result is not validated;
// [NewRegistry] does that.
func Parse(data []byte) (*Model, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JSONC: %w", ErrInvalidModel, err)
	}

	var m Model

	err = json.Unmarshal(std, &m)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %w", ErrInvalidModel, err)
	}

	return &m, nil
}

// MustParse is like [Parse] but panics on error. Intended for tests and
// built-in definitions.
func MustParse(data string) *Model {
	m, err := Parse([]byte(data))
	if err != nil {
		panic(err)
	}

	return m
}
