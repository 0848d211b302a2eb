package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// KeyPath names the field (or fields) a key is read from. A single element is
// a dotted field path such as "meta.id"; more than one element is a compound
// path whose key is the array of the individual values. An empty KeyPath
// marks an out-of-line store whose keys are supplied by the caller.
type KeyPath []string

// Path returns a single-field KeyPath.
func Path(p string) KeyPath { return KeyPath{p} }

// Compound returns a KeyPath whose key is the array of the given paths.
func Compound(paths ...string) KeyPath { return KeyPath(paths) }

// IsCompound reports whether the path yields array keys.
func (k KeyPath) IsCompound() bool { return len(k) > 1 }

// String renders the path the way it is written in declarations.
func (k KeyPath) String() string { return strings.Join(k, ", ") }

// Equal reports whether two key paths are identical.
func (k KeyPath) Equal(o KeyPath) bool {
	if len(k) != len(o) {
		return false
	}
	for i := range k {
		if k[i] != o[i] {
			return false
		}
	}
	return true
}

// UpgradeFunc transforms every record of a store while the schema version is
// raised. It receives the records in key order and returns the records to
// reinsert.
type UpgradeFunc func(records []json.RawMessage) ([]json.RawMessage, error)

// IndexDef declares a secondary index on a store.
type IndexDef struct {
	Name       string  `json:"name" yaml:"name"`
	KeyPath    KeyPath `json:"key_path" yaml:"key_path"`
	Unique     bool    `json:"unique,omitempty" yaml:"unique,omitempty"`
	MultiEntry bool    `json:"multi_entry,omitempty" yaml:"multi_entry,omitempty"`
}

// StoreDef declares a named record collection. OnUpgrade is not persisted.
type StoreDef struct {
	Name          string      `json:"name" yaml:"name"`
	KeyPath       KeyPath     `json:"key_path,omitempty" yaml:"key_path,omitempty"`
	AutoIncrement bool        `json:"auto_increment,omitempty" yaml:"auto_increment,omitempty"`
	Indices       []IndexDef  `json:"indices,omitempty" yaml:"indices,omitempty"`
	OnUpgrade     UpgradeFunc `json:"-" yaml:"-"`
}

// InLine reports whether keys are read from the records themselves.
func (s StoreDef) InLine() bool { return len(s.KeyPath) > 0 }

// Index returns the named index declaration.
func (s StoreDef) Index(name string) (IndexDef, bool) {
	for _, idx := range s.Indices {
		if idx.Name == name {
			return idx, true
		}
	}
	return IndexDef{}, false
}

// Schema is the versioned declaration of a database's stores.
type Schema struct {
	Name    string     `json:"name" yaml:"name"`
	Version int        `json:"version" yaml:"version"`
	Stores  []StoreDef `json:"stores" yaml:"stores"`
}

// Store returns the named store declaration.
func (s Schema) Store(name string) (StoreDef, bool) {
	for _, st := range s.Stores {
		if st.Name == name {
			return st, true
		}
	}
	return StoreDef{}, false
}

// StoreNames lists the declared store names in declaration order.
func (s Schema) StoreNames() []string {
	names := make([]string, 0, len(s.Stores))
	for _, st := range s.Stores {
		names = append(names, st.Name)
	}
	return names
}

// Validate checks that the declaration can be materialized. Errors wrap
// ErrInvalidSchema.
func (s Schema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("schema name must not be empty: %w", ErrInvalidSchema)
	}
	if s.Version < 0 {
		return fmt.Errorf("schema version %d is negative: %w", s.Version, ErrInvalidSchema)
	}
	seen := make(map[string]bool, len(s.Stores))
	for _, st := range s.Stores {
		if err := st.validate(); err != nil {
			return err
		}
		if seen[st.Name] {
			return fmt.Errorf("duplicate store %q: %w", st.Name, ErrInvalidSchema)
		}
		seen[st.Name] = true
	}
	return nil
}

func (s StoreDef) validate() error {
	if s.Name == "" {
		return fmt.Errorf("store name must not be empty: %w", ErrInvalidSchema)
	}
	if err := validatePath(s.KeyPath); err != nil {
		return fmt.Errorf("store %s key path: %w", s.Name, err)
	}
	if s.AutoIncrement && s.KeyPath.IsCompound() {
		return fmt.Errorf("store %s: auto increment needs a single key path: %w", s.Name, ErrInvalidSchema)
	}
	seen := make(map[string]bool, len(s.Indices))
	for _, idx := range s.Indices {
		if idx.Name == "" {
			return fmt.Errorf("store %s: index name must not be empty: %w", s.Name, ErrInvalidSchema)
		}
		if len(idx.KeyPath) == 0 {
			return fmt.Errorf("store %s index %s: key path must not be empty: %w", s.Name, idx.Name, ErrInvalidSchema)
		}
		if err := validatePath(idx.KeyPath); err != nil {
			return fmt.Errorf("store %s index %s: %w", s.Name, idx.Name, err)
		}
		if idx.MultiEntry && idx.KeyPath.IsCompound() {
			return fmt.Errorf("store %s index %s: multi entry needs a single key path: %w", s.Name, idx.Name, ErrInvalidSchema)
		}
		if seen[idx.Name] {
			return fmt.Errorf("store %s: duplicate index %q: %w", s.Name, idx.Name, ErrInvalidSchema)
		}
		seen[idx.Name] = true
	}
	return nil
}

func validatePath(k KeyPath) error {
	for _, p := range k {
		if p == "" {
			return fmt.Errorf("empty path segment: %w", ErrInvalidSchema)
		}
		for _, seg := range strings.Split(p, ".") {
			if seg == "" {
				return fmt.Errorf("path %q has an empty segment: %w", p, ErrInvalidSchema)
			}
		}
	}
	return nil
}
