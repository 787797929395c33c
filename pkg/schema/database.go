package schema

import (
	"strings"

	"github.com/pkg/errors"
)

// Database is the declarative schema a connector opens and migrates to.
// Version must only grow over the lifetime of a database.
type Database struct {
	Name    string
	Version uint64
	Stores  []Store
}

func (d Database) Store(name string) (Store, bool) {
	for _, s := range d.Stores {
		if s.Name == name {
			return s, true
		}
	}
	return Store{}, false
}

func (d Database) Validate() error {
	if d.Name == "" {
		return errors.New("database name is required")
	}
	if d.Version < 1 {
		return errors.Errorf("database %q: version must be >= 1", d.Name)
	}

	stores := map[string]bool{}

	for _, s := range d.Stores {
		if s.Name == "" {
			return errors.Errorf("database %q: store name is required", d.Name)
		}
		if stores[s.Name] {
			return errors.Errorf("database %q: duplicate store %q", d.Name, s.Name)
		}
		stores[s.Name] = true

		if err := validateKeyPath(s.KeyPath); err != nil {
			return errors.Wrapf(err, "store %q", s.Name)
		}

		indexes := map[string]bool{}

		for _, idx := range s.Indexes {
			if idx.Name == "" {
				return errors.Errorf("store %q: index name is required", s.Name)
			}
			if indexes[idx.Name] {
				return errors.Errorf("store %q: duplicate index %q", s.Name, idx.Name)
			}
			indexes[idx.Name] = true

			if len(idx.KeyPath) == 0 {
				return errors.Errorf("store %q: index %q needs a key path", s.Name, idx.Name)
			}
			for _, kp := range idx.KeyPath {
				if len(kp) == 0 {
					return errors.Errorf("store %q: index %q has an empty key path", s.Name, idx.Name)
				}
				if err := validateKeyPath(kp); err != nil {
					return errors.Wrapf(err, "store %q: index %q", s.Name, idx.Name)
				}
			}
			if idx.MultiEntry && idx.KeyPath.IsCompound() {
				return errors.Errorf("store %q: multi-entry index %q can not be compound", s.Name, idx.Name)
			}
		}
	}

	return nil
}

func validateKeyPath(kp KeyPath) error {
	for _, seg := range kp {
		switch x := seg.(type) {
		case string:
			if x == "" {
				return errors.Errorf("empty segment in key path %q", kp.String())
			}
			if strings.ContainsAny(x, ".[]") {
				return errors.Errorf("segment %q of key path can not contain '.', '[' or ']'", x)
			}
		case int64:
			if x < 0 {
				return errors.Errorf("negative index in key path %q", kp.String())
			}
		default:
			return errors.Errorf("invalid segment %v in key path", seg)
		}
	}
	return nil
}
