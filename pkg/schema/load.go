package schema

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

type databaseFile struct {
	Name    string      `json:"name" toml:"name"`
	Version uint64      `json:"version" toml:"version"`
	Stores  []storeFile `json:"stores" toml:"stores"`
}

type storeFile struct {
	Name          string      `json:"name" toml:"name"`
	KeyPath       string      `json:"keyPath,omitempty" toml:"keyPath,omitempty"`
	AutoIncrement bool        `json:"autoIncrement,omitempty" toml:"autoIncrement,omitempty"`
	Indexes       []indexFile `json:"indexes,omitempty" toml:"indexes,omitempty"`
}

type indexFile struct {
	Name string `json:"name" toml:"name"`
	// string or list of strings
	KeyPath    any  `json:"keyPath" toml:"keyPath"`
	Unique     bool `json:"unique,omitempty" toml:"unique,omitempty"`
	MultiEntry bool `json:"multiEntry,omitempty" toml:"multiEntry,omitempty"`
}

// LoadFile reads a descriptor from a .toml, .yaml/.yml or .json file and validates it.
func LoadFile(filename string) (Database, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Database{}, errors.Wrapf(err, "read schema %s", filename)
	}
	d, err := Unmarshal(filepath.Ext(filename), data)
	if err != nil {
		return Database{}, errors.Wrapf(err, "schema %s", filename)
	}
	return d, nil
}

// Unmarshal decodes a descriptor in the format named by ext.
func Unmarshal(ext string, data []byte) (Database, error) {
	f := databaseFile{}

	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "toml":
		if err := toml.Unmarshal(data, &f); err != nil {
			return Database{}, err
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return Database{}, err
		}
	case "json":
		if err := json.Unmarshal(data, &f); err != nil {
			return Database{}, err
		}
	default:
		return Database{}, errors.Errorf("unsupported schema format %q", ext)
	}

	d, err := f.database()
	if err != nil {
		return Database{}, err
	}
	if err := d.Validate(); err != nil {
		return Database{}, err
	}
	return d, nil
}

// Marshal encodes d in the format named by ext.
func Marshal(ext string, d Database) ([]byte, error) {
	f := databaseFile{Name: d.Name, Version: d.Version}

	for _, s := range d.Stores {
		sf := storeFile{Name: s.Name, KeyPath: s.KeyPath.String(), AutoIncrement: s.AutoIncrement}
		for _, idx := range s.Indexes {
			var kp any = idx.KeyPath.String()
			if idx.KeyPath.IsCompound() {
				kp = idx.KeyPath.Strings()
			}
			sf.Indexes = append(sf.Indexes, indexFile{Name: idx.Name, KeyPath: kp, Unique: idx.Unique, MultiEntry: idx.MultiEntry})
		}
		f.Stores = append(f.Stores, sf)
	}

	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "toml":
		return toml.Marshal(f)
	case "yaml", "yml":
		return yaml.Marshal(f)
	case "json":
		return json.MarshalIndent(f, "", "  ")
	}
	return nil, errors.Errorf("unsupported schema format %q", ext)
}

func (f databaseFile) database() (Database, error) {
	d := Database{Name: f.Name, Version: f.Version}

	for _, sf := range f.Stores {
		s := Store{Name: sf.Name, AutoIncrement: sf.AutoIncrement}

		if sf.KeyPath != "" {
			kp, err := ParseKeyPath(sf.KeyPath)
			if err != nil {
				return Database{}, errors.Wrapf(err, "store %q", sf.Name)
			}
			s.KeyPath = kp
		}

		for _, idf := range sf.Indexes {
			var paths []string

			switch x := idf.KeyPath.(type) {
			case string:
				paths = []string{x}
			case []any:
				for _, p := range x {
					str, ok := p.(string)
					if !ok {
						return Database{}, errors.Errorf("store %q: index %q: key path must be a string, got %T", sf.Name, idf.Name, p)
					}
					paths = append(paths, str)
				}
			case nil:
			default:
				return Database{}, errors.Errorf("store %q: index %q: unsupported key path %T", sf.Name, idf.Name, x)
			}

			kps, err := ParseKeyPaths(paths...)
			if err != nil {
				return Database{}, errors.Wrapf(err, "store %q: index %q", sf.Name, idf.Name)
			}

			s.Indexes = append(s.Indexes, Index{
				Name:       idf.Name,
				KeyPath:    kps,
				Unique:     idf.Unique,
				MultiEntry: idf.MultiEntry,
			})
		}

		d.Stores = append(d.Stores, s)
	}

	return d, nil
}
