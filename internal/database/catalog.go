package database

import (
	"context"
	"sort"

	"github.com/go-logr/logr"
	"github.com/octohelm/moviedb/internal/tree"
	"github.com/octohelm/moviedb/pkg/dberr"
	"github.com/octohelm/moviedb/pkg/kv"
	"github.com/octohelm/moviedb/pkg/schema"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// metaNamespace holds the catalog and key generators.
const metaNamespace tree.Namespace = 0

var catalogKey = tree.NewKey("catalog")

func generatorKey(ns tree.Namespace) tree.Key {
	return tree.NewKey("seq", int64(ns))
}

// Catalog is the persisted structure of a database.
type Catalog struct {
	Version       uint64                `msgpack:"version"`
	NextNamespace uint64                `msgpack:"nextNamespace"`
	Stores        map[string]*StoreInfo `msgpack:"stores"`
}

type StoreInfo struct {
	Name          string                `msgpack:"name"`
	Namespace     uint64                `msgpack:"ns"`
	KeyPath       string                `msgpack:"keyPath,omitempty"`
	AutoIncrement bool                  `msgpack:"autoIncrement,omitempty"`
	Indexes       map[string]*IndexInfo `msgpack:"indexes,omitempty"`
}

type IndexInfo struct {
	Name       string   `msgpack:"name"`
	Namespace  uint64   `msgpack:"ns"`
	KeyPath    []string `msgpack:"keyPath"`
	Unique     bool     `msgpack:"unique,omitempty"`
	MultiEntry bool     `msgpack:"multiEntry,omitempty"`
}

func newCatalog() *Catalog {
	return &Catalog{
		NextNamespace: 1,
		Stores:        map[string]*StoreInfo{},
	}
}

func (c *Catalog) clone() *Catalog {
	n := &Catalog{
		Version:       c.Version,
		NextNamespace: c.NextNamespace,
		Stores:        make(map[string]*StoreInfo, len(c.Stores)),
	}
	for name, s := range c.Stores {
		cs := *s
		cs.Indexes = make(map[string]*IndexInfo, len(s.Indexes))
		for k, idx := range s.Indexes {
			ci := *idx
			cs.Indexes[k] = &ci
		}
		n.Stores[name] = &cs
	}
	return n
}

func (c *Catalog) allocate() uint64 {
	ns := c.NextNamespace
	c.NextNamespace++
	return ns
}

// StoreNames returns the names of every persisted store, sorted.
func (c *Catalog) StoreNames() []string {
	names := make([]string, 0, len(c.Stores))
	for name := range c.Stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schema returns the persisted structure as a descriptor.
func (c *Catalog) Schema(name string) schema.Database {
	d := schema.Database{Name: name, Version: c.Version}
	for _, n := range c.StoreNames() {
		d.Stores = append(d.Stores, c.Stores[n].Schema())
	}
	return d
}

func (s *StoreInfo) Schema() schema.Store {
	st := schema.Store{
		Name:          s.Name,
		AutoIncrement: s.AutoIncrement,
	}
	if s.KeyPath != "" {
		st.KeyPath = schema.MustParseKeyPath(s.KeyPath)
	}

	names := make([]string, 0, len(s.Indexes))
	for name := range s.Indexes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		st.Indexes = append(st.Indexes, s.Indexes[name].Schema())
	}
	return st
}

func (i *IndexInfo) Schema() schema.Index {
	kps, _ := schema.ParseKeyPaths(i.KeyPath...)
	return schema.Index{
		Name:       i.Name,
		KeyPath:    kps,
		Unique:     i.Unique,
		MultiEntry: i.MultiEntry,
	}
}

func loadCatalog(session kv.Session) (*Catalog, error) {
	data, err := tree.New(session, metaNamespace).Get(catalogKey)
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return newCatalog(), nil
		}
		return nil, errors.Wrap(err, "read catalog")
	}

	c := newCatalog()
	if err := msgpack.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	if c.Stores == nil {
		c.Stores = map[string]*StoreInfo{}
	}
	return c, nil
}

func saveCatalog(session kv.Session, c *Catalog) error {
	data, err := msgpack.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encode catalog")
	}
	return tree.New(session, metaNamespace).Put(catalogKey, data)
}

// migrate brings the catalog of tx up to desc, adding what is missing.
// It never drops or alters existing stores or indexes.
// Returns the new catalog and whether anything changed.
func migrate(ctx context.Context, tx Transaction, current *Catalog, desc schema.Database) (*Catalog, bool, error) {
	l := logr.FromContextOrDiscard(ctx)

	if current.Version > desc.Version {
		return nil, false, &dberr.VersionError{Database: desc.Name, Stored: current.Version, Requested: desc.Version}
	}

	next := current.clone()
	changed := false

	if next.Version < desc.Version {
		l.Info("upgrading", "from", next.Version, "to", desc.Version)
		next.Version = desc.Version
		changed = true
	}

	for _, s := range desc.Stores {
		info, exists := next.Stores[s.Name]

		if !exists {
			info = &StoreInfo{
				Name:          s.Name,
				Namespace:     next.allocate(),
				KeyPath:       s.KeyPath.String(),
				AutoIncrement: s.AutoIncrement,
				Indexes:       map[string]*IndexInfo{},
			}
			next.Stores[s.Name] = info
			changed = true
			l.V(1).Info("store created", "store", s.Name)
		} else if info.KeyPath != s.KeyPath.String() || info.AutoIncrement != s.AutoIncrement {
			l.Info("key policy change ignored", "store", s.Name,
				"keyPath", info.KeyPath, "autoIncrement", info.AutoIncrement)
		}

		for _, idx := range s.Indexes {
			if existing, ok := info.Indexes[idx.Name]; ok {
				if !existing.Schema().KeyPath.IsEqual(idx.KeyPath) || existing.Unique != idx.Unique || existing.MultiEntry != idx.MultiEntry {
					l.Info("index definition change ignored", "store", s.Name, "index", idx.Name)
				}
				continue
			}

			ii := &IndexInfo{
				Name:       idx.Name,
				Namespace:  next.allocate(),
				KeyPath:    idx.KeyPath.Strings(),
				Unique:     idx.Unique,
				MultiEntry: idx.MultiEntry,
			}
			info.Indexes[idx.Name] = ii
			changed = true

			if exists {
				n, err := backfill(ctx, tx, info, ii)
				if err != nil {
					return nil, false, errors.Wrapf(err, "back-fill index %q of store %q", idx.Name, s.Name)
				}
				l.V(1).Info("index created", "store", s.Name, "index", idx.Name, "entries", n)
			} else {
				l.V(1).Info("index created", "store", s.Name, "index", idx.Name)
			}
		}
	}

	if !changed {
		return current, false, nil
	}

	if err := saveCatalog(tx.Session(), next); err != nil {
		return nil, false, err
	}

	return next, true, nil
}

// backfill indexes every existing record of s into idx.
func backfill(ctx context.Context, tx Transaction, s *StoreInfo, idx *IndexInfo) (int, error) {
	type entry struct {
		pk  any
		rec Record
	}

	entries := make([]entry, 0)

	err := tree.New(tx.Session(), tree.Namespace(s.Namespace)).Range(nil, false, func(k tree.Key, v []byte) error {
		entries = append(entries, entry{pk: k.Values()[0], rec: RecordFromBytes(kv.Copy(v))})
		return nil
	})
	if err != nil {
		return 0, err
	}

	i := NewIndex(tx, s.Name, idx)
	n := 0

	for _, e := range entries {
		for _, k := range indexKeys(idx.Schema(), e.rec) {
			if idx.Unique {
				if err := i.CheckUnique(ctx, k, e.pk); err != nil {
					return n, err
				}
			}
			if err := i.Set(ctx, k, e.pk); err != nil {
				return n, err
			}
			n++
		}
	}

	return n, nil
}
