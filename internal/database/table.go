package database

import (
	"context"
	"math"

	"github.com/octohelm/moviedb/internal/tree"
	"github.com/octohelm/moviedb/pkg/dberr"
	"github.com/octohelm/moviedb/pkg/encoding/keycodec"
	"github.com/octohelm/moviedb/pkg/kv"
	"github.com/octohelm/moviedb/pkg/schema"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Table is a store of records, with its indexes kept in sync on every write.
type Table interface {
	Info() *StoreInfo
	// Put inserts or replaces a record and returns its primary key.
	// key must be nil for stores with in-line keys.
	Put(ctx context.Context, rec Record, key any) (any, error)
	Get(ctx context.Context, key any) (Record, bool, error)
	Delete(ctx context.Context, key any) error
	Range(ctx context.Context, rng tree.Range, reverse bool, fn func(pk any, rec Record) error) error
	Truncate(ctx context.Context) error
	Index(name string) (Index, error)
}

func NewTable(tx Transaction, info *StoreInfo) Table {
	t := &table{
		tx:      tx,
		info:    info,
		schema:  info.Schema(),
		tree:    tree.New(tx.Session(), tree.Namespace(info.Namespace)),
		meta:    tree.New(tx.Session(), metaNamespace),
		indexes: make([]Index, 0, len(info.Indexes)),
	}
	for _, idx := range t.schema.Indexes {
		t.indexes = append(t.indexes, NewIndex(tx, info.Name, info.Indexes[idx.Name]))
	}
	return t
}

type table struct {
	tx      Transaction
	info    *StoreInfo
	schema  schema.Store
	tree    *tree.Tree
	meta    *tree.Tree
	indexes []Index
}

func (t *table) Info() *StoreInfo {
	return t.info
}

func (t *table) Index(name string) (Index, error) {
	for _, idx := range t.indexes {
		if idx.Info().Name == name {
			return idx, nil
		}
	}
	return nil, &dberr.NotFoundError{Name: t.info.Name + "." + name}
}

func (t *table) Truncate(ctx context.Context) error {
	if err := t.tree.Truncate(); err != nil {
		return err
	}
	for _, idx := range t.indexes {
		if err := idx.Truncate(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (t *table) Get(ctx context.Context, key any) (Record, bool, error) {
	pk, err := keycodec.Normalize(key)
	if err != nil {
		return nil, false, err
	}

	data, err := t.tree.Get(tree.NewKey(pk))
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return RecordFromBytes(kv.Copy(data)), true, nil
}

func (t *table) Put(ctx context.Context, rec Record, key any) (any, error) {
	pk, err := t.primaryKey(rec, key)
	if err != nil {
		return nil, err
	}

	old, exists, err := t.Get(ctx, pk)
	if err != nil {
		return nil, err
	}

	for _, idx := range t.indexes {
		if !idx.Info().Unique {
			continue
		}
		for _, k := range indexKeys(idx.Info().Schema(), rec) {
			if err := idx.CheckUnique(ctx, k, pk); err != nil {
				return nil, err
			}
		}
	}

	if exists {
		if err := t.unindex(ctx, pk, old); err != nil {
			return nil, err
		}
	}

	enc, err := rec.Marshal()
	if err != nil {
		return nil, err
	}

	if err := t.tree.Put(tree.NewKey(pk), enc); err != nil {
		return nil, err
	}

	for _, idx := range t.indexes {
		for _, k := range indexKeys(idx.Info().Schema(), rec) {
			if err := idx.Set(ctx, k, pk); err != nil {
				return nil, err
			}
		}
	}

	return pk, nil
}

func (t *table) Delete(ctx context.Context, key any) error {
	pk, err := keycodec.Normalize(key)
	if err != nil {
		return err
	}

	old, exists, err := t.Get(ctx, pk)
	if err != nil || !exists {
		return err
	}

	if err := t.unindex(ctx, pk, old); err != nil {
		return err
	}

	err = t.tree.Delete(tree.NewKey(pk))
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (t *table) Range(ctx context.Context, rng tree.Range, reverse bool, fn func(pk any, rec Record) error) error {
	return t.tree.Range(rng, reverse, func(k tree.Key, enc []byte) error {
		return fn(k.Values()[0], RecordFromBytes(kv.Copy(enc)))
	})
}

func (t *table) unindex(ctx context.Context, pk any, rec Record) error {
	for _, idx := range t.indexes {
		for _, k := range indexKeys(idx.Info().Schema(), rec) {
			if err := idx.Delete(ctx, k, pk); err != nil {
				return err
			}
		}
	}
	return nil
}

// primaryKey resolves the key of rec following the key policy of the store,
// generating one when the store auto-increments.
func (t *table) primaryKey(rec Record, key any) (any, error) {
	s := t.schema

	if s.InlineKey() {
		if key != nil {
			return nil, errors.Errorf("store %q uses in-line keys, an explicit key is not allowed", s.Name)
		}

		if pk, ok := rec.Field(s.KeyPath); ok {
			if s.AutoIncrement {
				if err := t.observe(pk); err != nil {
					return nil, err
				}
			}
			return pk, nil
		}

		if !s.AutoIncrement {
			return nil, errors.Errorf("record has no valid key at %q", s.KeyPath.String())
		}

		pk, err := t.generate()
		if err != nil {
			return nil, err
		}
		if err := rec.SetField(s.KeyPath, pk); err != nil {
			return nil, err
		}
		return pk, nil
	}

	if key == nil {
		if !s.AutoIncrement {
			return nil, errors.Errorf("store %q uses out-of-line keys, a key is required", s.Name)
		}
		return t.generate()
	}

	pk, err := keycodec.Normalize(key)
	if err != nil {
		return nil, err
	}

	if s.AutoIncrement {
		if err := t.observe(pk); err != nil {
			return nil, err
		}
	}

	return pk, nil
}

const maxGeneratedKey = 1 << 53

// generate returns the next key of the store generator.
func (t *table) generate() (int64, error) {
	next, err := t.nextKey()
	if err != nil {
		return 0, err
	}
	if next > maxGeneratedKey {
		return 0, errors.Errorf("key generator of store %q is exhausted", t.info.Name)
	}
	if err := t.setNextKey(next + 1); err != nil {
		return 0, err
	}
	return next, nil
}

// observe moves the generator past an explicit numeric key.
func (t *table) observe(pk any) error {
	var n float64

	switch x := pk.(type) {
	case int64:
		n = float64(x)
	case float64:
		n = x
	default:
		return nil
	}

	next, err := t.nextKey()
	if err != nil {
		return err
	}

	if n < float64(next) {
		return nil
	}

	if n >= maxGeneratedKey {
		return t.setNextKey(maxGeneratedKey + 1)
	}

	return t.setNextKey(int64(math.Floor(n)) + 1)
}

func (t *table) nextKey() (int64, error) {
	data, err := t.meta.Get(generatorKey(tree.Namespace(t.info.Namespace)))
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return 1, nil
		}
		return 0, err
	}
	var next int64
	if err := msgpack.Unmarshal(data, &next); err != nil {
		return 0, errors.Wrap(err, "decode key generator")
	}
	return next, nil
}

func (t *table) setNextKey(next int64) error {
	data, err := msgpack.Marshal(next)
	if err != nil {
		return err
	}
	return t.meta.Put(generatorKey(tree.Namespace(t.info.Namespace)), data)
}
