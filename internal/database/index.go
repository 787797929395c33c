package database

import (
	"context"

	"github.com/octohelm/moviedb/internal/tree"
	"github.com/octohelm/moviedb/pkg/dberr"
	"github.com/octohelm/moviedb/pkg/encoding/keycodec"
	"github.com/octohelm/moviedb/pkg/kv"
	"github.com/pkg/errors"
)

// Index maps index keys to primary keys.
// Entries are (indexKey, primaryKey) tuples, so equal index keys sort by primary key.
type Index interface {
	Info() *IndexInfo
	Set(ctx context.Context, key any, pk any) error
	Exists(ctx context.Context, key any) (bool, any, error)
	// CheckUnique fails with a ConflictError when key is held by another primary key.
	CheckUnique(ctx context.Context, key any, pk any) error
	Delete(ctx context.Context, key any, pk any) error
	Range(ctx context.Context, rng tree.Range, reverse bool, fn func(key any, pk any) error) error
	Truncate(ctx context.Context) error
}

type index struct {
	store string
	info  *IndexInfo
	tree  *tree.Tree
}

func NewIndex(tx Transaction, store string, info *IndexInfo) Index {
	return &index{
		store: store,
		info:  info,
		tree:  tree.New(tx.Session(), tree.Namespace(info.Namespace)),
	}
}

var errStop = errors.New("stop")

func (idx *index) Info() *IndexInfo {
	return idx.info
}

func (idx *index) Set(ctx context.Context, key any, pk any) error {
	if pk == nil {
		return errors.New("cannot index value without a key")
	}
	return idx.tree.Put(tree.NewKey(key, pk), nil)
}

func (idx *index) Exists(ctx context.Context, key any) (bool, any, error) {
	var found bool
	var pk any

	seek := tree.NewKey(key)

	err := idx.Range(ctx, tree.NewRange(seek, seek, false), false, func(_ any, p any) error {
		pk = p
		found = true
		return errStop
	})
	if err == errStop {
		err = nil
	}
	return found, pk, err
}

func (idx *index) CheckUnique(ctx context.Context, key any, pk any) error {
	seek := tree.NewKey(key)

	err := idx.Range(ctx, tree.NewRange(seek, seek, false), false, func(_ any, p any) error {
		if keycodec.Compare(p, pk) != 0 {
			return &dberr.ConflictError{Name: idx.store + "." + idx.info.Name, Key: key}
		}
		return nil
	})
	return err
}

func (idx *index) Delete(ctx context.Context, key any, pk any) error {
	err := idx.tree.Delete(tree.NewKey(key, pk))
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (idx *index) Range(ctx context.Context, rng tree.Range, reverse bool, fn func(key any, pk any) error) error {
	return idx.tree.Range(rng, reverse, func(k tree.Key, _ []byte) error {
		values := k.Values()
		if len(values) != 2 {
			return errors.Errorf("invalid index entry %x", k.Bytes())
		}
		return fn(values[0], values[1])
	})
}

func (idx *index) Truncate(ctx context.Context) error {
	return idx.tree.Truncate()
}
