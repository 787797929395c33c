package tree

import (
	"bytes"

	"github.com/octohelm/moviedb/pkg/kv"
)

func New(session kv.Session, ns Namespace) *Tree {
	return &Tree{
		Namespace: ns,
		Session:   session,
	}
}

type Tree struct {
	Namespace Namespace
	Session   kv.Session
}

var defaultValue = []byte{0}

func (t *Tree) Insert(key Key, value []byte) error {
	if len(value) == 0 {
		value = defaultValue
	}
	return t.Session.Insert(t.Namespace.key(key), value)
}

func (t *Tree) Put(key Key, value []byte) error {
	if len(value) == 0 {
		value = defaultValue
	}
	return t.Session.Put(t.Namespace.key(key), value)
}

func (t *Tree) Get(key Key) ([]byte, error) {
	return t.Session.Get(t.Namespace.key(key))
}

func (t *Tree) Exists(key Key) (bool, error) {
	return t.Session.Exists(t.Namespace.key(key))
}

func (t *Tree) Delete(key Key) error {
	return t.Session.Delete(t.Namespace.key(key))
}

// Truncate removes every key of the namespace.
func (t *Tree) Truncate() error {
	prefix := t.Namespace.Prefix()
	return kv.DeleteRange(t.Session, prefix, PrefixEnd(prefix))
}

// Range walks keys in rng. Bounds match by prefix: a bound on (a) covers every (a, ...) tuple.
func (t *Tree) Range(rng Range, reverse bool, fn func(key Key, value []byte) error) error {
	start, end := t.bounds(rng)
	if end != nil && bytes.Compare(start, end) >= 0 {
		return nil
	}

	it := t.Session.Iterator(start, end)
	defer it.Close()

	if !reverse {
		it.First()
	} else {
		it.Last()
	}

	prefixLen := len(t.Namespace.Prefix())

	for it.Valid() {
		k := NewEncodedKey(kv.Copy(it.Key()[prefixLen:]))

		err := fn(k, it.Value())
		if err != nil {
			return err
		}

		if !reverse {
			it.Next()
		} else {
			it.Prev()
		}
	}

	return it.Error()
}

func (t *Tree) bounds(rng Range) (start []byte, end []byte) {
	prefix := t.Namespace.Prefix()

	if rng == nil {
		return prefix, PrefixEnd(prefix)
	}

	switch min := rng.Min(); {
	case min == nil:
		start = prefix
	case rng.MinExclusive():
		start = PrefixEnd(t.Namespace.key(min))
	default:
		start = t.Namespace.key(min)
	}

	switch max := rng.Max(); {
	case max == nil:
		end = PrefixEnd(prefix)
	case rng.MaxExclusive():
		end = t.Namespace.key(max)
	default:
		end = PrefixEnd(t.Namespace.key(max))
	}

	return start, end
}

type Range interface {
	Min() Key
	Max() Key
	MinExclusive() bool
	MaxExclusive() bool
}

// NewRange returns a range whose bounds are both inclusive or both exclusive.
func NewRange(min Key, max Key, exclusive bool) Range {
	return &rng{min: min, max: max, minExclusive: exclusive, maxExclusive: exclusive}
}

func NewBoundRange(min Key, max Key, minExclusive bool, maxExclusive bool) Range {
	return &rng{min: min, max: max, minExclusive: minExclusive, maxExclusive: maxExclusive}
}

type rng struct {
	min          Key
	max          Key
	minExclusive bool
	maxExclusive bool
}

func (r *rng) Min() Key {
	return r.min
}

func (r *rng) Max() Key {
	return r.max
}

func (r *rng) MinExclusive() bool {
	return r.minExclusive
}

func (r *rng) MaxExclusive() bool {
	return r.maxExclusive
}
