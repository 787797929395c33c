package tree

import (
	"encoding/binary"

	"github.com/octohelm/moviedb/pkg/encoding/keycodec"
)

type Key interface {
	Values() []any
	Bytes() []byte
}

// NewKey builds a tuple key, each value must be a valid keycodec key.
func NewKey(values ...any) Key {
	return &key{
		values: values,
	}
}

func NewEncodedKey(enc []byte) Key {
	return &key{
		raw: enc,
	}
}

type key struct {
	values []any
	raw    []byte
}

func (k *key) Values() []any {
	if k.values != nil {
		return k.values
	}

	values, err := keycodec.UnmarshalAll(k.raw)
	if err != nil {
		panic(err)
	}

	k.values = values
	return k.values
}

func (k *key) Bytes() []byte {
	if k.raw != nil {
		return k.raw
	}

	var raw []byte
	for i := range k.values {
		b, err := keycodec.Append(raw, k.values[i])
		if err != nil {
			panic(err)
		}
		raw = b
	}

	k.raw = raw
	return k.raw
}

// Namespace prefixes every key of a tree, 8 bytes big endian.
type Namespace uint64

func (ns Namespace) Prefix() []byte {
	return binary.BigEndian.AppendUint64(make([]byte, 0, 8), uint64(ns))
}

func (ns Namespace) key(k Key) []byte {
	return append(ns.Prefix(), k.Bytes()...)
}

// PrefixEnd returns the smallest key greater than every key prefixed by b,
// nil when no such key exists.
func PrefixEnd(b []byte) []byte {
	end := make([]byte, len(b))
	copy(end, b)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
