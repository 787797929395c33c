package database

import (
	"encoding/json"

	"github.com/octohelm/moviedb/pkg/encoding/keycodec"
	"github.com/octohelm/moviedb/pkg/schema"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Record is a stored value, kept as JSON.
type Record interface {
	Marshal() ([]byte, error)
	Unmarshal(v any) error

	// Field returns the key at keyPath, false when missing or not a valid key.
	Field(keyPath schema.KeyPath) (any, bool)
	// SetField writes v at keyPath.
	SetField(keyPath schema.KeyPath, v any) error
}

// RecordFrom wraps a Go value; json.RawMessage values are taken as is.
func RecordFrom(v any) Record {
	if raw, ok := v.(json.RawMessage); ok {
		return RecordFromBytes(raw)
	}
	return &record{
		value: v,
	}
}

func RecordFromBytes(b []byte) Record {
	return &record{
		raw: b,
	}
}

type record struct {
	value any
	raw   []byte
}

func (r *record) Marshal() ([]byte, error) {
	if r.raw != nil {
		return r.raw, nil
	}
	raw, err := json.Marshal(r.value)
	if err != nil {
		return nil, errors.Wrap(err, "encode record")
	}
	if !gjson.ValidBytes(raw) {
		return nil, errors.Errorf("encode record: invalid json")
	}
	r.raw = raw
	return r.raw, nil
}

func (r *record) Unmarshal(v any) error {
	raw, err := r.Marshal()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func (r *record) Field(keyPath schema.KeyPath) (any, bool) {
	raw, err := r.Marshal()
	if err != nil {
		return nil, false
	}

	res := gjson.GetBytes(raw, keyPath.Selector())
	if !res.Exists() {
		return nil, false
	}

	return keyOf(res)
}

func (r *record) SetField(keyPath schema.KeyPath, v any) error {
	raw, err := r.Marshal()
	if err != nil {
		return err
	}
	if !gjson.ParseBytes(raw).IsObject() {
		return errors.Errorf("can not set %q on a non-object record", keyPath.String())
	}

	raw, err = sjson.SetBytes(raw, keyPath.Selector(), v)
	if err != nil {
		return errors.Wrapf(err, "set %q", keyPath.String())
	}

	r.raw = raw
	r.value = nil
	return nil
}

func keyOf(res gjson.Result) (any, bool) {
	switch res.Type {
	case gjson.Number:
		k, err := keycodec.Normalize(res.Num)
		if err != nil {
			return nil, false
		}
		return k, true
	case gjson.String:
		return res.Str, true
	case gjson.JSON:
		if !res.IsArray() {
			return nil, false
		}
		items := res.Array()
		values := make([]any, len(items))
		for i := range items {
			v, ok := keyOf(items[i])
			if !ok {
				return nil, false
			}
			values[i] = v
		}
		return values, true
	}
	return nil, false
}

// indexKeys returns the distinct keys rec contributes to idx.
func indexKeys(idx schema.Index, rec Record) []any {
	if idx.KeyPath.IsCompound() {
		values := make([]any, len(idx.KeyPath))
		for i := range idx.KeyPath {
			v, ok := rec.Field(idx.KeyPath[i])
			if !ok {
				return nil
			}
			values[i] = v
		}
		return []any{values}
	}

	if !idx.MultiEntry {
		if v, ok := rec.Field(idx.KeyPath[0]); ok {
			return []any{v}
		}
		return nil
	}

	raw, err := rec.Marshal()
	if err != nil {
		return nil
	}

	res := gjson.GetBytes(raw, idx.KeyPath[0].Selector())
	if !res.IsArray() {
		if v, ok := keyOf(res); ok {
			return []any{v}
		}
		return nil
	}

	keys := make([]any, 0)

	// invalid items are skipped, duplicates collapse
	res.ForEach(func(_, item gjson.Result) bool {
		k, ok := keyOf(item)
		if !ok {
			return true
		}
		for i := range keys {
			if keycodec.Compare(keys[i], k) == 0 {
				return true
			}
		}
		keys = append(keys, k)
		return true
	})

	return keys
}
