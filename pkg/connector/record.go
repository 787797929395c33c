package connector

import (
	"encoding/json"
)

// Record is a stored value as JSON.
type Record json.RawMessage

func (r Record) Decode(v any) error {
	return json.Unmarshal(r, v)
}

func (r Record) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	return r, nil
}

func (r Record) String() string {
	return string(r)
}
