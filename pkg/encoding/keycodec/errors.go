package keycodec

import (
	"fmt"
	"reflect"
)

type InvalidKeyError struct {
	Value any
	Str   string
}

func (e *InvalidKeyError) Error() string {
	if e.Str != "" {
		return "keycodec: invalid key: " + e.Str
	}
	return fmt.Sprintf("keycodec: invalid key of type %s", reflect.TypeOf(e.Value))
}

type CorruptKeyError struct {
	Offset int
	Str    string
}

func (e *CorruptKeyError) Error() string {
	return fmt.Sprintf("keycodec: corrupt key at offset %d: %s", e.Offset, e.Str)
}
