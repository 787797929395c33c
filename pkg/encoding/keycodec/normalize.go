package keycodec

import (
	"bytes"
	"math"
	"reflect"
	"time"
)

// maxSafeInteger is the largest integer a float64 holds exactly.
const maxSafeInteger = 1<<53 - 1

// Normalize converts v into the canonical key form:
// int64 for integral numbers, float64 for other numbers, string, []byte, time.Time or []any.
func Normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, &InvalidKeyError{Str: "nil"}
	case int:
		return fromInt(int64(x))
	case int8:
		return fromInt(int64(x))
	case int16:
		return fromInt(int64(x))
	case int32:
		return fromInt(int64(x))
	case int64:
		return fromInt(x)
	case uint:
		return fromUint(uint64(x))
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		return fromUint(x)
	case float32:
		return fromFloat(float64(x))
	case float64:
		return fromFloat(x)
	case string:
		return x, nil
	case []byte:
		return x, nil
	case time.Time:
		return x.UTC(), nil
	case []any:
		values := make([]any, len(x))
		for i := range x {
			n, err := Normalize(x[i])
			if err != nil {
				return nil, err
			}
			values[i] = n
		}
		return values, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		values := make([]any, rv.Len())
		for i := range values {
			n, err := Normalize(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			values[i] = n
		}
		return values, nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fromInt(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fromUint(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return fromFloat(rv.Float())
	}

	return nil, &InvalidKeyError{Value: v}
}

func fromInt(i int64) (any, error) {
	if i > maxSafeInteger || i < -maxSafeInteger {
		return float64(i), nil
	}
	return i, nil
}

func fromUint(u uint64) (any, error) {
	if u > maxSafeInteger {
		return float64(u), nil
	}
	return int64(u), nil
}

func fromFloat(f float64) (any, error) {
	if math.IsNaN(f) {
		return nil, &InvalidKeyError{Str: "NaN"}
	}
	if f == math.Trunc(f) && math.Abs(f) <= maxSafeInteger {
		return int64(f), nil
	}
	return f, nil
}

func IsValid(v any) bool {
	_, err := Normalize(v)
	return err == nil
}

// Compare orders two keys, panics on invalid ones.
func Compare(a, b any) int {
	ea, err := Marshal(a)
	if err != nil {
		panic(err)
	}
	eb, err := Marshal(b)
	if err != nil {
		panic(err)
	}
	return bytes.Compare(ea, eb)
}
