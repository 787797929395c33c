// Package keycodec encodes keys so that bytewise order equals key order.
//
// Every encoded value is prefix-free: no encoding is a prefix of another one,
// which lets keys be concatenated into tuples and scanned by prefix.
package keycodec

import (
	"encoding/binary"
	"math"
	"time"
)

// Marshal returns the encoding of a single key.
func Marshal(v any) ([]byte, error) {
	return Append(nil, v)
}

// Append appends the encoding of v to b.
func Append(b []byte, v any) ([]byte, error) {
	n, err := Normalize(v)
	if err != nil {
		return nil, err
	}
	return appendNormalized(b, n), nil
}

func appendNormalized(b []byte, v any) []byte {
	switch x := v.(type) {
	case int64:
		return appendNumber(b, float64(x))
	case float64:
		return appendNumber(b, x)
	case time.Time:
		b = append(b, dateValue)
		b = appendUint64(b, uint64(x.Unix())^(1<<63))
		return binary.BigEndian.AppendUint32(b, uint32(x.Nanosecond()))
	case string:
		return appendBytes(append(b, stringValue), []byte(x))
	case []byte:
		return appendBytes(append(b, binaryValue), x)
	case []any:
		b = append(b, arrayValue)
		for i := range x {
			b = appendNormalized(b, x[i])
		}
		return append(b, terminator)
	}
	panic(&InvalidKeyError{Value: v})
}

func appendNumber(b []byte, f float64) []byte {
	if f == 0 {
		// -0 and 0 are the same key
		f = 0
	}
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	return appendUint64(append(b, numberValue), bits)
}

func appendUint64(b []byte, u uint64) []byte {
	return binary.BigEndian.AppendUint64(b, u)
}

func appendBytes(b []byte, data []byte) []byte {
	for _, c := range data {
		if c == terminator {
			b = append(b, terminator, escapeNull)
			continue
		}
		b = append(b, c)
	}
	return append(b, terminator, endOfBytes)
}
