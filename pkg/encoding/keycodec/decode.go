package keycodec

import (
	"encoding/binary"
	"math"
	"time"
)

// Unmarshal decodes a single key, data must hold exactly one encoded value.
func Unmarshal(data []byte) (any, error) {
	v, n, err := Next(data)
	if err != nil {
		return nil, err
	}
	if n != len(data) {
		return nil, &CorruptKeyError{Offset: n, Str: "trailing bytes"}
	}
	return v, nil
}

// UnmarshalAll decodes a tuple of concatenated keys.
func UnmarshalAll(data []byte) ([]any, error) {
	var values []any
	for off := 0; off < len(data); {
		v, n, err := Next(data[off:])
		if err != nil {
			if ce, ok := err.(*CorruptKeyError); ok {
				ce.Offset += off
			}
			return nil, err
		}
		values = append(values, v)
		off += n
	}
	return values, nil
}

// Next decodes the first key in data and returns the number of bytes it used.
func Next(data []byte) (any, int, error) {
	if len(data) == 0 {
		return nil, 0, &CorruptKeyError{Str: "empty"}
	}

	switch data[0] {
	case numberValue:
		if len(data) < 9 {
			return nil, 0, &CorruptKeyError{Str: "short number"}
		}
		bits := binary.BigEndian.Uint64(data[1:9])
		if bits&(1<<63) != 0 {
			bits &^= 1 << 63
		} else {
			bits = ^bits
		}
		v, _ := fromFloat(math.Float64frombits(bits))
		return v, 9, nil
	case dateValue:
		if len(data) < 13 {
			return nil, 0, &CorruptKeyError{Str: "short date"}
		}
		sec := int64(binary.BigEndian.Uint64(data[1:9]) ^ (1 << 63))
		nsec := int64(binary.BigEndian.Uint32(data[9:13]))
		return time.Unix(sec, nsec).UTC(), 13, nil
	case stringValue:
		b, n, err := readBytes(data[1:])
		if err != nil {
			return nil, 0, err
		}
		return string(b), n + 1, nil
	case binaryValue:
		b, n, err := readBytes(data[1:])
		if err != nil {
			return nil, 0, err
		}
		return b, n + 1, nil
	case arrayValue:
		values := make([]any, 0)
		off := 1
		for {
			if off >= len(data) {
				return nil, 0, &CorruptKeyError{Offset: off, Str: "unterminated array"}
			}
			if data[off] == terminator {
				return values, off + 1, nil
			}
			v, n, err := Next(data[off:])
			if err != nil {
				return nil, 0, err
			}
			values = append(values, v)
			off += n
		}
	}

	return nil, 0, &CorruptKeyError{Str: "unknown type tag"}
}

func readBytes(data []byte) ([]byte, int, error) {
	b := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		c := data[i]
		if c != terminator {
			b = append(b, c)
			continue
		}
		if i+1 >= len(data) {
			break
		}
		switch data[i+1] {
		case endOfBytes:
			return b, i + 2, nil
		case escapeNull:
			b = append(b, terminator)
			i++
		default:
			return nil, 0, &CorruptKeyError{Offset: i, Str: "bad escape"}
		}
	}
	return nil, 0, &CorruptKeyError{Str: "unterminated bytes"}
}
