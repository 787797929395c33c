package schema

import (
	"bytes"
	"strconv"
	"strings"
)

func ParseKeyPath(s string) (KeyPath, error) {
	p := KeyPath{}

	buf := bytes.NewBuffer(nil)

	var appendPath = func(parse func(v string) (any, error)) error {
		if parse != nil {
			v, err := parse(buf.String())
			if err != nil {
				return err
			}
			p = append(p, v)
		} else {
			p = append(p, buf.String())
		}
		buf.Reset()
		return nil
	}

	for i := range s {
		b := s[i]

		switch b {
		case '[':
			if buf.Len() > 0 {
				_ = appendPath(nil)
			}
		case ']':
			if err := appendPath(func(v string) (any, error) {
				return strconv.ParseInt(v, 10, 64)
			}); err != nil {
				return nil, err
			}
		case '.':
			if buf.Len() > 0 {
				_ = appendPath(nil)
			}
		default:
			buf.WriteByte(b)
		}
	}

	if buf.Len() > 0 {
		_ = appendPath(nil)
	}

	return p, nil
}

// MustParseKeyPath panics on malformed paths, for static descriptors.
func MustParseKeyPath(s string) KeyPath {
	p, err := ParseKeyPath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// KeyPath addresses a field inside a record: "a.b" or "tags[0]".
type KeyPath []any

func (p KeyPath) String() string {
	var b strings.Builder

	for i := range p {
		switch x := p[i].(type) {
		case string:
			if i != 0 {
				b.WriteRune('.')
			}
			b.WriteString(x)
		case int64:
			b.WriteString("[" + strconv.FormatInt(x, 10) + "]")
		}
	}

	return b.String()
}

// IsEqual returns whether other is equal to p.
func (p KeyPath) IsEqual(other KeyPath) bool {
	if len(other) != len(p) {
		return false
	}

	for i := range p {
		if other[i] != p[i] {
			return false
		}
	}

	return true
}

// Selector renders p as a gjson/sjson path.
func (p KeyPath) Selector() string {
	var b strings.Builder

	for i := range p {
		if i != 0 {
			b.WriteByte('.')
		}
		switch x := p[i].(type) {
		case string:
			for j := 0; j < len(x); j++ {
				if strings.IndexByte(`\.*?|#@!=<>%`, x[j]) >= 0 {
					b.WriteByte('\\')
				}
				b.WriteByte(x[j])
			}
		case int64:
			b.WriteString(strconv.FormatInt(x, 10))
		}
	}

	return b.String()
}

// KeyPaths is one key path, or an ordered list of them for compound keys.
type KeyPaths []KeyPath

func ParseKeyPaths(paths ...string) (KeyPaths, error) {
	kps := make(KeyPaths, len(paths))
	for i := range paths {
		kp, err := ParseKeyPath(paths[i])
		if err != nil {
			return nil, err
		}
		kps[i] = kp
	}
	return kps, nil
}

func (ps KeyPaths) IsCompound() bool {
	return len(ps) > 1
}

func (ps KeyPaths) Strings() []string {
	s := make([]string, len(ps))
	for i := range ps {
		s[i] = ps[i].String()
	}
	return s
}

func (ps KeyPaths) String() string {
	return strings.Join(ps.Strings(), ",")
}

func (ps KeyPaths) IsEqual(other KeyPaths) bool {
	if len(ps) != len(other) {
		return false
	}
	for i := range ps {
		if !ps[i].IsEqual(other[i]) {
			return false
		}
	}
	return true
}
