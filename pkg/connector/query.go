package connector

import (
	"fmt"

	"github.com/pkg/errors"
)

// Query selects index keys: a single key or a KeyRange.
type Query interface {
	Range() (KeyRange, error)
}

// KeyRange bounds index keys, nil bounds are unbounded.
type KeyRange struct {
	Lower     Key
	Upper     Key
	LowerOpen bool
	UpperOpen bool
}

func (r KeyRange) Range() (KeyRange, error) {
	n := r

	if r.Lower != nil {
		lower, err := NormalizeKey(r.Lower)
		if err != nil {
			return KeyRange{}, errors.Wrap(err, "lower bound")
		}
		n.Lower = lower
	}

	if r.Upper != nil {
		upper, err := NormalizeKey(r.Upper)
		if err != nil {
			return KeyRange{}, errors.Wrap(err, "upper bound")
		}
		n.Upper = upper
	}

	if n.Lower != nil && n.Upper != nil {
		c, _ := CompareKeys(n.Lower, n.Upper)
		if c > 0 || (c == 0 && (n.LowerOpen || n.UpperOpen)) {
			return KeyRange{}, errors.Errorf("invalid key range %s", r)
		}
	}

	return n, nil
}

func (r KeyRange) String() string {
	lower, upper := "[", "]"
	if r.LowerOpen {
		lower = "("
	}
	if r.UpperOpen {
		upper = ")"
	}
	return fmt.Sprintf("%s%v, %v%s", lower, bound(r.Lower), bound(r.Upper), upper)
}

func bound(k Key) any {
	if k == nil {
		return "*"
	}
	return k
}

type only struct {
	key Key
}

func (o only) Range() (KeyRange, error) {
	if o.key == nil {
		return KeyRange{}, errors.New("only needs a key")
	}
	return KeyRange{Lower: o.key, Upper: o.key}.Range()
}

func Only(k Key) Query {
	return only{key: k}
}

func Bound(lower, upper Key, lowerOpen, upperOpen bool) KeyRange {
	return KeyRange{Lower: lower, Upper: upper, LowerOpen: lowerOpen, UpperOpen: upperOpen}
}

func LowerBound(lower Key, open bool) KeyRange {
	return KeyRange{Lower: lower, LowerOpen: open}
}

func UpperBound(upper Key, open bool) KeyRange {
	return KeyRange{Upper: upper, UpperOpen: open}
}

func All() KeyRange {
	return KeyRange{}
}
