package connector

import (
	"github.com/octohelm/moviedb/pkg/encoding/keycodec"
)

// Key is a number, string, []byte, time.Time or an []any of keys.
// Integral numbers are normalized to int64, other numbers to float64.
type Key = any

// NormalizeKey returns the canonical form of k, failing on values that are not keys.
func NormalizeKey(k Key) (Key, error) {
	return keycodec.Normalize(k)
}

// CompareKeys orders a and b: number < date < string < binary < array.
func CompareKeys(a, b Key) (int, error) {
	na, err := keycodec.Normalize(a)
	if err != nil {
		return 0, err
	}
	nb, err := keycodec.Normalize(b)
	if err != nil {
		return 0, err
	}
	return keycodec.Compare(na, nb), nil
}
