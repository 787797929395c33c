package connector_test

import (
	"testing"
	"time"

	"github.com/octohelm/moviedb/pkg/connector"
	. "github.com/octohelm/x/testing"
)

func TestQuery(t *testing.T) {
	t.Run("only", func(t *testing.T) {
		r, err := connector.Only(5).Range()
		Expect(t, err, Be[error](nil))
		Expect(t, r.Lower, Equal[any](int64(5)))
		Expect(t, r.Upper, Equal[any](int64(5)))
		Expect(t, r.LowerOpen || r.UpperOpen, Be(false))
	})

	t.Run("bound normalizes", func(t *testing.T) {
		r, err := connector.Bound(1.0, 2.5, false, true).Range()
		Expect(t, err, Be[error](nil))
		Expect(t, r.Lower, Equal[any](int64(1)))
		Expect(t, r.Upper, Equal[any](2.5))
		Expect(t, r.String(), Be("[1, 2.5)"))
	})

	t.Run("unbounded", func(t *testing.T) {
		_, err := connector.All().Range()
		Expect(t, err, Be[error](nil))
		_, err = connector.LowerBound("a", true).Range()
		Expect(t, err, Be[error](nil))
		_, err = connector.UpperBound(time.Now(), false).Range()
		Expect(t, err, Be[error](nil))
	})

	t.Run("invalid ranges", func(t *testing.T) {
		for name, q := range map[string]connector.Query{
			"lower above upper":    connector.Bound(3, 2, false, false),
			"equal with open side": connector.Bound(2, 2, true, false),
			"invalid key":          connector.LowerBound(map[string]int{}, false),
			"only nil":             connector.Only(nil),
		} {
			t.Run(name, func(t *testing.T) {
				_, err := q.Range()
				Expect(t, err, Not(Be[error](nil)))
			})
		}
	})
}

func TestCompareKeys(t *testing.T) {
	ordered := []connector.Key{
		-1, 1.5, 2, time.Unix(0, 0), "", "a", "b", []byte{0}, []any{}, []any{1}, []any{1, "a"}, []any{2},
	}

	for i := 1; i < len(ordered); i++ {
		c, err := connector.CompareKeys(ordered[i-1], ordered[i])
		Expect(t, err, Be[error](nil))
		Expect(t, c, Be(-1))
	}

	_, err := connector.CompareKeys(true, 1)
	Expect(t, err, Not(Be[error](nil)))
}
