package id_test

import (
	"context"
	"testing"

	"github.com/octohelm/moviedb/pkg/id"
	. "github.com/octohelm/x/testing"
)

func TestSessionID(t *testing.T) {
	gen, err := id.New()
	Expect(t, err, Be[error](nil))

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		sid, err := id.SessionID(gen)
		Expect(t, err, Be[error](nil))
		Expect(t, seen[sid], Be(false))
		seen[sid] = true
	}

	t.Run("context", func(t *testing.T) {
		ctx := id.InjectContext(context.Background(), gen)
		Expect(t, id.FromContext(ctx) == gen, Be(true))
		Expect(t, id.FromContext(context.Background()) != nil, Be(true))
	})
}
