package pebble_test

import (
	"context"
	"testing"

	"github.com/octohelm/moviedb/pkg/kv"
	_ "github.com/octohelm/moviedb/pkg/kv/pebble"
	"github.com/octohelm/moviedb/pkg/kv/kvtest"
	. "github.com/octohelm/x/testing"
)

func TestPebbleEngine(t *testing.T) {
	kvtest.Run(t, func(t testing.TB) kv.Store {
		return kvtest.TempStore(t, "pebble")
	})
}

func TestPebbleMemoryEngine(t *testing.T) {
	kvtest.Run(t, func(t testing.TB) kv.Store {
		s, err := kv.NewStore("pebble", kv.Options{Path: kv.MemoryPath})
		Expect(t, err, Be[error](nil))
		t.Cleanup(func() {
			_ = s.Shutdown(context.Background())
		})
		return s
	})
}
