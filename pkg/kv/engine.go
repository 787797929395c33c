package kv

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// MemoryPath opens an engine without touching the filesystem, when the engine supports it.
const MemoryPath = ":memory:"

type Options struct {
	// Path of the engine directory (or file, for single-file engines).
	Path         string
	MaxBatchSize int
	Extra        map[string]string
}

type StoreEngine interface {
	New(opt Options) (Store, error)
}

var (
	engines   = map[string]StoreEngine{}
	enginesMu sync.RWMutex
)

func RegisterEngine(engine string, store StoreEngine) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	engines[engine] = store
}

func Engines() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()

	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func NewStore(engine string, opt Options) (Store, error) {
	enginesMu.RLock()
	e, ok := engines[engine]
	enginesMu.RUnlock()

	if ok {
		return e.New(opt)
	}
	return nil, errors.Errorf("unknown engine %s", engine)
}
