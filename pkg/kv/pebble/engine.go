package pebble

import (
	"fmt"
	"os"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/octohelm/moviedb/pkg/kv"
	"github.com/pkg/errors"
)

func init() {
	kv.RegisterEngine("pebble", &engine{})
}

type engine struct {
}

func (e engine) New(opt kv.Options) (kv.Store, error) {
	var opts pebble.Options

	path := opt.Path
	if path == "" {
		path = opt.Extra["path"]
	}
	if path == "" {
		return nil, errors.New("engine pebble need `path`")
	}

	if path == kv.MemoryPath {
		opts.FS = vfs.NewMem()
		path = ""
	} else if err := EnsureDirectory(path); err != nil {
		return nil, err
	}

	pdb, err := Open(path, &opts)
	if err != nil {
		if kv.IsLockError(err) {
			return nil, errors.Wrap(kv.ErrLocked, err.Error())
		}
		return nil, err
	}

	return NewStore(pdb, opt), nil
}

// Open a database. Keys produced by keycodec sort bytewise, so the default comparer is kept.
func Open(path string, opts *pebble.Options) (*pebble.DB, error) {
	if opts == nil {
		opts = &pebble.Options{}
	}
	if opts.Comparer == nil {
		opts.Comparer = pebble.DefaultComparer
	}
	return pebble.Open(path, opts)
}

type DB = pebble.DB

func EnsureDirectory(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o777)
	} else if err == nil && !info.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}
	return err
}
