package embedded

import (
	"time"

	"github.com/octohelm/moviedb/pkg/dberr"
	"github.com/octohelm/moviedb/pkg/kv"
)

const (
	DefaultEngine       = "pebble"
	DefaultPollInterval = 500 * time.Millisecond
)

type OptionFunc = func(o *Options)

type Options struct {
	// Engine registered in kv, pebble by default.
	Engine string
	// Dir holds one engine directory per database name, kv.MemoryPath keeps data in process.
	Dir string
	// FailIfBlocked returns the BlockedError instead of waiting for the blocking sessions.
	FailIfBlocked bool
	// PollInterval between retries while another process holds the engine lock.
	PollInterval time.Duration
	OnBlocked    func(err *dberr.BlockedError)
	// OnVersionChange is called on a ready connector when another one waits to open a newer version.
	OnVersionChange func(requested uint64)
}

func WithEngine(engine string) OptionFunc {
	return func(o *Options) {
		o.Engine = engine
	}
}

func WithDir(dir string) OptionFunc {
	return func(o *Options) {
		o.Dir = dir
	}
}

func WithFailIfBlocked() OptionFunc {
	return func(o *Options) {
		o.FailIfBlocked = true
	}
}

func WithPollInterval(d time.Duration) OptionFunc {
	return func(o *Options) {
		o.PollInterval = d
	}
}

func WithOnBlocked(fn func(err *dberr.BlockedError)) OptionFunc {
	return func(o *Options) {
		o.OnBlocked = fn
	}
}

func WithOnVersionChange(fn func(requested uint64)) OptionFunc {
	return func(o *Options) {
		o.OnVersionChange = fn
	}
}

func (o *Options) setDefaults() {
	if o.Engine == "" {
		o.Engine = DefaultEngine
	}
	if o.Dir == "" {
		o.Dir = kv.MemoryPath
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
}
