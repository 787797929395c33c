// Package lifecycle sequences the opening of a connector before its use and its closing on teardown.
package lifecycle

import (
	"context"
	"sync"

	"github.com/go-logr/logr"
	"github.com/octohelm/moviedb/pkg/connector"
	"github.com/tevino/abool"
)

// State is what consumers observe of the hosted connector.
type State struct {
	Connector connector.Connector
	// Loading stays true until the open settles, including while blocked.
	Loading bool
	// Error of a failed open, or the blocked message while waiting.
	Error string
}

func NewHost(c connector.Connector) *Host {
	return &Host{
		current: newSlot(c),
	}
}

// Host owns one connector at a time.
// Each instance is initialized at most once and closed exactly once.
type Host struct {
	mu      sync.Mutex
	current *slot
}

type slot struct {
	c         connector.Connector
	mountOnce sync.Once
	closeOnce sync.Once
	closeErr  error

	settled *abool.AtomicBool
	done    chan struct{}

	mu      sync.Mutex
	err     error
	blocked string
}

func newSlot(c connector.Connector) *slot {
	return &slot{
		c:       c,
		settled: abool.New(),
		done:    make(chan struct{}),
	}
}

func (s *slot) mount(ctx context.Context, h *Host) {
	s.mountOnce.Do(func() {
		l := logr.FromContextOrDiscard(ctx).WithName("lifecycle")

		if n, ok := s.c.(connector.BlockNotifier); ok {
			n.NotifyBlocked(func(err error) {
				s.mu.Lock()
				s.blocked = err.Error()
				s.mu.Unlock()

				if h.isCurrent(s) {
					l.Info("waiting for other sessions", "err", err.Error())
				}
			})
		}

		go func() {
			err := s.c.Initialize(ctx)

			s.mu.Lock()
			s.err = err
			s.blocked = ""
			s.mu.Unlock()

			s.settled.Set()
			close(s.done)

			if !h.isCurrent(s) {
				return
			}
			if err != nil {
				l.Error(err, "open failed")
				return
			}
			l.V(1).Info("ready")
		}()
	})
}

func (s *slot) close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.c.Close()
	})
	return s.closeErr
}

func (s *slot) state() State {
	st := State{
		Connector: s.c,
		Loading:   !s.settled.IsSet(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.err != nil:
		st.Error = s.err.Error()
	case s.blocked != "":
		st.Error = s.blocked
	}

	return st
}

func (h *Host) active() *slot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

func (h *Host) isCurrent(s *slot) bool {
	return h.active() == s
}

// Mount starts initializing the current connector, once per instance.
func (h *Host) Mount(ctx context.Context) {
	h.active().mount(ctx, h)
}

func (h *Host) State() State {
	return h.active().state()
}

func (h *Host) Connector() connector.Connector {
	return h.active().c
}

// Ready waits until the open of the current connector settles and returns its error.
func (h *Host) Ready(ctx context.Context) error {
	s := h.active()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.err
	}
}

// Swap closes the current connector and mounts next.
// Swapping in the current instance only mounts it.
func (h *Host) Swap(ctx context.Context, next connector.Connector) error {
	h.mu.Lock()
	prev := h.current
	if prev.c == next {
		h.mu.Unlock()
		prev.mount(ctx, h)
		return nil
	}
	s := newSlot(next)
	h.current = s
	h.mu.Unlock()

	err := prev.close()
	s.mount(ctx, h)
	return err
}

// Unmount closes the current connector.
func (h *Host) Unmount() error {
	return h.active().close()
}

type contextKey struct{}

func InjectContext(ctx context.Context, h *Host) context.Context {
	return context.WithValue(ctx, contextKey{}, h)
}

func FromContext(ctx context.Context) (*Host, bool) {
	h, ok := ctx.Value(contextKey{}).(*Host)
	return h, ok
}
