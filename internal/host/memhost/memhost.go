// Package memhost is an in-memory document host. Tests and the simulate
// command use it to drive the announcer through every branch, including the
// check-then-subscribe race.
package memhost

import (
	"context"
	"sync"
	"time"

	"pageready/internal/announce"
	"pageready/internal/logging"
)

// Option configures a Host.
type Option func(*Host)

// WithTransitionOnSubscribe makes the document finish loading while the first
// listener is being registered. The listener is recorded but never invoked,
// which is what a real document does when the event already went by.
func WithTransitionOnSubscribe() Option {
	return func(h *Host) { h.transitionOnSubscribe = true }
}

// Host is a concurrency-safe announce.Host.
type Host struct {
	mu                    sync.Mutex
	state                 announce.ReadyState
	pending               []func(*announce.Event)
	subscriptions         int
	fired                 bool
	transitionOnSubscribe bool
	now                   func() time.Time
}

// New returns a host in the given state.
func New(state announce.ReadyState, opts ...Option) *Host {
	h := &Host{state: state, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Host) CurrentState() announce.ReadyState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Host) OnReady(fn func(evt *announce.Event)) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.subscriptions++
	if h.transitionOnSubscribe && h.state == announce.StateLoading {
		// The event fires just before the listener lands.
		h.state = announce.StateReady
		h.fired = true
		h.transitionOnSubscribe = false
		logging.HostDebug("memhost: document finished loading during subscribe, listener will not run")
		return
	}
	if h.fired {
		logging.HostDebug("memhost: listener registered after %s, it will never run", announce.EventContentLoaded)
		return
	}
	h.pending = append(h.pending, fn)
}

// SetState changes the reported state without firing listeners.
func (h *Host) SetState(s announce.ReadyState) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// Fire moves the document to StateReady and runs every pending listener once.
// A document fires at most once; later calls return 0.
func (h *Host) Fire() int {
	h.mu.Lock()
	if h.fired {
		h.mu.Unlock()
		return 0
	}
	h.fired = true
	h.state = announce.StateReady
	fns := h.pending
	h.pending = nil
	ts := h.now()
	h.mu.Unlock()

	logging.Host("memhost: firing %s to %d listener(s)", announce.EventContentLoaded, len(fns))
	for _, fn := range fns {
		fn(&announce.Event{Type: announce.EventContentLoaded, Timestamp: ts})
	}
	return len(fns)
}

// FireAfter fires after d unless ctx is done first. The channel receives the
// number of listeners run (0 on cancellation) and is then closed.
func (h *Host) FireAfter(ctx context.Context, d time.Duration) <-chan int {
	out := make(chan int, 1)
	go func() {
		defer close(out)
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			out <- h.Fire()
		case <-ctx.Done():
			out <- 0
		}
	}()
	return out
}

// Subscriptions is the number of OnReady calls seen.
func (h *Host) Subscriptions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.subscriptions
}

// Pending is the number of listeners waiting for Fire.
func (h *Host) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

// Fired reports whether the content-loaded event already happened.
func (h *Host) Fired() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fired
}
