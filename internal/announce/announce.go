// Package announce implements the page-load announcer: a fixed "loaded"
// line on load, an inert main() that logs entry and exit, and a one-shot
// content-loaded path that runs either immediately or when the host document
// finishes loading.
//
// The host document and the output channel are injected so the announcer can
// be driven by a real browser (syscall/js or go-rod) or by an in-memory double.
package announce

import (
	"sync"
	"time"

	"pageready/internal/logging"
)

// The five lines an announcer can emit.
const (
	MsgLoaded        = "loaded main.js"
	MsgEnterMain     = "enter main()"
	MsgExitMain      = "exit main()"
	MsgHandler       = "ContentLoadedHandler"
	MsgContentLoaded = "DOMContentLoaded\n"
	MsgAlreadyFired  = "DOMContentLoaded has already fired.\n"
)

// EventContentLoaded is the name of the one-shot host occurrence.
const EventContentLoaded = "DOMContentLoaded"

// ReadyState is the host-reported document load progress. Only loading versus
// everything else matters.
type ReadyState int

const (
	StateLoading ReadyState = iota
	StateReady
)

// ParseReadyState maps a document.readyState string. "loading" is the only
// value that maps to StateLoading.
func ParseReadyState(s string) ReadyState {
	if s == "loading" {
		return StateLoading
	}
	return StateReady
}

func (s ReadyState) String() string {
	if s == StateLoading {
		return "loading"
	}
	return "ready"
}

// Event is the payload a host hands to a ready listener.
type Event struct {
	Type      string
	Timestamp time.Time
}

// Host is the document capability the announcer depends on.
type Host interface {
	CurrentState() ReadyState
	// OnReady registers fn for the next content-loaded occurrence. The host
	// invokes fn at most once per registration.
	OnReady(fn func(evt *Event))
}

// Sink is the line-oriented output channel.
type Sink interface {
	Line(msg string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(msg string)

func (f SinkFunc) Line(msg string) { f(msg) }

// Outcome reports which branch Load took.
type Outcome struct {
	InitialState ReadyState
	Subscribed   bool
	// Rechecked is set when WithRecheck found the document already past
	// loading right after subscribing and ran the ready path itself.
	Rechecked bool
}

// Option configures an Announcer.
type Option func(*Announcer)

// WithRecheck closes the check-then-subscribe window: after registering the
// listener the state is read again and, if loading already finished, the
// ready path runs immediately. The ready path still runs at most once.
func WithRecheck() Option {
	return func(a *Announcer) { a.recheck = true }
}

// WithTarget labels audit events with the page the announcer runs against.
func WithTarget(url string) Option {
	return func(a *Announcer) { a.target = url }
}

// Announcer emits the page-load lines to a Sink.
type Announcer struct {
	sink    Sink
	recheck bool
	target  string
}

// New creates an announcer writing to sink.
func New(sink Sink, opts ...Option) *Announcer {
	a := &Announcer{sink: sink}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Load is the script-evaluation entry point. It emits MsgLoaded and then
// evaluates the ready-state branch exactly once.
func (a *Announcer) Load(host Host) Outcome {
	a.sink.Line(MsgLoaded)

	state := host.CurrentState()
	out := Outcome{InitialState: state}
	logging.AnnounceDebug("load: initial ready state %s", state)
	logging.Audit().PageLoad(a.target, state.String())

	if state != StateLoading {
		a.sink.Line(MsgAlreadyFired)
		a.ContentLoadedHandler(nil)
		return out
	}

	var once sync.Once
	ready := func(rechecked bool) {
		once.Do(func() {
			logging.Audit().ReadyFired(a.target, rechecked)
			a.sink.Line(MsgContentLoaded)
			a.ContentLoadedHandler(nil)
		})
	}

	host.OnReady(func(evt *Event) {
		logging.AnnounceDebug("load: %s listener fired", EventContentLoaded)
		ready(false)
	})
	out.Subscribed = true
	logging.Audit().Subscribe(a.target)

	if a.recheck && host.CurrentState() != StateLoading {
		logging.Announce("load: document finished loading during subscription, running ready path")
		out.Rechecked = true
		ready(true)
	}
	return out
}

// Main logs entry and exit. Nothing calls it implicitly.
func (a *Announcer) Main() {
	a.sink.Line(MsgEnterMain)
	a.sink.Line(MsgExitMain)
}

// ContentLoadedHandler emits MsgHandler. evt is accepted for parity with DOM
// listeners and is not read.
func (a *Announcer) ContentLoadedHandler(evt *Event) {
	a.sink.Line(MsgHandler)
}
