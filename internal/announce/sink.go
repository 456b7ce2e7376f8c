package announce

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// WriterSink writes each line to w followed by a newline. Lines that already
// end in "\n" therefore produce an empty line after them, as a console would.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink returns a sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Line(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, msg)
}

// Recorder keeps every emitted line in order. It is safe for concurrent use
// and can block until a particular line shows up.
type Recorder struct {
	mu      sync.Mutex
	lines   []string
	waiters []recorderWaiter
}

type recorderWaiter struct {
	msg string
	ch  chan struct{}
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Line(msg string) {
	r.mu.Lock()
	r.lines = append(r.lines, msg)
	kept := r.waiters[:0]
	var ready []chan struct{}
	for _, w := range r.waiters {
		if w.msg == msg {
			ready = append(ready, w.ch)
			continue
		}
		kept = append(kept, w)
	}
	r.waiters = kept
	r.mu.Unlock()

	for _, ch := range ready {
		close(ch)
	}
}

// Lines returns a copy of the recorded lines.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// Count returns how many times msg was recorded.
func (r *Recorder) Count(msg string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, l := range r.lines {
		if l == msg {
			n++
		}
	}
	return n
}

// Reset drops recorded lines. Pending waiters are kept.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.lines = nil
	r.mu.Unlock()
}

// WaitFor blocks until msg has been recorded at least once or ctx is done.
func (r *Recorder) WaitFor(ctx context.Context, msg string) error {
	r.mu.Lock()
	for _, l := range r.lines {
		if l == msg {
			r.mu.Unlock()
			return nil
		}
	}
	ch := make(chan struct{})
	r.waiters = append(r.waiters, recorderWaiter{msg: msg, ch: ch})
	r.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		r.dropWaiter(ch)
		return ctx.Err()
	}
}

func (r *Recorder) dropWaiter(ch chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, w := range r.waiters {
		if w.ch == ch {
			r.waiters = append(r.waiters[:i], r.waiters[i+1:]...)
			return
		}
	}
}

// Tee fans each line out to every sink in order.
type Tee []Sink

func (t Tee) Line(msg string) {
	for _, s := range t {
		s.Line(msg)
	}
}
