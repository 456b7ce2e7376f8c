package browser

import (
	"sync"
	"time"
)

// ConsoleEntry is one console API call made by a page.
type ConsoleEntry struct {
	Type string    `json:"type"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// ConsoleRecorder collects Runtime.consoleAPICalled entries in arrival order.
type ConsoleRecorder struct {
	mu      sync.Mutex
	entries []ConsoleEntry
	notify  chan struct{}
}

// NewConsoleRecorder creates an empty recorder.
func NewConsoleRecorder() *ConsoleRecorder {
	return &ConsoleRecorder{notify: make(chan struct{})}
}

// Add appends an entry and wakes anyone waiting for new output.
func (c *ConsoleRecorder) Add(typ, text string) {
	c.mu.Lock()
	c.entries = append(c.entries, ConsoleEntry{Type: typ, Text: text, At: time.Now()})
	ch := c.notify
	c.notify = make(chan struct{})
	c.mu.Unlock()
	close(ch)
}

// Entries returns a copy of everything recorded.
func (c *ConsoleRecorder) Entries() []ConsoleEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ConsoleEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Lines returns the text of every entry.
func (c *ConsoleRecorder) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Text
	}
	return out
}

// Changed returns a channel closed on the next Add.
func (c *ConsoleRecorder) Changed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notify
}

// Request is a resource fetched by a page.
type Request struct {
	URL    string `json:"url"`
	Method string `json:"method"`
	Type   string `json:"type"`
}

type requestLog struct {
	mu   sync.Mutex
	reqs []Request
}

func (l *requestLog) add(r Request) {
	l.mu.Lock()
	l.reqs = append(l.reqs, r)
	l.mu.Unlock()
}

func (l *requestLog) list() []Request {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Request, len(l.reqs))
	copy(out, l.reqs)
	return out
}
