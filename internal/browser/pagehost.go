package browser

import (
	"context"
	"time"

	"pageready/internal/announce"
	"pageready/internal/logging"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// PageHost is an announce.Host over a live rod page. CurrentState evaluates
// document.readyState; OnReady waits for the next Page.domContentEventFired.
type PageHost struct {
	ctx  context.Context
	page *rod.Page
}

// NewPageHost binds page to ctx. Pending listeners are dropped when ctx ends.
func NewPageHost(ctx context.Context, page *rod.Page) *PageHost {
	return &PageHost{ctx: ctx, page: page}
}

// ReadyStateString returns the raw document.readyState value.
func (h *PageHost) ReadyStateString() (string, error) {
	res, err := h.page.Context(h.ctx).Evaluate(rod.Eval(`() => document.readyState`))
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

// CurrentState reports StateReady when the state cannot be read, so a dead
// page never leaves the announcer waiting.
func (h *PageHost) CurrentState() announce.ReadyState {
	s, err := h.ReadyStateString()
	if err != nil {
		logging.BrowserWarn("readyState evaluation failed: %v", err)
		return announce.StateReady
	}
	logging.BrowserDebug("document.readyState = %q", s)
	return announce.ParseReadyState(s)
}

// OnReady subscribes before returning, so an event fired right after the
// call is not missed. fn runs on a separate goroutine at most once.
func (h *PageHost) OnReady(fn func(evt *announce.Event)) {
	wait := h.page.Context(h.ctx).WaitEvent(&proto.PageDomContentEventFired{})
	go func() {
		wait()
		if h.ctx.Err() != nil {
			logging.BrowserDebug("%s listener dropped: %v", announce.EventContentLoaded, h.ctx.Err())
			return
		}
		fn(&announce.Event{Type: announce.EventContentLoaded, Timestamp: time.Now()})
	}()
}
