package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pageready/internal/announce"
	"pageready/internal/logging"
)

// ProbeResult is what the announcer observed on a live page.
type ProbeResult struct {
	URL          string
	SessionID    string
	InitialState announce.ReadyState
	Subscribed   bool
	Rechecked    bool
	// TimedOut is set when the ready path had not run by the probe timeout.
	TimedOut  bool
	Lines     []string
	Console   []ConsoleEntry
	Requests  []Request
	HTML      string
	StartedAt time.Time
	Duration  time.Duration
}

// ConsoleLines returns the text of every console entry.
func (r *ProbeResult) ConsoleLines() []string {
	out := make([]string, len(r.Console))
	for i, e := range r.Console {
		out[i] = e.Text
	}
	return out
}

// Probe opens url in a fresh session and runs the announcer against it while
// it loads. The ready-state check happens right after navigation commits, so
// depending on page size either branch can be taken. The session is closed
// before returning.
func (m *SessionManager) Probe(ctx context.Context, url string, opts ...announce.Option) (*ProbeResult, error) {
	start := time.Now()
	timer := logging.StartTimer(logging.CategoryBrowser, "probe "+url)
	defer timer.StopWithThreshold(m.cfg.ProbeTimeout())

	sess, err := m.Open(ctx, "about:blank")
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if err := m.Close(sess.ID); err != nil {
			logging.BrowserWarn("[session:%s] close: %v", sess.ID, err)
		}
	}()

	page, ok := m.Page(sess.ID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, sess.ID)
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout())
	defer cancel()

	logging.AuditWithSession(sess.ID).Log(logging.AuditEvent{EventType: logging.AuditProbeStart, Target: url, Success: true})
	if err := m.Navigate(probeCtx, sess.ID, url); err != nil {
		return nil, err
	}

	rec := announce.NewRecorder()
	host := NewPageHost(probeCtx, page)
	opts = append(opts, announce.WithTarget(url))
	out := announce.New(rec, opts...).Load(host)

	res := &ProbeResult{
		URL:          url,
		SessionID:    sess.ID,
		InitialState: out.InitialState,
		Subscribed:   out.Subscribed,
		Rechecked:    out.Rechecked,
		StartedAt:    start,
	}

	if err := rec.WaitFor(probeCtx, announce.MsgHandler); err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		res.TimedOut = true
		logging.BrowserWarn("probe %s: ready path did not run within %v", url, m.cfg.ProbeTimeout())
	}

	res.Lines = rec.Lines()
	if c, ok := m.Console(sess.ID); ok {
		res.Console = c.Entries()
	}
	res.Requests = m.Requests(sess.ID)
	if html, err := page.Context(ctx).HTML(); err == nil {
		res.HTML = html
	} else {
		logging.BrowserDebug("probe %s: html: %v", url, err)
	}
	res.Duration = time.Since(start)

	logging.AuditWithSession(sess.ID).ProbeComplete(url, res.Duration, res.TimedOut, nil)
	logging.Browser("probe %s: state=%s subscribed=%v rechecked=%v lines=%d console=%d",
		url, res.InitialState, res.Subscribed, res.Rechecked, len(res.Lines), len(res.Console))
	return res, nil
}
