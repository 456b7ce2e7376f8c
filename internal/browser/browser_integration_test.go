//go:build integration

package browser_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pageready/internal/announce"
	"pageready/internal/browser"

	"github.com/stretchr/testify/require"
)

const announcerPage = `<!doctype html>
<html><head><script>
console.log("loaded main.js");
function ContentLoadedHandler(evt) { console.log("ContentLoadedHandler"); }
if (document.readyState === 'loading') {
  document.addEventListener('DOMContentLoaded', () => { console.log('DOMContentLoaded\n'); ContentLoadedHandler(); });
} else {
  console.log('DOMContentLoaded has already fired.\n'); ContentLoadedHandler();
}
</script><script src="/app.js"></script></head>
<body><h1>Hello</h1></body></html>`

func newManager(t *testing.T) (*browser.SessionManager, context.Context) {
	t.Helper()
	cfg := browser.DefaultConfig()
	cfg.Headless = true
	cfg.NavigationTimeoutMs = 10000
	cfg.ProbeTimeoutMs = 10000
	cfg.EventThrottleMs = 10

	sm := browser.NewSessionManager(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	t.Cleanup(cancel)
	t.Cleanup(func() {
		if err := sm.Shutdown(context.Background()); err != nil {
			t.Logf("Shutdown error: %v", err)
		}
	})
	require.NoError(t, sm.Start(ctx), "Failed to start browser")
	return sm, ctx
}

func TestSessionManager_OpenNavigateClose_Integration(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "<html><body><script>console.log('hi from', location.pathname)</script></body></html>")
	}))
	defer ts.Close()

	sm, ctx := newManager(t)

	session, err := sm.Open(ctx, ts.URL)
	require.NoError(t, err)
	require.NotEmpty(t, session.ID)

	console, ok := sm.Console(session.ID)
	require.True(t, ok)
	require.Eventually(t, func() bool {
		for _, l := range console.Lines() {
			if l == "hi from /" {
				return true
			}
		}
		return false
	}, 10*time.Second, 100*time.Millisecond, "console lines: %v", console.Lines())

	require.NoError(t, sm.Navigate(ctx, session.ID, ts.URL+"/page2"))
	require.Eventually(t, func() bool {
		s, _ := sm.GetSession(session.ID)
		return s.URL == ts.URL+"/page2"
	}, 10*time.Second, 100*time.Millisecond)

	require.NoError(t, sm.Close(session.ID))
	require.ErrorIs(t, sm.Close(session.ID), browser.ErrUnknownSession)
}

func TestSessionManager_Probe_Integration(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/app.js" {
			// hold the parser so the document is still loading when probed
			time.Sleep(300 * time.Millisecond)
			w.Header().Set("Content-Type", "text/javascript")
			fmt.Fprintln(w, "console.log('app ready')")
			return
		}
		fmt.Fprint(w, announcerPage)
	}))
	defer ts.Close()

	sm, ctx := newManager(t)

	res, err := sm.Probe(ctx, ts.URL, announce.WithRecheck())
	require.NoError(t, err)
	require.False(t, res.TimedOut)
	require.Equal(t, announce.MsgLoaded, res.Lines[0])
	require.Contains(t, res.Lines, announce.MsgHandler)
	require.Contains(t, res.ConsoleLines(), "loaded main.js")
	require.Contains(t, res.HTML, "<h1>Hello</h1>")

	var sawApp bool
	for _, r := range res.Requests {
		if r.URL == ts.URL+"/app.js" {
			sawApp = true
		}
	}
	require.True(t, sawApp, "requests: %v", res.Requests)
	require.Empty(t, sm.List(), "probe closes its session")
}
