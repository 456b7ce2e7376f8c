package announce

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterSinkAppendsNewline(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriterSink(&buf)
	s.Line(MsgLoaded)
	s.Line(MsgAlreadyFired)
	assert.Equal(t, "loaded main.js\nDOMContentLoaded has already fired.\n\n", buf.String())
}

func TestRecorderWaitFor(t *testing.T) {
	rec := NewRecorder()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, rec.WaitFor(ctx, MsgHandler))
	}()
	time.Sleep(time.Millisecond)
	rec.Line(MsgLoaded)
	rec.Line(MsgHandler)
	wg.Wait()

	// already recorded returns immediately
	require.NoError(t, rec.WaitFor(ctx, MsgLoaded))
}

func TestRecorderWaitForTimeout(t *testing.T) {
	rec := NewRecorder()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, rec.WaitFor(ctx, MsgHandler), context.DeadlineExceeded)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Empty(t, rec.waiters)
}

func TestRecorderResetAndCopy(t *testing.T) {
	rec := NewRecorder()
	rec.Line("a")
	lines := rec.Lines()
	lines[0] = "mutated"
	assert.Equal(t, []string{"a"}, rec.Lines())

	rec.Reset()
	assert.Empty(t, rec.Lines())
	assert.Zero(t, rec.Count("a"))
}

func TestTeeAndSinkFunc(t *testing.T) {
	rec := NewRecorder()
	var got []string
	tee := Tee{rec, SinkFunc(func(msg string) { got = append(got, msg) })}
	New(tee).Main()
	assert.Equal(t, []string{MsgEnterMain, MsgExitMain}, got)
	assert.Equal(t, got, rec.Lines())
}
