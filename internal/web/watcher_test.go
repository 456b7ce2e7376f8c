package web

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetWatcherBumpsVersion(t *testing.T) {
	dir := t.TempDir()
	aw := NewAssetWatcher(dir)
	aw.SetDebounce(10 * time.Millisecond)

	var hooked atomic.Uint64
	aw.OnReload(func(v uint64) { hooked.Store(v) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- aw.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, WasmFile), []byte("wasm"), 0644))

	require.Eventually(t, func() bool { return aw.Version() >= 1 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, aw.Version(), hooked.Load())
}

func TestAssetWatcherStopsOnCancel(t *testing.T) {
	aw := NewAssetWatcher(filepath.Join(t.TempDir(), "created"))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- aw.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
	assert.Zero(t, aw.Version())
}
