package web

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"pageready/internal/logging"
)

// AssetWatcher bumps a version counter whenever main.wasm changes in the
// asset dir. The version feeds ETags and the loader's cache-busting query.
type AssetWatcher struct {
	dir         string
	version     atomic.Uint64
	debounceDur time.Duration

	mu       sync.Mutex
	pending  map[string]time.Time
	onReload []func(version uint64)
}

// NewAssetWatcher returns a watcher for dir. It does nothing until Run.
func NewAssetWatcher(dir string) *AssetWatcher {
	return &AssetWatcher{
		dir:         dir,
		debounceDur: 200 * time.Millisecond,
		pending:     make(map[string]time.Time),
	}
}

// Version returns the current asset version. It starts at 0.
func (aw *AssetWatcher) Version() uint64 { return aw.version.Load() }

// OnReload registers fn to run after each version bump.
func (aw *AssetWatcher) OnReload(fn func(version uint64)) {
	aw.mu.Lock()
	aw.onReload = append(aw.onReload, fn)
	aw.mu.Unlock()
}

// SetDebounce changes how long a file must be quiet before it counts.
func (aw *AssetWatcher) SetDebounce(d time.Duration) {
	aw.mu.Lock()
	aw.debounceDur = d
	aw.mu.Unlock()
}

// Run watches until ctx is done. A missing directory is created.
func (aw *AssetWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := os.MkdirAll(aw.dir, 0755); err != nil {
		logging.ServerWarn("asset watcher: failed to create %s: %v", aw.dir, err)
	}
	if err := watcher.Add(aw.dir); err != nil {
		return err
	}
	logging.Server("asset watcher: watching %s", aw.dir)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.ServerDebug("asset watcher: stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			aw.handleEvent(event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.ServerError("asset watcher error: %v", err)

		case <-ticker.C:
			aw.flush()
		}
	}
}

func (aw *AssetWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Base(event.Name) != WasmFile {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}
	logging.ServerDebug("asset watcher: %s %s", event.Op, event.Name)

	aw.mu.Lock()
	aw.pending[event.Name] = time.Now()
	aw.mu.Unlock()
}

// flush bumps the version once per path that has settled.
func (aw *AssetWatcher) flush() {
	aw.mu.Lock()
	now := time.Now()
	var settled []string
	for path, at := range aw.pending {
		if now.Sub(at) >= aw.debounceDur {
			settled = append(settled, path)
			delete(aw.pending, path)
		}
	}
	hooks := append([]func(uint64){}, aw.onReload...)
	aw.mu.Unlock()

	for _, path := range settled {
		v := aw.version.Add(1)
		logging.Server("asset watcher: %s changed, version %d", filepath.Base(path), v)
		logging.Audit().AssetReload(path, v)
		for _, fn := range hooks {
			fn(v)
		}
	}
}
