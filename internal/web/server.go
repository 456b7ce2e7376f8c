// Package web serves the pageready page: the canvas document, the Go wasm
// support script and the compiled module.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pageready/internal/logging"
)

//go:embed index.html loader.js
var pageFS embed.FS

var indexTmpl = template.Must(template.ParseFS(pageFS, "index.html"))

const (
	WasmFile    = "main.wasm"
	WasmExecJS  = "wasm_exec.js"
	CanvasID    = "screen"
	wasmMIME    = "application/wasm"
	requestIDHd = "X-Request-ID"
)

// Config configures a Server.
type Config struct {
	Addr            string
	AssetsDir       string
	Watch           bool
	Width, Height   int
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
}

// Server serves the page and its assets.
type Server struct {
	cfg     Config
	log     *zap.Logger
	watcher *AssetWatcher
	started time.Time

	mu       sync.Mutex
	addr     net.Addr
	listenCh chan struct{}
}

// NewServer returns a server for cfg. A nil logger is replaced by zap.NewNop.
func NewServer(cfg Config, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Width <= 0 {
		cfg.Width = 800
	}
	if cfg.Height <= 0 {
		cfg.Height = 600
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	return &Server{
		cfg:      cfg,
		log:      log,
		watcher:  NewAssetWatcher(cfg.AssetsDir),
		started:  time.Now(),
		listenCh: make(chan struct{}),
	}
}

// Watcher returns the asset watcher backing the version counter.
func (s *Server) Watcher() *AssetWatcher { return s.watcher }

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /loader.js", s.handleLoader)
	mux.HandleFunc("GET /"+WasmExecJS, s.handleAsset(WasmExecJS, "text/javascript; charset=utf-8"))
	mux.HandleFunc("GET /"+WasmFile, s.handleAsset(WasmFile, wasmMIME))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	return RequestLogger(s.log, mux)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	data := struct {
		CanvasID      string
		Width, Height int
		Version       uint64
	}{CanvasID, s.cfg.Width, s.cfg.Height, s.watcher.Version()}
	if err := indexTmpl.Execute(w, data); err != nil {
		logging.ServerError("index render failed: %v", err)
	}
}

func (s *Server) handleLoader(w http.ResponseWriter, r *http.Request) {
	data, err := pageFS.ReadFile("loader.js")
	if err != nil {
		http.Error(w, "loader missing", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Write(data)
}

// handleAsset serves name from the asset dir with a version ETag.
func (s *Server) handleAsset(name, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(s.cfg.AssetsDir, name)
		f, err := os.Open(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				logging.ServerWarn("asset %s not found in %s", name, s.cfg.AssetsDir)
				http.NotFound(w, r)
				return
			}
			http.Error(w, "asset unavailable", http.StatusInternalServerError)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			http.Error(w, "asset unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("ETag", s.etag(info))
		http.ServeContent(w, r, name, info.ModTime(), f)
	}
}

// etag changes whenever the file is rewritten, watched or not.
func (s *Server) etag(info os.FileInfo) string {
	return fmt.Sprintf(`"v%d-%x-%x"`, s.watcher.Version(), info.ModTime().UnixNano(), info.Size())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime_ms": time.Since(s.started).Milliseconds(),
	})
}

// handleReady reports ready once main.wasm is present in the asset dir.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"asset_version": s.watcher.Version()}
	if _, err := os.Stat(filepath.Join(s.cfg.AssetsDir, WasmFile)); err != nil {
		body["status"] = "missing " + WasmFile
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	body["status"] = "ready"
	writeJSON(w, http.StatusOK, body)
}

// Addr blocks until the server is listening or ctx is done.
func (s *Server) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case <-s.listenCh:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.addr, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully. The asset
// watcher runs alongside when Watch is set.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()
	close(s.listenCh)

	addr := ln.Addr().String()
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadTimeout,
	}

	logging.Server("page server listening on %s (assets %s)", addr, s.cfg.AssetsDir)
	s.log.Info("Serving page", zap.String("addr", addr), zap.String("assets", s.cfg.AssetsDir))
	logging.Audit().ServerStart(addr)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	if s.cfg.Watch {
		g.Go(func() error {
			return s.watcher.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		logging.ServerDebug("shutting down page server on %s", addr)
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logging.Audit().ServerStop(addr, err)
	if err != nil {
		logging.ServerError("page server stopped: %v", err)
		return err
	}
	logging.Server("page server stopped")
	return nil
}
