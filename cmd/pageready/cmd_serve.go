package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pageready/internal/web"
)

var (
	serveAddr    string
	serveAssets  string
	serveNoWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the wasm page",
	Long: `Serves index.html with a canvas, wasm_exec.js and main.wasm from the assets
directory. Build the module with:

  GOOS=js GOARCH=wasm go build -o web/main.wasm ./cmd/pageready-wasm
  cp "$(go env GOROOT)/lib/wasm/wasm_exec.js" web/

The asset version bumps whenever main.wasm changes.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
	serveCmd.Flags().StringVar(&serveAssets, "assets", "", "Assets directory (default from config)")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Do not watch the assets directory")
}

func serverConfig() web.Config {
	wc := web.Config{
		Addr:            cfg.Server.Addr,
		AssetsDir:       workspacePath(cfg.Server.AssetsDir),
		Watch:           cfg.Server.Watch && !serveNoWatch,
		Width:           cfg.Scene.Width,
		Height:          cfg.Scene.Height,
		ShutdownTimeout: cfg.GetShutdownTimeout(),
		ReadTimeout:     cfg.GetReadTimeout(),
	}
	if serveAddr != "" {
		wc.Addr = serveAddr
	}
	if serveAssets != "" {
		wc.AssetsDir = serveAssets
	}
	return wc
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return web.NewServer(serverConfig(), logger).Run(ctx)
}
