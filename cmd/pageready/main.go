// Command pageready drives the page-load announcer: in memory, in a real
// browser via go-rod, or as the wasm page it serves.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pageready/internal/config"
	"pageready/internal/logging"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string
	timeout    time.Duration

	logger *zap.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pageready",
	Short: "Announce page load progress and watch it happen",
	Long: `pageready reports the lifecycle of a page script: that it was loaded,
whether DOMContentLoaded already fired, and when the content-loaded handler ran.

It can simulate the document in memory, probe a real page through a headless
browser, or serve the bouncing-ball wasm page that runs the same announcer.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		// config init must be able to overwrite a broken file.
		return setup(cmd != configInitCmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAudit()
		logging.CloseAll()
	},
}

// setup resolves the workspace, loads config and starts file logging. With
// strict unset, an unreadable or invalid config falls back to defaults.
func setup(strict bool) error {
	if workspace == "" {
		root, err := config.FindWorkspaceRoot()
		if err != nil {
			return fmt.Errorf("failed to find workspace: %w", err)
		}
		workspace = root
	}
	if configPath == "" {
		configPath = filepath.Join(workspace, ".pageready", "config.yaml")
	}

	loaded, err := config.Load(configPath)
	if err == nil {
		err = loaded.Validate()
	}
	if err != nil {
		if strict {
			return fmt.Errorf("invalid config %s: %w", configPath, err)
		}
		logger.Warn("Ignoring invalid config", zap.String("path", configPath), zap.Error(err))
		loaded = config.DefaultConfig()
	}
	cfg = loaded

	if err := logging.Initialize(workspace); err != nil {
		logger.Warn("File logging unavailable", zap.Error(err))
	}
	if err := logging.InitAudit(); err != nil {
		logger.Warn("Audit journal unavailable", zap.Error(err))
	}
	logging.Boot("pageready %s started in %s", cfg.Version, workspace)
	logger.Debug("Configuration loaded", zap.String("path", configPath), zap.String("workspace", workspace))
	return nil
}

// workspacePath resolves p against the workspace unless it is absolute.
func workspacePath(p string) string {
	if p == "" || filepath.IsAbs(p) || p == ":memory:" {
		return p
	}
	return filepath.Join(workspace, p)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: nearest .pageready or go.mod)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <workspace>/.pageready/config.yaml)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")

	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(mainCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
