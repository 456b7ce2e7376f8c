package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "pageready" {
		t.Errorf("expected Name=pageready, got %s", cfg.Name)
	}
	if cfg.Announce.Recheck {
		t.Error("expected recheck to be off by default")
	}
	if cfg.Scene.Balls != 7 {
		t.Errorf("expected Balls=7, got %d", cfg.Scene.Balls)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("PAGEREADY_ADDR", "")
	t.Setenv("PAGEREADY_DB", "")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Announce.Recheck = true
	cfg.Announce.InitialState = "complete"
	cfg.Server.Addr = ":9999"
	cfg.Scene.Seed = 42

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !loaded.Announce.Recheck {
		t.Error("expected recheck to survive a round trip")
	}
	if loaded.Announce.InitialState != "complete" {
		t.Errorf("expected InitialState=complete, got %s", loaded.Announce.InitialState)
	}
	if loaded.Server.Addr != ":9999" {
		t.Errorf("expected Addr=:9999, got %s", loaded.Server.Addr)
	}
	if loaded.Scene.Seed != 42 {
		t.Errorf("expected Seed=42, got %d", loaded.Scene.Seed)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("PAGEREADY_ADDR", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != DefaultConfig().Server.Addr {
		t.Errorf("expected default addr, got %s", cfg.Server.Addr)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("announce:\n  recheck: true\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Announce.Recheck {
		t.Error("expected recheck=true from file")
	}
	if cfg.Scene.Width != 800 {
		t.Errorf("expected default width 800, got %d", cfg.Scene.Width)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("announce: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestDurations(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.GetFireAfter(); got != 50*time.Millisecond {
		t.Errorf("GetFireAfter = %v", got)
	}
	if got := cfg.GetFrameDelay(); got != 25*time.Millisecond {
		t.Errorf("GetFrameDelay = %v", got)
	}

	cfg.Browser.ProbeTimeout = "not-a-duration"
	if got := cfg.GetProbeTimeout(); got != 10*time.Second {
		t.Errorf("expected fallback 10s, got %v", got)
	}
	cfg.Server.ShutdownTimeout = "2s"
	if got := cfg.GetShutdownTimeout(); got != 2*time.Second {
		t.Errorf("GetShutdownTimeout = %v", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		target error
	}{
		{"bad state", func(c *Config) { c.Announce.InitialState = "done" }, ErrInvalidState},
		{"negative balls", func(c *Config) { c.Scene.Balls = -1 }, ErrInvalidScene},
		{"tiny scene", func(c *Config) { c.Scene.Width = 100 }, ErrInvalidScene},
		{"bad max frames", func(c *Config) { c.Scene.MaxFrames = -2 }, ErrInvalidScene},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, tt.target) {
				t.Errorf("expected %v, got %v", tt.target, err)
			}
		})
	}

	t.Run("tiny scene without balls", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Scene.Width, cfg.Scene.Height, cfg.Scene.Balls = 10, 10, 0
		if err := cfg.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("bad log level", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Logging.Level = "loud"
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for log level")
		}
	})
}

func TestToBrowser(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Browser.Bin = "/usr/bin/chromium"
	cfg.Browser.Flags = []string{"--no-sandbox"}
	cfg.Browser.ProbeTimeout = "3s"

	bc := cfg.ToBrowser()
	if len(bc.Launch) != 2 || bc.Launch[0] != "/usr/bin/chromium" || bc.Launch[1] != "--no-sandbox" {
		t.Errorf("unexpected launch: %v", bc.Launch)
	}
	if bc.ProbeTimeoutMs != 3000 {
		t.Errorf("expected ProbeTimeoutMs=3000, got %d", bc.ProbeTimeoutMs)
	}
	if !bc.Headless {
		t.Error("expected headless")
	}
}

func TestLoggingConfig_IsCategoryEnabled(t *testing.T) {
	lc := LoggingConfig{}
	if lc.IsCategoryEnabled("boot") {
		t.Error("categories must be off when debug_mode is false")
	}
	lc.DebugMode = true
	if !lc.IsCategoryEnabled("boot") {
		t.Error("unlisted category should default to enabled")
	}
	lc.Categories = map[string]bool{"browser": false}
	if lc.IsCategoryEnabled("browser") {
		t.Error("browser should be disabled")
	}
}

func TestFindWorkspaceRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".pageready"), 0755); err != nil {
		t.Fatal(err)
	}
	deep := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(deep, 0755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(deep)

	got, err := FindWorkspaceRoot()
	if err != nil {
		t.Fatalf("FindWorkspaceRoot failed: %v", err)
	}
	want, _ := filepath.EvalSymlinks(root)
	got, _ = filepath.EvalSymlinks(got)
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
	if p := DefaultConfigPath(); filepath.Base(filepath.Dir(p)) != ".pageready" {
		t.Errorf("unexpected config path %s", p)
	}
}
