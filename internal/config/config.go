// Package config loads pageready's YAML configuration from
// .pageready/config.yaml with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"pageready/internal/browser"
)

var (
	// ErrInvalidState is returned for an announce.initial_state that is not a
	// document.readyState value.
	ErrInvalidState = errors.New("invalid ready state")
	// ErrInvalidScene is returned when the scene cannot hold its balls.
	ErrInvalidScene = errors.New("invalid scene geometry")
)

// Config holds all pageready configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Announce AnnounceConfig `yaml:"announce"`
	Browser  BrowserConfig  `yaml:"browser"`
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Scene    SceneConfig    `yaml:"scene"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// AnnounceConfig sets the announcer defaults used by simulate and probe.
type AnnounceConfig struct {
	// Recheck re-reads the ready state after subscribing.
	Recheck      bool   `yaml:"recheck"`
	InitialState string `yaml:"initial_state"` // loading, interactive, complete
	FireAfter    string `yaml:"fire_after"`
}

// BrowserConfig configures the go-rod session manager.
type BrowserConfig struct {
	DebuggerURL       string   `yaml:"debugger_url"`
	Bin               string   `yaml:"bin"`
	Flags             []string `yaml:"flags"`
	Headless          bool     `yaml:"headless"`
	ViewportWidth     int      `yaml:"viewport_width"`
	ViewportHeight    int      `yaml:"viewport_height"`
	NavigationTimeout string   `yaml:"navigation_timeout"`
	ProbeTimeout      string   `yaml:"probe_timeout"`
	SessionStore      string   `yaml:"session_store"`
	EventLoggingLevel string   `yaml:"event_logging_level"`
	EventThrottleMs   int      `yaml:"event_throttle_ms"`
}

// ServerConfig configures the page server.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	AssetsDir       string `yaml:"assets_dir"`
	Watch           bool   `yaml:"watch"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
	ReadTimeout     string `yaml:"read_timeout"`
}

// StoreConfig configures probe history.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// SceneConfig configures the bouncing-ball scene.
type SceneConfig struct {
	Width        int    `yaml:"width"`
	Height       int    `yaml:"height"`
	Balls        int    `yaml:"balls"`
	FrameDelay   string `yaml:"frame_delay"`
	MaxFrames    int    `yaml:"max_frames"` // -1 = unlimited
	CenterColumn bool   `yaml:"center_column"`
	Seed         uint64 `yaml:"seed"` // 0 = time based
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "pageready",
		Version: "0.3.0",

		Announce: AnnounceConfig{
			Recheck:      false,
			InitialState: "loading",
			FireAfter:    "50ms",
		},

		Browser: BrowserConfig{
			Headless:          true,
			ViewportWidth:     1280,
			ViewportHeight:    800,
			NavigationTimeout: "30s",
			ProbeTimeout:      "10s",
			EventLoggingLevel: "normal",
			EventThrottleMs:   100,
		},

		Server: ServerConfig{
			Addr:            "127.0.0.1:8080",
			AssetsDir:       "web",
			Watch:           true,
			ShutdownTimeout: "5s",
			ReadTimeout:     "10s",
		},

		Store: StoreConfig{
			DatabasePath: ".pageready/history.db",
		},

		Scene: SceneConfig{
			Width:      800,
			Height:     600,
			Balls:      7,
			FrameDelay: "25ms",
			MaxFrames:  -1,
		},

		Logging: LoggingConfig{
			Level:     "info",
			DebugMode: false,
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
// Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("PAGEREADY_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if dir := os.Getenv("PAGEREADY_ASSETS"); dir != "" {
		c.Server.AssetsDir = dir
	}
	if path := os.Getenv("PAGEREADY_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if bin := os.Getenv("PAGEREADY_BROWSER_BIN"); bin != "" {
		c.Browser.Bin = bin
	}
	if url := os.Getenv("PAGEREADY_DEBUGGER_URL"); url != "" {
		c.Browser.DebuggerURL = url
	}
	if v := os.Getenv("PAGEREADY_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Browser.Headless = b
		}
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// GetFireAfter returns the simulated content-loaded delay.
func (c *Config) GetFireAfter() time.Duration {
	return parseDuration(c.Announce.FireAfter, 50*time.Millisecond)
}

// GetNavigationTimeout returns the browser navigation timeout.
func (c *Config) GetNavigationTimeout() time.Duration {
	return parseDuration(c.Browser.NavigationTimeout, 30*time.Second)
}

// GetProbeTimeout returns how long a probe waits for the ready path.
func (c *Config) GetProbeTimeout() time.Duration {
	return parseDuration(c.Browser.ProbeTimeout, 10*time.Second)
}

// GetShutdownTimeout returns the server's graceful shutdown budget.
func (c *Config) GetShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 5*time.Second)
}

// GetReadTimeout returns the server's read header timeout.
func (c *Config) GetReadTimeout() time.Duration {
	return parseDuration(c.Server.ReadTimeout, 10*time.Second)
}

// GetFrameDelay returns the scene step interval.
func (c *Config) GetFrameDelay() time.Duration {
	return parseDuration(c.Scene.FrameDelay, 25*time.Millisecond)
}

// ToBrowser maps the browser section onto the session manager's config.
func (c *Config) ToBrowser() browser.Config {
	bc := browser.DefaultConfig()
	bc.DebuggerURL = c.Browser.DebuggerURL
	bc.Headless = c.Browser.Headless
	if c.Browser.Bin != "" {
		bc.Launch = append([]string{c.Browser.Bin}, c.Browser.Flags...)
	}
	if c.Browser.ViewportWidth > 0 {
		bc.ViewportWidth = c.Browser.ViewportWidth
	}
	if c.Browser.ViewportHeight > 0 {
		bc.ViewportHeight = c.Browser.ViewportHeight
	}
	bc.NavigationTimeoutMs = int(c.GetNavigationTimeout().Milliseconds())
	bc.ProbeTimeoutMs = int(c.GetProbeTimeout().Milliseconds())
	bc.SessionStore = c.Browser.SessionStore
	if c.Browser.EventLoggingLevel != "" {
		bc.EventLoggingLevel = c.Browser.EventLoggingLevel
	}
	if c.Browser.EventThrottleMs > 0 {
		bc.EventThrottleMs = c.Browser.EventThrottleMs
	}
	return bc
}

// ValidStates lists the accepted announce.initial_state values.
var ValidStates = []string{"loading", "interactive", "complete"}

// minSceneSide fits the largest ball with room to place it.
const minSceneSide = 2*60 + 2

// Validate validates the configuration.
func (c *Config) Validate() error {
	valid := false
	for _, s := range ValidStates {
		if c.Announce.InitialState == s {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%w: %q (valid: %v)", ErrInvalidState, c.Announce.InitialState, ValidStates)
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}

	if c.Scene.Balls < 0 {
		return fmt.Errorf("%w: balls=%d", ErrInvalidScene, c.Scene.Balls)
	}
	if c.Scene.Balls > 0 && (c.Scene.Width < minSceneSide || c.Scene.Height < minSceneSide) {
		return fmt.Errorf("%w: %dx%d is smaller than %dx%d", ErrInvalidScene, c.Scene.Width, c.Scene.Height, minSceneSide, minSceneSide)
	}
	if c.Scene.MaxFrames < -1 {
		return fmt.Errorf("%w: max_frames=%d", ErrInvalidScene, c.Scene.MaxFrames)
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	return nil
}

// DefaultConfigPath returns the config path under the workspace root.
func DefaultConfigPath() string {
	root, err := FindWorkspaceRoot()
	if err != nil {
		return filepath.Join(".pageready", "config.yaml")
	}
	return filepath.Join(root, ".pageready", "config.yaml")
}

// FindWorkspaceRoot walks up from the working directory looking for
// .pageready or go.mod. If neither is found it returns the working directory.
func FindWorkspaceRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	originalDir := dir
	for {
		if _, err := os.Stat(filepath.Join(dir, ".pageready")); err == nil {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return originalDir, nil
}
