package logging

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// resetState drops every package-level logger and config between tests.
func resetState() {
	CloseAll()
	CloseAudit()
	loggersMu.Lock()
	loggers = make(map[Category]*Logger)
	loggersMu.Unlock()
	logsDir = ""
	workspace = ""
	configMu.Lock()
	config = loggingConfig{}
	logLevel = LevelInfo
	configMu.Unlock()
	auditLogger = nil
}

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	configDir := filepath.Join(dir, ".pageready")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
}

// TestAllCategoriesLog tests that all categories create log files when debug_mode is true
func TestAllCategoriesLog(t *testing.T) {
	tempDir := t.TempDir()
	writeConfig(t, tempDir, `
logging:
  level: debug
  debug_mode: true
  categories:
    boot: true
    announce: true
    host: true
    browser: true
    render: true
    server: true
    store: true
`)

	resetState()
	defer resetState()

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}
	if !IsDebugMode() {
		t.Error("Expected debug mode to be enabled")
	}

	for _, cat := range AllCategories() {
		if !IsCategoryEnabled(cat) {
			t.Errorf("Category %s should be enabled", cat)
		}
		logger := Get(cat)
		logger.Info("Test info message for %s", cat)
		logger.Debug("Test debug message for %s", cat)
		logger.Warn("Test warn message for %s", cat)
		logger.Error("Test error message for %s", cat)
	}

	Boot("Convenience boot log")
	Announce("Convenience announce log")
	Host("Convenience host log")
	Browser("Convenience browser log")
	Render("Convenience render log")
	Server("Convenience server log")
	Store("Convenience store log")

	CloseAll()

	logsPath := filepath.Join(tempDir, ".pageready", "logs")
	entries, err := os.ReadDir(logsPath)
	if err != nil {
		t.Fatalf("Failed to read logs dir: %v", err)
	}

	for _, cat := range AllCategories() {
		found := false
		for _, entry := range entries {
			if strings.HasSuffix(entry.Name(), "_"+string(cat)+".log") {
				found = true
				content, err := os.ReadFile(filepath.Join(logsPath, entry.Name()))
				if err != nil {
					t.Errorf("Failed to read log file for %s: %v", cat, err)
					continue
				}
				if len(content) == 0 {
					t.Errorf("Log file for %s is empty", cat)
				}
				break
			}
		}
		if !found {
			t.Errorf("No log file found for category: %s", cat)
		}
	}
}

// TestDebugModeDisabled tests that no logs are created when debug_mode is false
func TestDebugModeDisabled(t *testing.T) {
	tempDir := t.TempDir()
	writeConfig(t, tempDir, `
logging:
  level: debug
  debug_mode: false
  categories:
    boot: true
    announce: true
`)

	resetState()
	defer resetState()

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}
	if IsDebugMode() {
		t.Error("Expected debug mode to be disabled")
	}
	for _, cat := range AllCategories() {
		if IsCategoryEnabled(cat) {
			t.Errorf("Category %s should be disabled when debug_mode=false", cat)
		}
	}

	Boot("This should NOT be logged")
	Announce("This should NOT be logged")
	if Get(CategoryBoot).Enabled() {
		t.Error("boot logger should be a no-op")
	}
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(tempDir, ".pageready", "logs"))
	if err == nil && len(entries) > 0 {
		t.Errorf("Expected no log files in production mode, found %d", len(entries))
	}
}

// TestMissingConfig tests that a workspace without config logs nothing
func TestMissingConfig(t *testing.T) {
	tempDir := t.TempDir()
	resetState()
	defer resetState()

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if IsDebugMode() {
		t.Error("missing config must mean debug mode off")
	}
	if err := Initialize(""); err == nil {
		t.Error("expected error for empty workspace")
	}
}

// TestCategoryToggle tests individual category enable/disable
func TestCategoryToggle(t *testing.T) {
	tempDir := t.TempDir()
	writeConfig(t, tempDir, `
logging:
  level: debug
  debug_mode: true
  categories:
    boot: true
    announce: true
    browser: false
    render: false
`)

	resetState()
	defer resetState()

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Failed to initialize: %v", err)
	}

	if !IsCategoryEnabled(CategoryBoot) || !IsCategoryEnabled(CategoryAnnounce) {
		t.Error("boot and announce should be enabled")
	}
	if IsCategoryEnabled(CategoryBrowser) || IsCategoryEnabled(CategoryRender) {
		t.Error("browser and render should be disabled")
	}
	if !IsCategoryEnabled(CategoryServer) {
		t.Error("server (not in config) should default to enabled")
	}

	Boot("logged")
	Announce("logged")
	Browser("not logged")
	Render("not logged")
	Server("logged (default enabled)")
	CloseAll()

	entries, _ := os.ReadDir(filepath.Join(tempDir, ".pageready", "logs"))
	has := map[string]bool{}
	for _, e := range entries {
		for _, cat := range AllCategories() {
			if strings.HasSuffix(e.Name(), "_"+string(cat)+".log") {
				has[string(cat)] = true
			}
		}
	}
	for _, want := range []string{"boot", "announce", "server"} {
		if !has[want] {
			t.Errorf("Expected %s log file", want)
		}
	}
	for _, unwanted := range []string{"browser", "render"} {
		if has[unwanted] {
			t.Errorf("Should NOT have %s log file (disabled)", unwanted)
		}
	}
}

// TestLevelFilter tests that messages below the configured level are dropped
func TestLevelFilter(t *testing.T) {
	tempDir := t.TempDir()
	writeConfig(t, tempDir, "logging:\n  level: warn\n  debug_mode: true\n")

	resetState()
	defer resetState()

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	HostDebug("debug-line")
	Host("info-line")
	HostWarn("warn-line")
	CloseAll()

	data := readCategoryLog(t, tempDir, CategoryHost)
	if strings.Contains(data, "debug-line") || strings.Contains(data, "info-line") {
		t.Errorf("debug/info should be filtered at warn level:\n%s", data)
	}
	if !strings.Contains(data, "[WARN] warn-line") {
		t.Errorf("warn line missing:\n%s", data)
	}
}

// TestJSONFormat tests structured output and request ids
func TestJSONFormat(t *testing.T) {
	tempDir := t.TempDir()
	writeConfig(t, tempDir, "logging:\n  level: debug\n  debug_mode: true\n  json_format: true\n")

	resetState()
	defer resetState()

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	WithRequestID(CategoryServer, "req-42").WithField("path", "/main.wasm").Info("served")
	CloseAll()

	data := readCategoryLog(t, tempDir, CategoryServer)
	line := strings.TrimSpace(data[strings.Index(data, "{"):])
	var entry StructuredLogEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, line)
	}
	if entry.RequestID != "req-42" || entry.Message != "served" || entry.Category != "server" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.Fields["path"] != "/main.wasm" {
		t.Errorf("missing field: %+v", entry.Fields)
	}
}

// TestTimerLogging tests the timing helper
func TestTimerLogging(t *testing.T) {
	tempDir := t.TempDir()
	writeConfig(t, tempDir, "logging:\n  level: debug\n  debug_mode: true\n")

	resetState()
	defer resetState()
	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	timer := StartTimer(CategoryRender, "TestOperation")
	time.Sleep(time.Millisecond)
	if elapsed := timer.Stop(); elapsed <= 0 {
		t.Error("Timer should have recorded non-zero duration")
	}

	slow := StartTimer(CategoryRender, "SlowOperation")
	time.Sleep(2 * time.Millisecond)
	slow.StopWithThreshold(time.Nanosecond)
	CloseAll()

	if data := readCategoryLog(t, tempDir, CategoryRender); !strings.Contains(data, "SlowOperation took") {
		t.Errorf("expected threshold warning:\n%s", data)
	}
}

// TestAuditJournal tests that lifecycle events are written as JSON lines
func TestAuditJournal(t *testing.T) {
	tempDir := t.TempDir()
	writeConfig(t, tempDir, "logging:\n  debug_mode: true\n")

	resetState()
	defer resetState()
	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := InitAudit(); err != nil {
		t.Fatalf("InitAudit: %v", err)
	}

	Audit().PageLoad("http://localhost/", "loading")
	Audit().Subscribe("http://localhost/")
	AuditWithSession("s-1").ProbeComplete("http://localhost/", 15*time.Millisecond, false, nil)
	Audit().StoreSave("rec-1", errors.New("disk full"))
	CloseAudit()

	matches, _ := filepath.Glob(filepath.Join(tempDir, ".pageready", "logs", "*_audit.log"))
	if len(matches) != 1 {
		t.Fatalf("expected one audit file, got %v", matches)
	}
	f, err := os.Open(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var events []AuditEvent
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev AuditEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("bad audit line %q: %v", sc.Text(), err)
		}
		events = append(events, ev)
	}
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	if events[0].EventType != AuditPageLoad || events[0].Fields["state"] != "loading" {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	if events[1].EventType != AuditSubscribe || events[1].Target != "http://localhost/" {
		t.Errorf("unexpected subscribe event: %+v", events[1])
	}
	if events[2].SessionID != "s-1" || events[2].DurationMs != 15 || !events[2].Success {
		t.Errorf("unexpected probe event: %+v", events[2])
	}
	if events[3].Success || events[3].Error != "disk full" {
		t.Errorf("unexpected store event: %+v", events[3])
	}
}

// TestAuditDisabled tests that the journal is a no-op without debug mode
func TestAuditDisabled(t *testing.T) {
	resetState()
	defer resetState()

	if err := InitAudit(); err != nil {
		t.Fatalf("InitAudit: %v", err)
	}
	Audit().ServerStart(":8080")
	if auditFile != nil {
		t.Error("audit file must not be opened when debug mode is off")
	}
}

func readCategoryLog(t *testing.T, ws string, cat Category) string {
	t.Helper()
	matches, _ := filepath.Glob(filepath.Join(ws, ".pageready", "logs", "*_"+string(cat)+".log"))
	if len(matches) == 0 {
		t.Fatalf("no log file for %s", cat)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}
