package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType names a lifecycle event in the audit journal.
type AuditEventType string

const (
	// Announcer
	AuditPageLoad   AuditEventType = "page_load"
	AuditSubscribe  AuditEventType = "ready_subscribe"
	AuditReadyFired AuditEventType = "ready_fired"
	AuditRecheck    AuditEventType = "ready_recheck"

	// Browser sessions and probes
	AuditSessionOpen   AuditEventType = "session_open"
	AuditSessionClose  AuditEventType = "session_close"
	AuditProbeStart    AuditEventType = "probe_start"
	AuditProbeComplete AuditEventType = "probe_complete"
	AuditProbeTimeout  AuditEventType = "probe_timeout"

	// Page server
	AuditServerStart AuditEventType = "server_start"
	AuditServerStop  AuditEventType = "server_stop"
	AuditAssetReload AuditEventType = "asset_reload"

	// Persistence
	AuditStoreSave AuditEventType = "store_save"
)

// AuditEvent is one JSON line of the audit journal.
type AuditEvent struct {
	Timestamp  int64                  `json:"ts"`
	EventType  AuditEventType         `json:"event"`
	Category   string                 `json:"cat,omitempty"`
	SessionID  string                 `json:"session,omitempty"`
	Target     string                 `json:"target,omitempty"`
	Success    bool                   `json:"success"`
	DurationMs int64                  `json:"dur_ms,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Message    string                 `json:"msg,omitempty"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

var (
	auditFile   *os.File
	auditMu     sync.Mutex
	auditLogger *AuditLogger
)

// AuditLogger writes lifecycle events, optionally scoped to a session.
type AuditLogger struct {
	sessionID string
	category  Category
}

// InitAudit opens <date>_audit.log in the logs directory. No-op unless debug mode is on.
func InitAudit() error {
	if !IsDebugMode() || logsDir == "" {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil
	}

	date := time.Now().Format("2006-01-02")
	auditPath := filepath.Join(logsDir, fmt.Sprintf("%s_audit.log", date))

	file, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file
	return nil
}

// CloseAudit closes the audit log file
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit returns the global audit logger
func Audit() *AuditLogger {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditLogger == nil {
		auditLogger = &AuditLogger{}
	}
	return auditLogger
}

// AuditWithSession creates an audit logger scoped to a browser session
func AuditWithSession(sessionID string) *AuditLogger {
	return &AuditLogger{sessionID: sessionID, category: CategoryBrowser}
}

// Log writes an audit event
func (a *AuditLogger) Log(event AuditEvent) {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile == nil {
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.SessionID == "" {
		event.SessionID = a.sessionID
	}
	if event.Category == "" && a.category != "" {
		event.Category = string(a.category)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	auditFile.Write(append(data, '\n'))
}

// PageLoad records the ready state seen when the announcer loaded.
func (a *AuditLogger) PageLoad(target, state string) {
	a.Log(AuditEvent{
		EventType: AuditPageLoad,
		Category:  string(CategoryAnnounce),
		Target:    target,
		Success:   true,
		Fields:    map[string]interface{}{"state": state},
	})
}

// Subscribe records that a content-loaded listener was registered.
func (a *AuditLogger) Subscribe(target string) {
	a.Log(AuditEvent{
		EventType: AuditSubscribe,
		Category:  string(CategoryAnnounce),
		Target:    target,
		Success:   true,
	})
}

// ReadyFired records that a content-loaded listener ran.
func (a *AuditLogger) ReadyFired(target string, rechecked bool) {
	ev := AuditReadyFired
	if rechecked {
		ev = AuditRecheck
	}
	a.Log(AuditEvent{
		EventType: ev,
		Category:  string(CategoryAnnounce),
		Target:    target,
		Success:   true,
	})
}

// SessionOpen records a new browser session.
func (a *AuditLogger) SessionOpen(sessionID, url string) {
	a.Log(AuditEvent{
		EventType: AuditSessionOpen,
		SessionID: sessionID,
		Target:    url,
		Success:   true,
	})
}

// SessionClose records a closed browser session.
func (a *AuditLogger) SessionClose(sessionID string, err error) {
	a.Log(AuditEvent{
		EventType: AuditSessionClose,
		SessionID: sessionID,
		Success:   err == nil,
		Error:     errString(err),
	})
}

// ProbeComplete records the end of a probe. timedOut marks probes whose
// ready path never ran.
func (a *AuditLogger) ProbeComplete(url string, d time.Duration, timedOut bool, err error) {
	ev := AuditProbeComplete
	if timedOut {
		ev = AuditProbeTimeout
	}
	a.Log(AuditEvent{
		EventType:  ev,
		Category:   string(CategoryBrowser),
		Target:     url,
		Success:    err == nil && !timedOut,
		DurationMs: d.Milliseconds(),
		Error:      errString(err),
	})
}

// ServerStart records the listening address.
func (a *AuditLogger) ServerStart(addr string) {
	a.Log(AuditEvent{EventType: AuditServerStart, Category: string(CategoryServer), Target: addr, Success: true})
}

// ServerStop records shutdown and any error it produced.
func (a *AuditLogger) ServerStop(addr string, err error) {
	a.Log(AuditEvent{EventType: AuditServerStop, Category: string(CategoryServer), Target: addr, Success: err == nil, Error: errString(err)})
}

// AssetReload records a new asset version.
func (a *AuditLogger) AssetReload(path string, version uint64) {
	a.Log(AuditEvent{
		EventType: AuditAssetReload,
		Category:  string(CategoryServer),
		Target:    path,
		Success:   true,
		Fields:    map[string]interface{}{"version": version},
	})
}

// StoreSave records a persisted probe record.
func (a *AuditLogger) StoreSave(id string, err error) {
	a.Log(AuditEvent{EventType: AuditStoreSave, Category: string(CategoryStore), Target: id, Success: err == nil, Error: errString(err)})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
