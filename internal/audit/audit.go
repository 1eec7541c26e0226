// internal/audit/audit.go
// Append-only structured audit trail. One newline-delimited JSON record per
// event; writes are serialized and never fail the caller's request.
package audit

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event types.
const (
	TypeAPIRequest       = "api_request"
	TypePolicyDenial     = "policy_denial"
	TypePolicyWarning    = "policy_warning"
	TypeAuthEvent        = "auth_event"
	TypeTenantManagement = "tenant_management"
	TypeOperation        = "operation"
)

// Event is one immutable audit record.
type Event struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	EventType  string         `json:"event_type"`
	Action     string         `json:"action,omitempty"`
	Resource   string         `json:"resource,omitempty"`
	ResourceID string         `json:"resource_id,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	Username   string         `json:"username,omitempty"`
	TenantID   string         `json:"tenant_id,omitempty"`
	Method     string         `json:"method,omitempty"`
	Path       string         `json:"path,omitempty"`
	StatusCode int            `json:"status_code,omitempty"`
	DurationMS int64          `json:"duration_ms,omitempty"`
	IPAddress  string         `json:"ip_address,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Logger is the audit sink contract consumed by the admission pipeline.
type Logger interface {
	Log(event Event) error
	LogAuthEvent(eventType, userID, username, tenantID, details string) error
	LogTenantEvent(action, tenantID, actorUserID, details string) error
	LogOperationEvent(operation, resourceID, actorUserID, status string) error
	Close() error
}

// FileLogger appends NDJSON records to a single file. A logger constructed
// with an empty path is disabled: it accepts events and writes nothing.
type FileLogger struct {
	mu      sync.Mutex
	file    *os.File
	enabled bool
	errLog  zerolog.Logger
}

func NewFileLogger(path string) (*FileLogger, error) {
	l := &FileLogger{
		errLog: zerolog.New(os.Stderr).With().Timestamp().Str("component", "audit").Logger(),
	}
	if path == "" {
		return l, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, err
	}
	l.file = f
	l.enabled = true
	return l, nil
}

// Enabled reports whether the sink has a write target.
func (l *FileLogger) Enabled() bool { return l.enabled }

// Log appends one record. The sink owns the timestamp (UTC, millisecond
// precision) and the event id. Sink failures are reported to stderr and
// returned, but callers must not fail their request on them.
func (l *FileLogger) Log(event Event) error {
	if !l.enabled {
		return nil
	}

	event.ID = uuid.NewString()
	event.Timestamp = time.Now().UTC().Truncate(time.Millisecond)

	line, err := json.Marshal(event)
	if err != nil {
		l.errLog.Error().Err(err).Str("event_type", event.EventType).Msg("audit encode failed")
		return err
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(line); err != nil {
		l.errLog.Error().Err(err).Str("event_type", event.EventType).Msg("audit write failed")
		return err
	}
	return nil
}

func (l *FileLogger) LogAuthEvent(eventType, userID, username, tenantID, details string) error {
	return l.Log(Event{
		EventType: TypeAuthEvent,
		Action:    eventType,
		Resource:  "auth",
		UserID:    userID,
		Username:  username,
		TenantID:  tenantID,
		Metadata:  map[string]any{"details": details},
	})
}

func (l *FileLogger) LogTenantEvent(action, tenantID, actorUserID, details string) error {
	return l.Log(Event{
		EventType:  TypeTenantManagement,
		Action:     action,
		Resource:   "tenant",
		ResourceID: tenantID,
		TenantID:   tenantID,
		UserID:     actorUserID,
		Metadata:   map[string]any{"details": details},
	})
}

func (l *FileLogger) LogOperationEvent(operation, resourceID, actorUserID, status string) error {
	return l.Log(Event{
		EventType:  TypeOperation,
		Action:     operation,
		Resource:   "operation",
		ResourceID: resourceID,
		UserID:     actorUserID,
		Metadata:   map[string]any{"status": status},
	})
}

func (l *FileLogger) Close() error {
	if !l.enabled {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
