// Package audit emits RFC 5424 syslog records for provisioning
// activity, to stdout and optionally to a messages table.
package audit

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Structured-data IDs carried by every event.
const (
	SDIDAuth    = "auth@58712"
	SDIDSubject = "subject@58712"
	SDIDAction  = "action@58712"
	SDIDClient  = "client@58712"
)

// FacilityAuthPriv is LOG_AUTHPRIV; all provisioning events log there.
const FacilityAuthPriv = 10

// Severity levels matching syslog (RFC 5424).
type Severity int

const (
	SeverityEmergency Severity = iota
	SeverityAlert
	SeverityCritical
	SeverityError
	SeverityWarning
	SeverityNotice
	SeverityInfo
	SeverityDebug
)

// Event represents an audit event.
type Event interface {
	MessageID() string
	Message() string
	Severity() Severity
	Facility() int
	StructuredData() map[string]map[string]string
}

// Logger writes events as RFC 5424 lines.
type Logger struct {
	writer   io.Writer
	hostname string
	appName  string
	pid      int
}

// NewLogger creates a logger writing to stdout.
func NewLogger() *Logger {
	hostname, _ := os.Hostname()
	return &Logger{
		writer:   os.Stdout,
		hostname: hostname,
		appName:  "cdh-core-api",
		pid:      os.Getpid(),
	}
}

// SetWriter sets the output writer for the logger.
func (l *Logger) SetWriter(w io.Writer) {
	l.writer = w
}

// Log writes one event:
// <PRI>VERSION TIMESTAMP HOSTNAME APP-NAME PROCID MSGID SD MSG
func (l *Logger) Log(event Event) {
	pri := event.Facility()*8 + int(event.Severity())
	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	sd := formatStructuredData(event.StructuredData())
	if sd == "" {
		sd = "-"
	}

	hostname := l.hostname
	if hostname == "" {
		hostname = "-"
	}

	logLine := fmt.Sprintf("<%d>1 %s %s %s %d %s %s %s\n",
		pri,
		timestamp,
		hostname,
		l.appName,
		l.pid,
		event.MessageID(),
		sd,
		event.Message(),
	)

	_, _ = l.writer.Write([]byte(logLine))
}

// formatStructuredData renders [sdid k1="v1" k2="v2"][sdid2 ...].
func formatStructuredData(sd map[string]map[string]string) string {
	if len(sd) == 0 {
		return ""
	}

	var parts []string
	for sdid, params := range sd {
		var paramParts []string
		paramParts = append(paramParts, sdid)
		for key, value := range params {
			escaped := escapeSDValue(value)
			paramParts = append(paramParts, fmt.Sprintf("%s=%s", key, escaped))
		}
		parts = append(parts, "["+strings.Join(paramParts, " ")+"]")
	}
	return strings.Join(parts, "")
}

// escapeSDValue escapes backslash, quote and closing bracket per RFC 5424.
func escapeSDValue(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	value = strings.ReplaceAll(value, "]", "\\]")
	return "\"" + value + "\""
}

// DefaultLogger is the process-wide logger used by Log.
var DefaultLogger = NewLogger()

// DefaultStore is the optional DB sink, nil when AUDIT_DATABASE_URL is unset.
var DefaultStore *Store

var (
	auditEnabled     = true
	auditEnabledOnce sync.Once
	storeInitOnce    sync.Once
)

// IsEnabled reports whether audit logging is on. CDH_AUDIT_ENABLED set
// to false, 0 or no turns it off.
func IsEnabled() bool {
	auditEnabledOnce.Do(func() {
		if env := os.Getenv("CDH_AUDIT_ENABLED"); env != "" {
			auditEnabled = env != "false" && env != "0" && env != "no"
		}
	})
	return auditEnabled
}

// Log writes an event to the default logger and, when configured, the store.
func Log(event Event) {
	if !IsEnabled() {
		return
	}
	DefaultLogger.Log(event)

	storeInitOnce.Do(func() {
		var err error
		DefaultStore, err = NewStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "audit: failed to connect to audit database: %v\n", err)
		}
	})

	if DefaultStore != nil {
		if err := DefaultStore.Save(event); err != nil {
			fmt.Fprintf(os.Stderr, "audit: failed to save event: %v\n", err)
		}
	}
}
