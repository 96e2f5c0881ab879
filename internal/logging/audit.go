package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// AuditEventType names an audit event. Each maps to a Datalog predicate
// so the audit file can be loaded back as facts.
type AuditEventType string

const (
	// session_event/3
	AuditSessionStart AuditEventType = "session_start"
	AuditSessionEnd   AuditEventType = "session_end"

	// subject_event/4
	AuditSubjectAccepted AuditEventType = "subject_accepted"
	AuditSubjectRejected AuditEventType = "subject_rejected"

	// report_event/5
	AuditReport AuditEventType = "report"

	// query_event/5
	AuditQuery AuditEventType = "query"

	// error_event/4
	AuditErrorCritical AuditEventType = "error_critical"
)

// AuditEvent is one line of the audit file.
type AuditEvent struct {
	Timestamp  int64          `json:"ts"`
	EventType  AuditEventType `json:"event"`
	SessionID  string         `json:"session,omitempty"`
	RequestID  string         `json:"req,omitempty"`
	Target     string         `json:"target,omitempty"`
	Success    bool           `json:"success"`
	Count      int            `json:"count,omitempty"`
	DurationMs int64          `json:"dur_ms,omitempty"`
	Error      string         `json:"error,omitempty"`
	Fact       string         `json:"fact"`
}

var (
	auditFile *os.File
	auditMu   sync.Mutex
)

// InitAudit opens the audit file for this run. No-op outside debug mode.
func InitAudit() error {
	if !IsDebugMode() || logsDir == "" {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile != nil {
		return nil
	}

	path := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", runStamp, CategoryAudit))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file
	return nil
}

func closeAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// AuditLogger scopes audit events to one session.
type AuditLogger struct {
	sessionID string
}

// AuditWithSession returns an audit logger for the given session ID.
func AuditWithSession(sessionID string) *AuditLogger {
	return &AuditLogger{sessionID: sessionID}
}

// Log writes an event as a JSON line.
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
	event.Fact = AuditFact(event)

	data, err := json.Marshal(event)
	if err == nil {
		auditFile.Write(append(data, '\n'))
	}
}

// AuditFact renders an event as a Datalog fact.
func AuditFact(e AuditEvent) string {
	switch e.EventType {
	case AuditSessionStart, AuditSessionEnd:
		return fmt.Sprintf("session_event(%d, /%s, %q).", e.Timestamp, e.EventType, e.SessionID)
	case AuditSubjectAccepted, AuditSubjectRejected:
		return fmt.Sprintf("subject_event(%d, /%s, %q, %q).", e.Timestamp, e.EventType, e.SessionID, escapeString(e.Target))
	case AuditReport:
		return fmt.Sprintf("report_event(%d, %q, %q, %d, %d).", e.Timestamp, e.RequestID, escapeString(e.Target), e.Count, e.DurationMs)
	case AuditQuery:
		return fmt.Sprintf("query_event(%d, %q, %q, %d, %v).", e.Timestamp, e.RequestID, escapeString(e.Target), e.Count, e.Success)
	case AuditErrorCritical:
		return fmt.Sprintf("error_event(%d, /%s, %q, %q).", e.Timestamp, e.EventType, escapeString(e.Target), escapeString(e.Error))
	default:
		return fmt.Sprintf("audit_event(%d, /%s, %q).", e.Timestamp, e.EventType, escapeString(e.Target))
	}
}

// escapeString strips characters that %q would otherwise turn into Go-only escapes.
func escapeString(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return ' '
		}
		return r
	}, s)
}

// SessionStart records the start of an interactive session.
func (a *AuditLogger) SessionStart() {
	a.Log(AuditEvent{EventType: AuditSessionStart, Success: true})
}

// SessionEnd records the end of an interactive session.
func (a *AuditLogger) SessionEnd() {
	a.Log(AuditEvent{EventType: AuditSessionEnd, Success: true})
}

// Subject records whether an input named a known subject.
func (a *AuditLogger) Subject(input string, accepted bool) {
	ev := AuditSubjectRejected
	if accepted {
		ev = AuditSubjectAccepted
	}
	a.Log(AuditEvent{EventType: ev, Target: input, Success: accepted})
}

// Report records a completed subject report.
func (a *AuditLogger) Report(requestID, subject string, results int, d time.Duration) {
	a.Log(AuditEvent{
		EventType:  AuditReport,
		RequestID:  requestID,
		Target:     subject,
		Success:    true,
		Count:      results,
		DurationMs: d.Milliseconds(),
	})
}

// Query records one relation query.
func (a *AuditLogger) Query(requestID, goal string, results int, err error) {
	ev := AuditEvent{
		EventType: AuditQuery,
		RequestID: requestID,
		Target:    goal,
		Success:   err == nil,
		Count:     results,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	a.Log(ev)
}

// Critical records a failure that ended the program.
func (a *AuditLogger) Critical(op string, err error) {
	a.Log(AuditEvent{EventType: AuditErrorCritical, Target: op, Error: err.Error()})
}
