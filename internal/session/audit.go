package session

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// AuditEvent records one dispatched command's span, from the moment it
// was written to the PTY to the moment the session settled back to
// Online. Grounded on the teacher's inputAuditor/gzip audit writer
// (internal/egg/server.go), generalized from per-keystroke input
// auditing to per-dispatch span auditing — this domain cares about
// "how long did that command run", not every byte typed.
type AuditEvent struct {
	SessionID  string `json:"session_id"`
	Command    string `json:"command"`
	StartedAt  int64  `json:"started_at_unix_ms"`
	DurationMS int64  `json:"duration_ms"`
}

// auditSink serializes AuditEvents as newline-delimited JSON to w. Off
// by default; enabled by passing a non-nil writer to
// Registry.EnableAudit (wired from cmd/golutrad's --audit-dispatch-log
// flag via daemon.Config).
type auditSink struct {
	mu sync.Mutex
	w  io.Writer
}

func (a *auditSink) record(ev AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	data = append(data, '\n')
	_, _ = a.w.Write(data)
}

// EnableAudit turns on dispatch-span auditing, writing one JSON line per
// completed command to w. Disable by never calling this — the registry
// has no audit sink until one is set.
func (r *Registry) EnableAudit(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audit = &auditSink{w: w}
}

func (r *Registry) recordAudit(ev AuditEvent) {
	r.mu.Lock()
	sink := r.audit
	r.mu.Unlock()
	if sink != nil {
		sink.record(ev)
	}
}

func unixMS(t time.Time) int64 { return t.UnixMilli() }
