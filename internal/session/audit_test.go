package session

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestAdvanceQueueOnIdleReportsAuditEventWhenInflight(t *testing.T) {
	ts := newTestSession("s1", "m1")
	env := envelope("msg1", "alice", "echo hi")
	ts.inflight = &env

	ev, ok := ts.advanceQueueOnIdle()
	if !ok {
		t.Fatal("expected an audit event when an envelope was inflight")
	}
	if ev.SessionID != "s1" || ev.Command != "echo hi" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestAdvanceQueueOnIdleSkipsAuditEventWhenIdle(t *testing.T) {
	ts := newTestSession("s1", "m1")
	_, ok := ts.advanceQueueOnIdle()
	if ok {
		t.Fatal("expected no audit event when nothing was inflight")
	}
}

func TestEnableAuditWritesNDJSONLine(t *testing.T) {
	reg := newTestRegistry(nil)
	ts := newTestSession("s1", "m1")
	reg.sessions["s1"] = ts

	var buf bytes.Buffer
	reg.EnableAudit(&buf)

	reg.Dispatch("s1", envelope("msg1", "alice", "run tests"))
	if ev, ok := ts.advanceQueueOnIdle(); ok {
		reg.recordAudit(ev)
	}

	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected an audit line to be written")
	}
	var decoded AuditEvent
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("decode audit line: %v", err)
	}
	if decoded.Command != "run tests" {
		t.Fatalf("decoded.Command = %q, want %q", decoded.Command, "run tests")
	}
}
