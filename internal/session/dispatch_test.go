package session

import (
	"testing"

	"github.com/golutra/golutra/internal/dispatch"
	"github.com/golutra/golutra/internal/ptyspawn"
)

type fakeDND struct{ who string }

func (f fakeDND) IsDoNotDisturb(memberID string) bool { return memberID == f.who }

func newTestSession(id, memberID string) *TerminalSession {
	return newTerminalSession(id, memberID, "conv1", ptyspawn.TypeShell, "/tmp", 24, 80)
}

func newTestRegistry(dnd DNDChecker) *Registry {
	return &Registry{
		sessions:        make(map[string]*TerminalSession),
		memberSessions:  make(map[string]string),
		workingSessions: make(map[string]bool),
		dnd:             dnd,
	}
}

func envelope(msgID, senderID, text string) dispatch.Envelope {
	return dispatch.Envelope{
		Context:           dispatch.Context{MessageID: msgID, ConversationID: "conv1", ConversationType: "channel", SenderID: senderID, SenderName: senderID},
		Text:              text,
		BatchedMessageIDs: []string{msgID},
	}
}

func TestDispatchImmediateWhenIdle(t *testing.T) {
	reg := newTestRegistry(nil)
	ts := newTestSession("s1", "m1")
	reg.sessions["s1"] = ts

	outcome := reg.Dispatch("s1", envelope("msg1", "alice", "hello"))
	if outcome != dispatch.OutcomeDispatched {
		t.Fatalf("outcome = %v, want dispatched", outcome)
	}
	if ts.Status() != StatusWorking {
		t.Fatalf("status = %v, want working", ts.Status())
	}
}

func TestDispatchSkipsDnd(t *testing.T) {
	reg := newTestRegistry(fakeDND{who: "m1"})
	ts := newTestSession("s1", "m1")
	reg.sessions["s1"] = ts

	outcome := reg.Dispatch("s1", envelope("msg1", "alice", "hello"))
	if outcome != dispatch.OutcomeSkippedDnd {
		t.Fatalf("outcome = %v, want skipped_dnd", outcome)
	}
}

func TestDispatchDuplicateIsDropped(t *testing.T) {
	reg := newTestRegistry(nil)
	ts := newTestSession("s1", "m1")
	reg.sessions["s1"] = ts

	reg.Dispatch("s1", envelope("msg1", "alice", "hello"))
	outcome := reg.Dispatch("s1", envelope("msg1", "alice", "hello again"))
	if outcome != dispatch.OutcomeDuplicate {
		t.Fatalf("outcome = %v, want duplicate", outcome)
	}
}

func TestDispatchQueuesWhileWorking(t *testing.T) {
	reg := newTestRegistry(nil)
	ts := newTestSession("s1", "m1")
	reg.sessions["s1"] = ts

	reg.Dispatch("s1", envelope("msg1", "alice", "first"))
	outcome := reg.Dispatch("s1", envelope("msg2", "bob", "second"))
	if outcome != dispatch.OutcomeQueued {
		t.Fatalf("outcome = %v, want queued", outcome)
	}
	if ts.QueueDepth() != 1 {
		t.Fatalf("queue depth = %d, want 1", ts.QueueDepth())
	}
}

func TestDispatchMergesSameSenderWhileQueued(t *testing.T) {
	reg := newTestRegistry(nil)
	ts := newTestSession("s1", "m1")
	reg.sessions["s1"] = ts

	reg.Dispatch("s1", envelope("msg1", "alice", "first"))
	reg.Dispatch("s1", envelope("msg2", "bob", "second"))
	reg.Dispatch("s1", envelope("msg3", "bob", "third"))

	if ts.QueueDepth() != 1 {
		t.Fatalf("queue depth = %d, want 1 (merged)", ts.QueueDepth())
	}
	ts.mu.Lock()
	merged := ts.queue[0]
	ts.mu.Unlock()
	if merged.Text != "second\n\nthird" {
		t.Fatalf("merged text = %q", merged.Text)
	}
	if len(merged.BatchedMessageIDs) != 2 {
		t.Fatalf("merged ids = %v", merged.BatchedMessageIDs)
	}
}

func TestDispatchQueueDropsOldestWhenFull(t *testing.T) {
	reg := newTestRegistry(nil)
	ts := newTestSession("s1", "m1")
	reg.sessions["s1"] = ts

	reg.Dispatch("s1", envelope("msg0", "alice", "busy"))
	for i := 0; i < dispatch.MaxQueueSize+5; i++ {
		reg.Dispatch("s1", envelope(idFor(i), "u"+idFor(i), "payload"))
	}
	if ts.QueueDepth() != dispatch.MaxQueueSize {
		t.Fatalf("queue depth = %d, want capped at %d", ts.QueueDepth(), dispatch.MaxQueueSize)
	}
}

func idFor(i int) string {
	return "m" + string(rune('a'+i%26)) + string(rune('0'+i/26))
}

func TestAdvanceQueueOnIdleDispatchesNext(t *testing.T) {
	reg := newTestRegistry(nil)
	ts := newTestSession("s1", "m1")
	reg.sessions["s1"] = ts

	reg.Dispatch("s1", envelope("msg1", "alice", "first"))
	reg.Dispatch("s1", envelope("msg2", "bob", "second"))

	ts.advanceQueueOnIdle()

	if ts.QueueDepth() != 0 {
		t.Fatalf("queue depth after advance = %d, want 0", ts.QueueDepth())
	}
	if ts.Status() != StatusWorking {
		t.Fatalf("status after advance = %v, want working (next envelope dispatched)", ts.Status())
	}
}
