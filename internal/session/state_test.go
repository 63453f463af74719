package session

import (
	"testing"
	"time"
)

func TestNoteShellReadyMovesConnectingToOnline(t *testing.T) {
	ts := newTestSession("s1", "m1")
	if ts.Status() != StatusConnecting {
		t.Fatalf("initial status = %v, want connecting", ts.Status())
	}
	ts.noteShellReady()
	if ts.Status() != StatusOnline {
		t.Fatalf("status after shell ready = %v, want online", ts.Status())
	}
}

func TestIdleCheckTransitionsWorkingToOnlineAfterThreshold(t *testing.T) {
	ts := newTestSession("s1", "m1")
	ts.noteShellReady()
	ts.beginWork(time.Now())
	ts.noteOutput(time.Now())

	if ts.idleCheck(time.Now()) {
		t.Fatal("idleCheck should be false immediately after output")
	}

	future := time.Now().Add(IdleThreshold + DebounceWindow + time.Second)
	if !ts.idleCheck(future) {
		t.Fatal("idleCheck should fire once threshold+debounce has elapsed")
	}
	if ts.Status() != StatusOnline {
		t.Fatalf("status after idle = %v, want online", ts.Status())
	}
}

func TestIdleCheckIgnoresNonWorkingSessions(t *testing.T) {
	ts := newTestSession("s1", "m1")
	future := time.Now().Add(IdleThreshold + DebounceWindow + time.Second)
	if ts.idleCheck(future) {
		t.Fatal("idleCheck should never fire for a Connecting session")
	}
}
