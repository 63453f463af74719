package session

import (
	"time"

	"github.com/golutra/golutra/internal/dispatch"
	"github.com/golutra/golutra/internal/semantic"
)

// Dispatch implements C6's enqueue algorithm, spec §4.6:
//  1. do-not-disturb gate — a DND member's session skips the message
//     entirely, reported as OutcomeSkippedDnd.
//  2. de-dup — a message id already inflight, queued, or in the recent
//     window is dropped as OutcomeDuplicate.
//  3. same-sender batching — if the session is busy (inflight or already
//     queued) and the new envelope's sender matches the last queued
//     envelope's sender, merge into it rather than adding a new entry.
//  4. otherwise: dispatch immediately if the session is idle, or enqueue
//     (bounded to MaxQueueSize, dropping the oldest queued entry to make
//     room — the Open Question spec §9 leaves open; drop-oldest was
//     chosen over erroring because a dispatch queue existing at all means
//     "best effort delivery", and erroring would silently lose the newest
//     message instead of the stalest one).
func (r *Registry) Dispatch(sessionID string, env dispatch.Envelope) dispatch.Outcome {
	ts := r.Get(sessionID)
	if ts == nil {
		return dispatch.OutcomeSkippedDnd
	}

	if r.dnd != nil && r.dnd.IsDoNotDisturb(ts.MemberID) {
		return dispatch.OutcomeSkippedDnd
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.isDuplicateLocked(env) {
		return dispatch.OutcomeDuplicate
	}

	busy := ts.inflight != nil || ts.status == StatusWorking || len(ts.queue) > 0
	if busy {
		if n := len(ts.queue); n > 0 && sameSenderCtx(ts.queue[n-1].Context, env.Context) {
			ts.queue[n-1] = ts.queue[n-1].Merge(env)
			return dispatch.OutcomeQueued
		}
		if len(ts.queue) >= dispatch.MaxQueueSize {
			ts.queue = ts.queue[1:]
		}
		ts.queue = append(ts.queue, env)
		ts.chatPending = true
		return dispatch.OutcomeQueued
	}

	ts.dispatchNowLocked(env)
	return dispatch.OutcomeDispatched
}

// isDuplicateLocked checks env's batched message ids against the
// inflight envelope, the queue, and the recent-dispatch window.
// ts.mu must be held.
func (ts *TerminalSession) isDuplicateLocked(env dispatch.Envelope) bool {
	if len(env.BatchedMessageIDs) == 0 {
		return false
	}
	id := env.BatchedMessageIDs[0]
	if ts.inflight != nil {
		for _, existing := range ts.inflight.BatchedMessageIDs {
			if existing == id {
				return true
			}
		}
	}
	for _, q := range ts.queue {
		for _, existing := range q.BatchedMessageIDs {
			if existing == id {
				return true
			}
		}
	}
	for _, existing := range ts.recentIDs {
		if existing == id {
			return true
		}
	}
	return false
}

// dispatchNowLocked writes env to the PTY immediately and marks the
// session Working. ts.mu must be held.
func (ts *TerminalSession) dispatchNowLocked(env dispatch.Envelope) {
	e := env
	ts.inflight = &e
	ts.status = StatusWorking
	ts.workingSince = time.Now()
	ts.chatPending = len(ts.queue) > 0
	ts.recordRecentLocked(env)
	ts.writeInputLocked(env.Text)
}

func (ts *TerminalSession) recordRecentLocked(env dispatch.Envelope) {
	ts.recentIDs = append(ts.recentIDs, env.BatchedMessageIDs...)
	if over := len(ts.recentIDs) - dispatch.RecentWindow; over > 0 {
		ts.recentIDs = ts.recentIDs[over:]
	}
}

// writeInputLocked pushes text to the PTY and, if a semantic capture is
// active, opens a block for it. ts.mu must be held.
func (ts *TerminalSession) writeInputLocked(text string) {
	if ts.pty != nil && ts.pty.PTY != nil {
		_, _ = ts.pty.PTY.Write([]byte(text + "\r"))
	}
	if ts.sema != nil {
		ts.sema.Send(semantic.Event{Kind: semantic.EventUserInput, Data: []byte(text)})
	}
}

// advanceQueueOnIdle is called by the poller when a Working session goes
// idle: it closes out the inflight envelope and, if anything is queued,
// dispatches the next one immediately. It reports the span that just
// completed, if any, so the caller can feed it to an audit sink.
func (ts *TerminalSession) advanceQueueOnIdle() (AuditEvent, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	var ev AuditEvent
	var ok bool
	if ts.inflight != nil {
		ev = AuditEvent{
			SessionID:  ts.ID,
			Command:    ts.inflight.Text,
			StartedAt:  unixMS(ts.workingSince),
			DurationMS: time.Since(ts.workingSince).Milliseconds(),
		}
		ok = true
	}
	ts.inflight = nil

	if len(ts.queue) == 0 {
		ts.chatPending = false
		return ev, ok
	}
	next := ts.queue[0]
	ts.queue = ts.queue[1:]
	ts.dispatchNowLocked(next)
	return ev, ok
}

// QueueDepth reports how many envelopes are waiting behind the inflight
// one, for diagnostics.
func (ts *TerminalSession) QueueDepth() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.queue)
}

// sameSenderCtx is the merge key spec §4.6 defines: same conversation,
// same conversation type, same sender.
func sameSenderCtx(a, b dispatch.Context) bool {
	return a.ConversationID == b.ConversationID &&
		a.ConversationType == b.ConversationType &&
		a.SenderID == b.SenderID &&
		a.SenderName == b.SenderName
}
