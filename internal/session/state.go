package session

import "time"

// noteOutput records output activity and applies two transitions:
// Connecting -> Online on output after shell_ready, and Offline -> Online.
// It never moves a session to Working; that happens only in beginWork,
// when a chat dispatch is written to the PTY.
func (t *TerminalSession) noteOutput(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastOutputAt = now
	if t.status == StatusConnecting && t.shellReady {
		t.status = StatusOnline
	}
	if t.status == StatusOffline {
		t.status = StatusOnline
	}
}

// noteShellReady marks the shim's ready marker having arrived, and moves
// a still-Connecting session straight to Online (spec §4.1/§4.5).
func (t *TerminalSession) noteShellReady() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.shellReady = true
	if t.status == StatusConnecting {
		t.status = StatusOnline
	}
}

// beginWork marks a session Working — entered when a chat-originated
// dispatch is written to the PTY (spec §4.5).
func (t *TerminalSession) beginWork(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = StatusWorking
	t.workingSince = now
}

// idleCheck applies the poller's idle rule: a Working session with no
// output for IdleThreshold, held stable for DebounceWindow, returns to
// Online. Returns true if the transition just happened (the caller
// publishes FactIdle and advances the dispatch queue on true).
func (t *TerminalSession) idleCheck(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusWorking {
		return false
	}
	idleFor := now.Sub(t.lastOutputAt)
	if idleFor < IdleThreshold {
		return false
	}
	// Debounce: require the idle condition to have held for at least
	// DebounceWindow past the threshold crossing before acting, so a
	// single slow poll tick right at the boundary doesn't flap.
	if idleFor < IdleThreshold+DebounceWindow {
		return false
	}
	t.status = StatusOnline
	return true
}

// markOffline marks a session Offline, e.g. on PTY exit.
func (t *TerminalSession) markOffline() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = StatusOffline
}

// setChatPending records whether a chat-originated dispatch is queued or
// inflight for this session. The flag is stored only; idleCheck does not
// consult it.
func (t *TerminalSession) setChatPending(pending bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chatPending = pending
}
