// Package session implements C3 (session registry), C4 (PTY IO pipeline),
// C5 (state machine & status poller), C6 (dispatch queue), and C7
// (post-ready planner) — folded into one package because every one of
// them reads and mutates the same per-session record under the same lock
// (spec §9's design note on why the registry owns these together rather
// than splitting them across packages that would need their own locking
// protocol to stay consistent).
package session

import (
	"sync"
	"time"

	"github.com/golutra/golutra/internal/dispatch"
	"github.com/golutra/golutra/internal/ptyspawn"
	"github.com/golutra/golutra/internal/semantic"
	"github.com/golutra/golutra/internal/vterm"
)

// Status is the C5 state machine's four states, spec §4.5.
type Status string

const (
	StatusConnecting Status = "connecting"
	StatusOnline     Status = "online"
	StatusWorking    Status = "working"
	StatusOffline    Status = "offline"
)

// Thresholds the poller and state machine apply, spec §4.5.
const (
	PollInterval       = 500 * time.Millisecond
	IdleThreshold      = 4500 * time.Millisecond
	DebounceWindow     = 1000 * time.Millisecond
	RedrawSuppression  = 250 * time.Millisecond
)

// TerminalSession is one live PTY-backed member, spec §3.7.
type TerminalSession struct {
	ID             string
	MemberID       string
	ConversationID string
	TerminalType   ptyspawn.TerminalType
	CWD            string

	mu sync.Mutex

	status       Status
	lastOutputAt time.Time
	lastInputAt  time.Time
	workingSince time.Time
	shellReady   bool
	chatPending  bool

	emu  *vterm.Emulator
	pty  *ptyspawn.Result
	sema *semantic.Worker

	queue      []dispatch.Envelope
	inflight   *dispatch.Envelope
	recentIDs  []string

	planState *planState

	closed bool
}

func newTerminalSession(id, memberID, convID string, tt ptyspawn.TerminalType, cwd string, rows, cols int) *TerminalSession {
	return &TerminalSession{
		ID:             id,
		MemberID:       memberID,
		ConversationID: convID,
		TerminalType:   tt,
		CWD:            cwd,
		status:         StatusConnecting,
		emu:            vterm.New(rows, cols),
	}
}

// Status returns the session's current state-machine status.
func (t *TerminalSession) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Emulator exposes the primary VT emulator for snapshotting.
func (t *TerminalSession) Emulator() *vterm.Emulator {
	return t.emu
}
