package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/golutra/golutra/internal/apperr"
	"github.com/golutra/golutra/internal/idgen"
	"github.com/golutra/golutra/internal/ptyspawn"
	"github.com/golutra/golutra/internal/triggerbus"
)

// DNDChecker reports whether a member currently has do-not-disturb set,
// spec §4.6's dispatch gate. Kept as a narrow interface here to avoid an
// import cycle; a nil DNDChecker disables the gate.
type DNDChecker interface {
	IsDoNotDisturb(memberID string) bool
}

// Registry is C3: the single authority over every live terminal session.
// Its mutex guards the session, member and working-session maps; each
// TerminalSession's own state is guarded by that session's mutex.
type Registry struct {
	mu sync.Mutex

	sessions       map[string]*TerminalSession // session id -> session
	memberSessions map[string]string           // member id -> session id
	workingSessions map[string]bool            // session id -> true while Working

	dnd   DNDChecker
	bus   *triggerbus.Bus
	audit *auditSink

	log *slog.Logger
}

// NewRegistry constructs an empty registry. bus may be nil if the caller
// doesn't need fact publication (e.g. in tests).
func NewRegistry(dnd DNDChecker, bus *triggerbus.Bus) *Registry {
	return &Registry{
		sessions:        make(map[string]*TerminalSession),
		memberSessions:  make(map[string]string),
		workingSessions: make(map[string]bool),
		dnd:             dnd,
		bus:             bus,
		log:             slog.With("component", "session.registry"),
	}
}

// CreateRequest bundles what Create needs to launch and register a session.
type CreateRequest struct {
	MemberID       string
	ConversationID string
	TerminalType   ptyspawn.TerminalType
	CWD            string
	Rows, Cols     int
	TerminalPath   string
	Command        string
	StrictShell    bool
	Env            map[string]string
}

// Create launches a new PTY-backed session for a member and registers it.
// A member may have at most one active session (spec §3.7's
// member_sessions uniqueness); calling Create for an already-active member
// returns apperr.KindConflict.
func (r *Registry) Create(ctx context.Context, req CreateRequest) (*TerminalSession, error) {
	r.mu.Lock()
	if _, exists := r.memberSessions[req.MemberID]; exists {
		r.mu.Unlock()
		return nil, apperr.New(apperr.KindConflict, "session.Create", "member already has an active session")
	}
	r.mu.Unlock()

	result, err := ptyspawn.Launch(ctx, ptyspawn.Request{
		Rows: req.Rows, Cols: req.Cols, CWD: req.CWD, TerminalType: req.TerminalType,
		TerminalPath: req.TerminalPath, Command: req.Command, StrictShell: req.StrictShell, Env: req.Env,
	})
	if err != nil {
		return nil, err
	}

	id := idgen.New()
	ts := newTerminalSession(id, req.MemberID, req.ConversationID, req.TerminalType, req.CWD, req.Rows, req.Cols)
	ts.pty = result

	r.mu.Lock()
	r.sessions[id] = ts
	r.memberSessions[req.MemberID] = id
	r.mu.Unlock()

	r.log.Info("session created", "session_id", id, "member_id", req.MemberID, "terminal_type", req.TerminalType)
	return ts, nil
}

// Get returns the session by id, or nil if it doesn't exist.
func (r *Registry) Get(sessionID string) *TerminalSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[sessionID]
}

// ForMember returns the member's active session, or nil.
func (r *Registry) ForMember(memberID string) *TerminalSession {
	r.mu.Lock()
	sid, ok := r.memberSessions[memberID]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return r.Get(sid)
}

// Remove tears down a session's bookkeeping after its PTY has exited. The
// caller is responsible for closing the PTY and semantic worker first.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	delete(r.sessions, sessionID)
	delete(r.memberSessions, ts.MemberID)
	delete(r.workingSessions, sessionID)
}

// List returns a snapshot slice of every live session.
func (r *Registry) List() []*TerminalSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*TerminalSession, 0, len(r.sessions))
	for _, ts := range r.sessions {
		out = append(out, ts)
	}
	return out
}

// markWorking/clearWorking maintain the registry's set of sessions that
// have produced output since they last went idle or exited. The set may
// hold any number of sessions; nothing outside this package reads it.
func (r *Registry) markWorking(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workingSessions[sessionID] = true
}

func (r *Registry) clearWorking(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workingSessions, sessionID)
}

func (r *Registry) publish(kind triggerbus.FactKind, sessionID string) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(triggerbus.Fact{Kind: kind, TerminalID: sessionID})
}
