package session

import (
	"bytes"
	"log/slog"
	"time"

	"github.com/golutra/golutra/internal/chatstore"
)

// PlanActionKind enumerates C7's staged-plan action types, spec §4.7.
type PlanActionKind int

const (
	ActionInput PlanActionKind = iota
	ActionDelay
	ActionWaitForPattern
	ActionExtractSessionID
	ActionIntroduction
)

// PlanAction is one staged step of a post-ready plan. Not every field
// applies to every Kind.
type PlanAction struct {
	Kind    PlanActionKind
	Text    string        // ActionInput / ActionIntroduction
	Delay   time.Duration // ActionDelay
	Pattern []byte        // ActionWaitForPattern / ActionExtractSessionID (regex-free substring match)
	Timeout time.Duration // ActionWaitForPattern / ActionExtractSessionID
}

// planState tracks one session's in-progress plan execution.
type planState struct {
	actions []PlanAction
	index   int
	buf     bytes.Buffer

	extractAttempts int
	mapKey          string
}

const (
	extractSessionIDTimeout = 2 * time.Second
	extractSessionIDMaxTries = 3
)

// Planner drives C7: once a session's shim reports ready, it executes a
// terminal-type-specific staged plan (an initial command, waiting for a
// banner, extracting a CLI-assigned session id, sending an introduction
// message). Dispatch does not wait for the plan: a session accepts chat
// dispatch while its plan is still running.
type Planner struct {
	reg    *Registry
	store  *chatstore.Store
	plans  map[string][]PlanAction // terminal type -> plan
	log    *slog.Logger
}

func NewPlanner(reg *Registry, store *chatstore.Store) *Planner {
	return &Planner{
		reg:   reg,
		store: store,
		plans: make(map[string][]PlanAction),
		log:   slog.With("component", "session.planner"),
	}
}

// RegisterPlan associates a staged plan with a terminal type, e.g.
// "codex" waiting for a ready banner then extracting a resumable
// session id. Terminal types with no registered plan skip straight to
// dispatch-ready once shell_ready fires.
func (p *Planner) RegisterPlan(terminalType string, actions []PlanAction) {
	p.plans[terminalType] = actions
}

// Start begins plan execution for ts once its shim has reported ready.
// Intended to be called from the trigger bus's FactShellReady listener.
func (p *Planner) Start(ts *TerminalSession) {
	actions, ok := p.plans[string(ts.TerminalType)]
	if !ok || len(actions) == 0 {
		return
	}
	ts.mu.Lock()
	ts.planState = &planState{actions: actions}
	ts.mu.Unlock()
	go p.step(ts)
}

// Feed appends a clean output chunk to ts's plan buffer so a
// WaitForPattern/ExtractSessionID step can observe PTY output without the
// planner needing its own emulator. Pipeline.handleChunk does not call it;
// output reaches the plan buffer only through explicit Feed calls.
func (p *Planner) Feed(ts *TerminalSession, chunk []byte) {
	ts.mu.Lock()
	ps := ts.planState
	if ps == nil {
		ts.mu.Unlock()
		return
	}
	ps.buf.Write(chunk)
	ts.mu.Unlock()
}

func (p *Planner) step(ts *TerminalSession) {
	for {
		ts.mu.Lock()
		ps := ts.planState
		if ps == nil || ps.index >= len(ps.actions) {
			ts.mu.Unlock()
			return
		}
		action := ps.actions[ps.index]
		ps.index++
		ts.mu.Unlock()

		switch action.Kind {
		case ActionInput, ActionIntroduction:
			_ = ts.WriteRawInput([]byte(action.Text + "\r"))
		case ActionDelay:
			time.Sleep(action.Delay)
		case ActionWaitForPattern:
			p.waitForPattern(ts, action.Pattern, orDefault(action.Timeout, extractSessionIDTimeout))
		case ActionExtractSessionID:
			p.extractSessionID(ts, action)
		}
	}
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// waitForPattern polls the plan's output buffer for pattern until timeout,
// returning whether it was found.
func (p *Planner) waitForPattern(ts *TerminalSession, pattern []byte, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		ts.mu.Lock()
		found := ts.planState != nil && bytes.Contains(ts.planState.buf.Bytes(), pattern)
		ts.mu.Unlock()
		if found {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return false
}

// extractSessionID implements spec §4.7's retry semantics: up to
// extractSessionIDMaxTries attempts, each waiting extractSessionIDTimeout
// for action.Pattern (expected to contain one capture-worthy token on the
// line) before giving up and proceeding without a mapped session id.
func (p *Planner) extractSessionID(ts *TerminalSession, action PlanAction) {
	for attempt := 0; attempt < extractSessionIDMaxTries; attempt++ {
		if p.waitForPattern(ts, action.Pattern, orDefault(action.Timeout, extractSessionIDTimeout)) {
			ts.mu.Lock()
			line := extractLineContaining(ts.planState.buf.Bytes(), action.Pattern)
			ts.mu.Unlock()
			if line != "" && p.store != nil {
				mapKey := ts.ConversationID + ":" + ts.ID
				if err := p.store.SetTerminalSessionMapping(mapKey, line); err != nil {
					p.log.Warn("failed to persist terminal session mapping", "session_id", ts.ID, "err", err)
				}
			}
			return
		}
	}
	p.log.Warn("gave up extracting session id", "session_id", ts.ID, "attempts", extractSessionIDMaxTries)
}

func extractLineContaining(buf []byte, pattern []byte) string {
	idx := bytes.Index(buf, pattern)
	if idx < 0 {
		return ""
	}
	start := bytes.LastIndexByte(buf[:idx], '\n') + 1
	end := idx + len(pattern)
	if nl := bytes.IndexByte(buf[end:], '\n'); nl >= 0 {
		end += nl
	} else {
		end = len(buf)
	}
	return string(bytes.TrimSpace(buf[start:end]))
}
