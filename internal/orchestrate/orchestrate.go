package orchestrate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/golutra/golutra/internal/apperr"
	"github.com/golutra/golutra/internal/chatstore"
	"github.com/golutra/golutra/internal/dispatch"
	"github.com/golutra/golutra/internal/ptyspawn"
	"github.com/golutra/golutra/internal/session"
)

// MemberDirectory resolves chat member ids to the terminal launch
// parameters C11 needs (terminal type, working directory), and whether a
// member is terminal-backed at all (a human participant is not). Narrow
// interface to keep this package decoupled from whatever stores
// workspace/member configuration (C12's workspace registry).
type MemberDirectory interface {
	Member(memberID string) (MemberConfig, bool)
	Members(conversationID string) ([]Member, error)
}

// MemberConfig is what's needed to stand up a session for a member that
// doesn't have one yet.
type MemberConfig struct {
	TerminalType ptyspawn.TerminalType
	CWD          string
	TerminalPath string
	StrictShell  bool
}

// Orchestrator is C11: given an incoming chat message, resolve its
// targets and ensure each has a live session before enqueuing the
// message onto that session's dispatch queue.
type Orchestrator struct {
	reg     *session.Registry
	store   *chatstore.Store
	members MemberDirectory
	log     *slog.Logger
}

func New(reg *session.Registry, store *chatstore.Store, members MemberDirectory) *Orchestrator {
	return &Orchestrator{reg: reg, store: store, members: members, log: slog.With("component", "orchestrate")}
}

// Deliver implements spec §4.11's ensure-session-then-enqueue flow for one
// incoming chat message, step by step:
//  1. load the conversation's membership and resolve targets from the
//     message text (ParseMentions + ResolveTargets);
//  2. for each target, look up (or lazily create) its session;
//  3. enqueue the message onto each target session's dispatch queue,
//     collecting per-target outcomes rather than failing the whole call
//     on one target's error.
func (o *Orchestrator) Deliver(ctx context.Context, msg chatstore.Message, isDirect bool) (map[string]dispatch.Outcome, error) {
	members, err := o.members.Members(msg.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("orchestrate: deliver: load members: %w", err)
	}

	targets := ResolveTargets(isDirect, msg.Text, msg.SenderID, members)
	if len(targets) == 0 {
		return nil, nil
	}

	outcomes := make(map[string]dispatch.Outcome, len(targets))
	for _, memberID := range targets {
		ts, err := o.ensureSession(ctx, memberID, msg.ConversationID)
		if err != nil {
			o.log.Warn("failed to ensure session for target", "member_id", memberID, "err", err)
			continue
		}
		ctxInfo := dispatch.Context{
			MessageID:        msg.MessageID,
			ConversationID:   msg.ConversationID,
			SenderID:         msg.SenderID,
			SenderName:       msg.SenderID,
			ConversationType: conversationType(isDirect),
		}
		env := dispatch.Envelope{Context: ctxInfo, Text: msg.Text, BatchedMessageIDs: []string{msg.MessageID}}
		outcomes[memberID] = o.reg.Dispatch(ts.ID, env)
	}
	return outcomes, nil
}

func conversationType(isDirect bool) string {
	if isDirect {
		return "direct"
	}
	return "channel"
}

// ensureSession returns the member's active session, launching one if it
// doesn't have one yet.
func (o *Orchestrator) ensureSession(ctx context.Context, memberID, conversationID string) (*session.TerminalSession, error) {
	if ts := o.reg.ForMember(memberID); ts != nil {
		return ts, nil
	}
	cfg, ok := o.members.Member(memberID)
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "ensureSession", "unknown member")
	}
	return o.reg.Create(ctx, session.CreateRequest{
		MemberID:       memberID,
		ConversationID: conversationID,
		TerminalType:   cfg.TerminalType,
		CWD:            cfg.CWD,
		TerminalPath:   cfg.TerminalPath,
		StrictShell:    cfg.StrictShell,
		Rows:           24,
		Cols:           80,
	})
}
