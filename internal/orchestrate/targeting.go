// Package orchestrate implements C11: resolving which terminal-backed
// members a chat message targets, then making sure each target has a live
// session before handing the message to the session registry's dispatch
// queue (spec §4.11). Grounded in the teacher's numbered-step dispatch
// flow (internal/timeline/dispatch.go) for structure, and its orchestrator
// wiring (internal/agent/orchestrator.go) for the "resolve, then act"
// shape — rewritten around chat targeting rather than LLM tool calls.
package orchestrate

import (
	"regexp"
	"strings"
)

// TargetKind enumerates spec §4.11's message-targeting modes.
type TargetKind int

const (
	TargetDirect TargetKind = iota
	TargetChannelAll
	TargetChannelMentions
)

var mentionPattern = regexp.MustCompile(`@(\w[\w-]*)`)

// ParseMentions extracts @-mentioned member names from message text, in
// first-occurrence order with duplicates removed. "@all" is reported
// separately via the returned bool.
func ParseMentions(text string) (names []string, mentionsAll bool) {
	seen := make(map[string]bool)
	for _, m := range mentionPattern.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if strings.EqualFold(name, "all") {
			mentionsAll = true
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names, mentionsAll
}

// ResolveTargets implements spec §4.11's targeting rule:
//   - a direct conversation always targets its single non-sender member;
//   - a channel message with "@all" (or with no @mentions at all when the
//     conversation has exactly one terminal-backed member) targets every
//     terminal-backed member;
//   - a channel message with explicit @mentions targets exactly those
//     members, matched case-insensitively against nickname or member id.
func ResolveTargets(conversationIsDirect bool, text string, senderID string, members []Member) []string {
	terminalMembers := make([]Member, 0, len(members))
	for _, m := range members {
		if m.IsTerminalBacked {
			terminalMembers = append(terminalMembers, m)
		}
	}

	if conversationIsDirect {
		for _, m := range terminalMembers {
			if m.ID != senderID {
				return []string{m.ID}
			}
		}
		return nil
	}

	mentioned, all := ParseMentions(text)
	if all {
		return idsOf(terminalMembers)
	}
	if len(mentioned) == 0 {
		if len(terminalMembers) == 1 {
			return idsOf(terminalMembers)
		}
		return nil
	}

	var targets []string
	for _, name := range mentioned {
		for _, m := range terminalMembers {
			if strings.EqualFold(m.Nickname, name) || strings.EqualFold(m.ID, name) {
				targets = append(targets, m.ID)
				break
			}
		}
	}
	return targets
}

// Member is the slice of membership data targeting needs — kept separate
// from chatstore.MemberEntry so this package doesn't need to know about
// terminal sessions to compute targets.
type Member struct {
	ID               string
	Nickname         string
	IsTerminalBacked bool
}

func idsOf(members []Member) []string {
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = m.ID
	}
	return out
}
