package orchestrate

import (
	"reflect"
	"testing"
)

func TestParseMentions(t *testing.T) {
	names, all := ParseMentions("hey @codex can you look at this, cc @Claude")
	if all {
		t.Fatal("unexpected mentions-all")
	}
	if !reflect.DeepEqual(names, []string{"codex", "Claude"}) {
		t.Fatalf("names = %v", names)
	}
}

func TestParseMentionsAll(t *testing.T) {
	_, all := ParseMentions("status update @all")
	if !all {
		t.Fatal("expected mentions-all")
	}
}

func TestResolveTargetsDirectConversation(t *testing.T) {
	members := []Member{{ID: "human1"}, {ID: "codex1", IsTerminalBacked: true}}
	targets := ResolveTargets(true, "hello", "human1", members)
	if !reflect.DeepEqual(targets, []string{"codex1"}) {
		t.Fatalf("targets = %v", targets)
	}
}

func TestResolveTargetsChannelExplicitMention(t *testing.T) {
	members := []Member{
		{ID: "codex1", Nickname: "codex", IsTerminalBacked: true},
		{ID: "claude1", Nickname: "claude", IsTerminalBacked: true},
	}
	targets := ResolveTargets(false, "@claude please review", "human1", members)
	if !reflect.DeepEqual(targets, []string{"claude1"}) {
		t.Fatalf("targets = %v", targets)
	}
}

func TestResolveTargetsChannelAll(t *testing.T) {
	members := []Member{
		{ID: "codex1", IsTerminalBacked: true},
		{ID: "claude1", IsTerminalBacked: true},
	}
	targets := ResolveTargets(false, "standup time @all", "human1", members)
	if len(targets) != 2 {
		t.Fatalf("targets = %v, want both members", targets)
	}
}

func TestResolveTargetsChannelNoMentionSingleMemberFallback(t *testing.T) {
	members := []Member{{ID: "codex1", IsTerminalBacked: true}}
	targets := ResolveTargets(false, "no mention here", "human1", members)
	if !reflect.DeepEqual(targets, []string{"codex1"}) {
		t.Fatalf("targets = %v, want sole member as implicit target", targets)
	}
}

func TestResolveTargetsChannelNoMentionAmbiguous(t *testing.T) {
	members := []Member{
		{ID: "codex1", IsTerminalBacked: true},
		{ID: "claude1", IsTerminalBacked: true},
	}
	targets := ResolveTargets(false, "no mention here", "human1", members)
	if targets != nil {
		t.Fatalf("targets = %v, want none (ambiguous with 2+ members)", targets)
	}
}
