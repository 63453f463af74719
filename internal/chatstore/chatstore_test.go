package chatstore

import "testing"

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnsureDefaultChannelIdempotent(t *testing.T) {
	s := openTestStore(t)

	c1, err := s.EnsureDefaultChannel("my-workspace", []string{"alice", "bob"})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if !c1.IsDefault {
		t.Fatal("expected default channel")
	}
	if c1.CustomName != "my-workspace" {
		t.Errorf("custom name = %q", c1.CustomName)
	}

	c2, err := s.EnsureDefaultChannel("my-workspace", []string{"alice", "bob"})
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if c2.ConversationID != c1.ConversationID {
		t.Fatal("expected same conversation on repeated calls")
	}

	c3, err := s.EnsureDefaultChannel("renamed-workspace", []string{"alice"})
	if err != nil {
		t.Fatalf("ensure renamed: %v", err)
	}
	if c3.ConversationID != c1.ConversationID {
		t.Fatal("expected rename to keep the same conversation")
	}
	if c3.CustomName != "renamed-workspace" {
		t.Errorf("custom name = %q, want renamed-workspace", c3.CustomName)
	}

	members, err := s.ListMembers(c3.ConversationID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 1 || members[0].UserID != "alice" {
		t.Fatalf("expected membership synced to [alice], got %+v", members)
	}
}

func TestSaveMessageRequiresExistingConversation(t *testing.T) {
	s := openTestStore(t)
	err := s.SaveMessage(Message{
		MessageID: "m1", ConversationID: "missing", CreatedAt: 1,
		Status: StatusSent, ContentKind: ContentText, Text: "hi",
	})
	if err == nil {
		t.Fatal("expected error for nonexistent conversation")
	}
}

func TestSaveMessageUpdatesConversationPreview(t *testing.T) {
	s := openTestStore(t)
	conv, err := s.EnsureDefaultChannel("ws", []string{"alice"})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	err = s.SaveMessage(Message{
		MessageID: "m1", ConversationID: conv.ConversationID, SenderID: "alice",
		CreatedAt: 1000, Status: StatusSent, ContentKind: ContentText, Text: "hello there",
	})
	if err != nil {
		t.Fatalf("save message: %v", err)
	}

	got, err := s.GetConversation(conv.ConversationID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if got.LastMessageAt == nil || *got.LastMessageAt != 1000 {
		t.Errorf("last_message_at = %v, want 1000", got.LastMessageAt)
	}
	if got.LastMessagePreview != "hello there" {
		t.Errorf("preview = %q", got.LastMessagePreview)
	}
}

func TestSaveMessageRejectsNonMemberSender(t *testing.T) {
	s := openTestStore(t)
	conv, err := s.EnsureDefaultChannel("ws", []string{"alice"})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	err = s.SaveMessage(Message{
		MessageID: "m1", ConversationID: conv.ConversationID, SenderID: "mallory",
		CreatedAt: 1, Status: StatusSent, ContentKind: ContentText, Text: "hi",
	})
	if err == nil {
		t.Fatal("expected error for non-member sender")
	}
}

func TestListMessagesOrderAndPagination(t *testing.T) {
	s := openTestStore(t)
	conv, _ := s.EnsureDefaultChannel("ws", []string{"alice"})

	for i, id := range []string{"m1", "m2", "m3"} {
		err := s.SaveMessage(Message{
			MessageID: id, ConversationID: conv.ConversationID, SenderID: "alice",
			CreatedAt: int64(1000 + i), Status: StatusSent, ContentKind: ContentText, Text: id,
		})
		if err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	all, err := s.ListMessages(conv.ConversationID, "", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].MessageID != "m1" || all[2].MessageID != "m3" {
		t.Fatalf("unexpected order: %+v", all)
	}

	rest, err := s.ListMessages(conv.ConversationID, "m1", 10)
	if err != nil {
		t.Fatalf("list after m1: %v", err)
	}
	if len(rest) != 2 || rest[0].MessageID != "m2" {
		t.Fatalf("unexpected cursor page: %+v", rest)
	}
}

func TestUnreadCountExcludesOwnMessagesAndRespectsMarker(t *testing.T) {
	s := openTestStore(t)
	conv, _ := s.EnsureDefaultChannel("ws", []string{"alice", "bob"})

	for i, pair := range []struct{ id, sender string }{
		{"m1", "alice"}, {"m2", "bob"}, {"m3", "bob"},
	} {
		if err := s.SaveMessage(Message{
			MessageID: pair.id, ConversationID: conv.ConversationID, SenderID: pair.sender,
			CreatedAt: int64(1000 + i), Status: StatusSent, ContentKind: ContentText, Text: pair.id,
		}); err != nil {
			t.Fatalf("save %s: %v", pair.id, err)
		}
	}

	n, err := s.UnreadCount("alice", conv.ConversationID)
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if n != 2 {
		t.Fatalf("unread = %d, want 2 (bob's two messages)", n)
	}

	if err := s.MarkRead("alice", conv.ConversationID, "m2"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	n, err = s.UnreadCount("alice", conv.ConversationID)
	if err != nil {
		t.Fatalf("unread count after read: %v", err)
	}
	if n != 1 {
		t.Fatalf("unread after marking m2 read = %d, want 1", n)
	}
}

func TestTimelinePinnedSectionComesFirst(t *testing.T) {
	s := openTestStore(t)
	c1, _ := s.EnsureDefaultChannel("default", []string{"alice"})
	c2, err := s.CreateDirectConversation([]string{"alice", "bob"})
	if err != nil {
		t.Fatalf("create direct: %v", err)
	}

	if err := s.SaveMessage(Message{MessageID: "a1", ConversationID: c1.ConversationID, SenderID: "alice", CreatedAt: 1, Status: StatusSent, ContentKind: ContentText, Text: "hi"}); err != nil {
		t.Fatalf("save a1: %v", err)
	}
	if err := s.SaveMessage(Message{MessageID: "b1", ConversationID: c2.ConversationID, SenderID: "alice", CreatedAt: 2, Status: StatusSent, ContentKind: ContentText, Text: "hi"}); err != nil {
		t.Fatalf("save b1: %v", err)
	}

	if err := s.SetPinned("alice", c2.ConversationID, true); err != nil {
		t.Fatalf("set pinned: %v", err)
	}

	entries, err := s.Timeline("alice", 10)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(entries) < 1 || !entries[0].Pinned || entries[0].Conversation.ConversationID != c2.ConversationID {
		t.Fatalf("expected pinned direct conversation first, got %+v", entries)
	}
}

func TestTruncatePreviewBoundary(t *testing.T) {
	exact := make([]rune, MaxPreview)
	for i := range exact {
		exact[i] = 'a'
	}
	if got := TruncatePreview(string(exact)); got != string(exact) {
		t.Errorf("exact-length string should pass through unchanged")
	}

	over := append(exact, 'b')
	got := TruncatePreview(string(over))
	want := string(exact) + "..."
	if got != want {
		t.Errorf("truncate = %q, want %q", got, want)
	}
}

func TestDeleteConversationRefusesDefault(t *testing.T) {
	s := openTestStore(t)
	conv, _ := s.EnsureDefaultChannel("ws", []string{"alice"})
	if err := s.DeleteConversation(conv.ConversationID); err == nil {
		t.Fatal("expected error deleting default channel")
	}
}

func TestClearConversationKeepsMembership(t *testing.T) {
	s := openTestStore(t)
	conv, _ := s.EnsureDefaultChannel("ws", []string{"alice"})
	if err := s.SaveMessage(Message{MessageID: "m1", ConversationID: conv.ConversationID, SenderID: "alice", CreatedAt: 1, Status: StatusSent, ContentKind: ContentText, Text: "hi"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.ClearConversation(conv.ConversationID); err != nil {
		t.Fatalf("clear: %v", err)
	}
	msgs, err := s.ListMessages(conv.ConversationID, "", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected no messages after clear, got %d", len(msgs))
	}
	members, err := s.ListMembers(conv.ConversationID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("expected membership to survive clear, got %+v", members)
	}
}

func TestRepairInvalidMessagesRemovesOrphans(t *testing.T) {
	s := openTestStore(t)
	conv, _ := s.EnsureDefaultChannel("ws", []string{"alice"})
	if err := s.SaveMessage(Message{MessageID: "m1", ConversationID: conv.ConversationID, SenderID: "alice", CreatedAt: 1, Status: StatusSent, ContentKind: ContentText, Text: "hi"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := s.DB().Exec("PRAGMA foreign_keys=OFF"); err != nil {
		t.Fatalf("disable foreign keys: %v", err)
	}
	if _, err := s.DB().Exec(`DELETE FROM conversations WHERE conv_id = ?`, conv.ConversationID); err != nil {
		t.Fatalf("simulate orphan: %v", err)
	}

	n, err := s.RepairInvalidMessages()
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if n != 1 {
		t.Fatalf("repaired = %d, want 1", n)
	}
}

func TestAttachmentIndexRoundTrip(t *testing.T) {
	s := openTestStore(t)
	conv, _ := s.EnsureDefaultChannel("ws", []string{"alice"})
	w, h := 100, 200
	err := s.SaveMessage(Message{
		MessageID: "m1", ConversationID: conv.ConversationID, SenderID: "alice",
		CreatedAt: 5, Status: StatusSent, ContentKind: ContentText, Text: "a photo",
		Attachment: &Attachment{Kind: AttachmentImage, FileName: "a.png", Width: &w, Height: &h},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.ListAttachments(conv.ConversationID, AttachmentImage, 10)
	if err != nil {
		t.Fatalf("list attachments: %v", err)
	}
	if len(got) != 1 || got[0].Attachment == nil || got[0].Attachment.FileName != "a.png" {
		t.Fatalf("unexpected attachments: %+v", got)
	}
}

func TestTerminalSessionMappingRoundTrip(t *testing.T) {
	s := openTestStore(t)
	if err := s.SetTerminalSessionMapping("conv1:term1", "remote-xyz"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := s.GetTerminalSessionMapping("conv1:term1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "remote-xyz" {
		t.Fatalf("got %q, want remote-xyz", got)
	}
	if err := s.DeleteTerminalSessionMapping("conv1:term1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetTerminalSessionMapping("conv1:term1"); err == nil {
		t.Fatal("expected error after delete")
	}
}
