package chatstore

import (
	"database/sql"
	"fmt"

	"github.com/golutra/golutra/internal/apperr"
	"github.com/golutra/golutra/internal/idgen"
)

// EnsureDefaultChannel implements spec §4.9's ensure_default_channel: find
// the workspace's existing default conversation or mint one, renaming it to
// workspaceName if that changed, then sync membership (add missing, remove
// stale) to exactly members.
func (s *Store) EnsureDefaultChannel(workspaceName string, members []string) (*Conversation, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("chatstore: ensure default channel: begin: %w", err)
	}
	defer tx.Rollback()

	var convID, customName string
	err = tx.QueryRow(`SELECT conv_id, custom_name FROM conversations WHERE is_default = 1 LIMIT 1`).Scan(&convID, &customName)
	switch {
	case err == sql.ErrNoRows:
		convID = idgen.New()
		now := nowMS()
		if _, err := tx.Exec(`INSERT INTO conversations (conv_id, kind, created_at, custom_name, is_default)
			VALUES (?, ?, ?, ?, 1)`, convID, KindChannel, now, workspaceName); err != nil {
			return nil, fmt.Errorf("chatstore: ensure default channel: insert: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("chatstore: ensure default channel: lookup: %w", err)
	default:
		if customName != workspaceName {
			if _, err := tx.Exec(`UPDATE conversations SET custom_name = ? WHERE conv_id = ?`, workspaceName, convID); err != nil {
				return nil, fmt.Errorf("chatstore: ensure default channel: rename: %w", err)
			}
		}
	}

	if err := syncMembers(tx, convID, members); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("chatstore: ensure default channel: commit: %w", err)
	}
	return s.GetConversation(convID)
}

// syncMembers diffs the members table for conv against want, adding rows
// for new members and removing rows for members no longer present.
func syncMembers(tx *sql.Tx, convID string, want []string) error {
	have := make(map[string]bool)
	rows, err := tx.Query(`SELECT user_id FROM members WHERE conv_id = ?`, convID)
	if err != nil {
		return fmt.Errorf("chatstore: sync members: query: %w", err)
	}
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			rows.Close()
			return fmt.Errorf("chatstore: sync members: scan: %w", err)
		}
		have[uid] = true
	}
	rows.Close()

	wantSet := make(map[string]bool, len(want))
	now := nowMS()
	for _, uid := range want {
		wantSet[uid] = true
		if have[uid] {
			continue
		}
		if _, err := tx.Exec(`INSERT INTO members (conv_id, user_id, joined_at) VALUES (?, ?, ?)`, convID, uid, now); err != nil {
			return fmt.Errorf("chatstore: sync members: insert %s: %w", uid, err)
		}
	}
	for uid := range have {
		if wantSet[uid] {
			continue
		}
		if _, err := tx.Exec(`DELETE FROM members WHERE conv_id = ? AND user_id = ?`, convID, uid); err != nil {
			return fmt.Errorf("chatstore: sync members: delete %s: %w", uid, err)
		}
	}
	return nil
}

// GetConversation loads one conversation by id.
func (s *Store) GetConversation(convID string) (*Conversation, error) {
	c := &Conversation{}
	var isDefault int
	var lastMessageAt sql.NullInt64
	var customName, preview sql.NullString
	err := s.db.QueryRow(`SELECT conv_id, kind, created_at, custom_name, is_default, last_message_at, last_message_preview
		FROM conversations WHERE conv_id = ?`, convID).Scan(
		&c.ConversationID, &c.Kind, &c.CreatedAt, &customName, &isDefault, &lastMessageAt, &preview)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.KindNotFound, "GetConversation", "conversation not found")
	}
	if err != nil {
		return nil, fmt.Errorf("chatstore: get conversation: %w", err)
	}
	c.CustomName = customName.String
	c.IsDefault = isDefault != 0
	c.LastMessagePreview = preview.String
	if lastMessageAt.Valid {
		v := lastMessageAt.Int64
		c.LastMessageAt = &v
	}
	return c, nil
}

// CreateDirectConversation creates a new direct conversation between the
// given participants. Direct conversations are never deduplicated by
// membership here — callers resolving an existing DM do so by looking up
// membership themselves (spec leaves this to the orchestrator, C11).
func (s *Store) CreateDirectConversation(participants []string) (*Conversation, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("chatstore: create direct: begin: %w", err)
	}
	defer tx.Rollback()

	convID := idgen.New()
	now := nowMS()
	if _, err := tx.Exec(`INSERT INTO conversations (conv_id, kind, created_at, is_default) VALUES (?, ?, ?, 0)`,
		convID, KindDirect, now); err != nil {
		return nil, fmt.Errorf("chatstore: create direct: insert: %w", err)
	}
	if err := syncMembers(tx, convID, participants); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("chatstore: create direct: commit: %w", err)
	}
	return s.GetConversation(convID)
}

// ClearConversation deletes all messages, the timeline index entries, and
// attachment index entries for one conversation, but keeps the
// conversation and its membership intact (spec §4.9).
func (s *Store) ClearConversation(convID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("chatstore: clear conversation: begin: %w", err)
	}
	defer tx.Rollback()
	if err := clearConversationMessages(tx, convID); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE conversations SET last_message_at = NULL, last_message_preview = NULL WHERE conv_id = ?`, convID); err != nil {
		return fmt.Errorf("chatstore: clear conversation: reset preview: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("chatstore: clear conversation: commit: %w", err)
	}
	return nil
}

func clearConversationMessages(tx *sql.Tx, convID string) error {
	if _, err := tx.Exec(`DELETE FROM messages WHERE conv_id = ?`, convID); err != nil {
		return fmt.Errorf("chatstore: clear messages: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM attachments_index WHERE conv_id = ?`, convID); err != nil {
		return fmt.Errorf("chatstore: clear attachments: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM timeline_index WHERE conv_id = ?`, convID); err != nil {
		return fmt.Errorf("chatstore: clear timeline: %w", err)
	}
	return nil
}

// DeleteConversation removes a conversation entirely: its messages,
// indexes, membership, and per-user settings rows. The default channel
// cannot be deleted (spec §4.9 invariant: exactly one default channel).
func (s *Store) DeleteConversation(convID string) error {
	conv, err := s.GetConversation(convID)
	if err != nil {
		return err
	}
	if conv.IsDefault {
		return apperr.New(apperr.KindValidation, "DeleteConversation", "cannot delete the default channel")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("chatstore: delete conversation: begin: %w", err)
	}
	defer tx.Rollback()
	if err := clearConversationMessages(tx, convID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM members WHERE conv_id = ?`, convID); err != nil {
		return fmt.Errorf("chatstore: delete conversation: members: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM user_convs WHERE conv_id = ?`, convID); err != nil {
		return fmt.Errorf("chatstore: delete conversation: user_convs: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM conversations WHERE conv_id = ?`, convID); err != nil {
		return fmt.Errorf("chatstore: delete conversation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("chatstore: delete conversation: commit: %w", err)
	}
	return nil
}

// ClearChatStorage wipes every table's contents, keeping the schema. Used
// for the operator-facing "reset chat history" workspace action.
func (s *Store) ClearChatStorage() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("chatstore: clear all: begin: %w", err)
	}
	defer tx.Rollback()
	tables := []string{"messages", "attachments_index", "timeline_index", "user_convs", "members", "conversations", "terminal_session_map"}
	for _, t := range tables {
		if _, err := tx.Exec(`DELETE FROM ` + t); err != nil {
			return fmt.Errorf("chatstore: clear all: %s: %w", t, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("chatstore: clear all: commit: %w", err)
	}
	return nil
}
