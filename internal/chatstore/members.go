package chatstore

import (
	"database/sql"
	"fmt"
)

// AddMember adds userID to conv, a no-op if already a member.
func (s *Store) AddMember(convID, userID string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO members (conv_id, user_id, joined_at) VALUES (?, ?, ?)`, convID, userID, nowMS())
	if err != nil {
		return fmt.Errorf("chatstore: add member: %w", err)
	}
	return nil
}

// RemoveMember drops userID from conv's membership and any per-user
// settings row for that pairing.
func (s *Store) RemoveMember(convID, userID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("chatstore: remove member: begin: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM members WHERE conv_id = ? AND user_id = ?`, convID, userID); err != nil {
		return fmt.Errorf("chatstore: remove member: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM user_convs WHERE conv_id = ? AND user_id = ?`, convID, userID); err != nil {
		return fmt.Errorf("chatstore: remove member: settings: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM timeline_index WHERE conv_id = ? AND user_id = ?`, convID, userID); err != nil {
		return fmt.Errorf("chatstore: remove member: timeline: %w", err)
	}
	return tx.Commit()
}

// SetConversationMembers replaces conv's full membership with exactly
// members. An empty list clears membership entirely — spec §9 leaves this
// case's semantics open; this implementation takes "empty means no
// members", treating the conversation as membership-less rather than
// refusing the call (documented as an Open Question resolution).
func (s *Store) SetConversationMembers(convID string, members []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("chatstore: set members: begin: %w", err)
	}
	defer tx.Rollback()
	if err := syncMembers(tx, convID, members); err != nil {
		return err
	}
	return tx.Commit()
}

// ListMembers returns conv's membership.
func (s *Store) ListMembers(convID string) ([]MemberEntry, error) {
	rows, err := s.db.Query(`SELECT conv_id, user_id, joined_at, nickname FROM members WHERE conv_id = ? ORDER BY joined_at ASC`, convID)
	if err != nil {
		return nil, fmt.Errorf("chatstore: list members: %w", err)
	}
	defer rows.Close()

	var out []MemberEntry
	for rows.Next() {
		var m MemberEntry
		var nick sql.NullString
		if err := rows.Scan(&m.ConversationID, &m.UserID, &m.JoinedAt, &nick); err != nil {
			return nil, fmt.Errorf("chatstore: list members: scan: %w", err)
		}
		m.Nickname = nick.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// SetNickname sets a member's nickname within one conversation.
func (s *Store) SetNickname(convID, userID, nickname string) error {
	res, err := s.db.Exec(`UPDATE members SET nickname = ? WHERE conv_id = ? AND user_id = ?`, nullIfEmpty(nickname), convID, userID)
	if err != nil {
		return fmt.Errorf("chatstore: set nickname: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("chatstore: set nickname: member not found")
	}
	return nil
}
