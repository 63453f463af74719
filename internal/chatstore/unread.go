package chatstore

import (
	"database/sql"
	"fmt"
)

// UnreadCount implements spec §4.10's P5 invariant: the number of messages
// in conv newer than the user's last-read marker, excluding the user's own
// messages (a user is never "unread" on their own sends). A user with no
// last_read_message_id sees every message in the conversation, other than
// their own, as unread.
func (s *Store) UnreadCount(userID, convID string) (int, error) {
	var lastReadID sql.NullString
	err := s.db.QueryRow(`SELECT last_read_message_id FROM user_convs WHERE user_id = ? AND conv_id = ?`, userID, convID).Scan(&lastReadID)
	if err == sql.ErrNoRows {
		lastReadID = sql.NullString{}
	} else if err != nil {
		return 0, fmt.Errorf("chatstore: unread count: settings: %w", err)
	}

	if !lastReadID.Valid || lastReadID.String == "" {
		var n int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE conv_id = ? AND (sender_id IS NULL OR sender_id != ?)`, convID, userID).Scan(&n); err != nil {
			return 0, fmt.Errorf("chatstore: unread count: %w", err)
		}
		return n, nil
	}

	var lastReadCreated int64
	if err := s.db.QueryRow(`SELECT created_at FROM messages WHERE conv_id = ? AND msg_id = ?`, convID, lastReadID.String).Scan(&lastReadCreated); err != nil {
		if err == sql.ErrNoRows {
			// The marked message no longer exists (repaired away); treat
			// as fully read rather than re-surfacing everything.
			return 0, nil
		}
		return 0, fmt.Errorf("chatstore: unread count: cursor: %w", err)
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM messages
		WHERE conv_id = ? AND created_at > ? AND (sender_id IS NULL OR sender_id != ?)`,
		convID, lastReadCreated, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("chatstore: unread count: %w", err)
	}
	return n, nil
}

// UnreadTotal sums UnreadCount across every conversation userID belongs to,
// skipping muted conversations (spec §3.5 / §4.10).
func (s *Store) UnreadTotal(userID string) (int, error) {
	rows, err := s.db.Query(`SELECT DISTINCT conv_id FROM members WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("chatstore: unread total: %w", err)
	}
	var convIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("chatstore: unread total: scan: %w", err)
		}
		convIDs = append(convIDs, id)
	}
	rows.Close()

	total := 0
	for _, convID := range convIDs {
		var muted int
		if err := s.db.QueryRow(`SELECT muted FROM user_convs WHERE user_id = ? AND conv_id = ?`, userID, convID).Scan(&muted); err != nil && err != sql.ErrNoRows {
			return 0, fmt.Errorf("chatstore: unread total: muted check: %w", err)
		}
		if muted != 0 {
			continue
		}
		n, err := s.UnreadCount(userID, convID)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// MarkRead sets userID's last-read marker on conv to messageID, upserting
// the user_convs row if it doesn't exist yet.
func (s *Store) MarkRead(userID, convID, messageID string) error {
	now := nowMS()
	_, err := s.db.Exec(`INSERT INTO user_convs (user_id, conv_id, last_read_message_id, last_active_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, conv_id) DO UPDATE SET last_read_message_id = excluded.last_read_message_id, last_active_at = excluded.last_active_at`,
		userID, convID, messageID, now)
	if err != nil {
		return fmt.Errorf("chatstore: mark read: %w", err)
	}
	return nil
}

// SetPinned upserts a conversation's pinned flag for userID.
func (s *Store) SetPinned(userID, convID string, pinned bool) error {
	_, err := s.db.Exec(`INSERT INTO user_convs (user_id, conv_id, pinned) VALUES (?, ?, ?)
		ON CONFLICT (user_id, conv_id) DO UPDATE SET pinned = excluded.pinned`,
		userID, convID, boolToInt(pinned))
	if err != nil {
		return fmt.Errorf("chatstore: set pinned: %w", err)
	}
	return nil
}

// SetMuted upserts a conversation's muted flag for userID.
func (s *Store) SetMuted(userID, convID string, muted bool) error {
	_, err := s.db.Exec(`INSERT INTO user_convs (user_id, conv_id, muted) VALUES (?, ?, ?)
		ON CONFLICT (user_id, conv_id) DO UPDATE SET muted = excluded.muted`,
		userID, convID, boolToInt(muted))
	if err != nil {
		return fmt.Errorf("chatstore: set muted: %w", err)
	}
	return nil
}

// GetUserConvSettings loads userID's per-conversation settings, returning
// the zero value (unpinned, unmuted, no read marker) if no row exists yet.
func (s *Store) GetUserConvSettings(userID, convID string) (UserConvSettings, error) {
	out := UserConvSettings{UserID: userID, ConversationID: convID}
	var pinned, muted int
	var lastRead sql.NullString
	var lastActive sql.NullInt64
	err := s.db.QueryRow(`SELECT pinned, muted, last_read_message_id, last_active_at FROM user_convs WHERE user_id = ? AND conv_id = ?`,
		userID, convID).Scan(&pinned, &muted, &lastRead, &lastActive)
	if err == sql.ErrNoRows {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("chatstore: get user conv settings: %w", err)
	}
	out.Pinned = pinned != 0
	out.Muted = muted != 0
	out.LastReadMessageID = lastRead.String
	if lastActive.Valid {
		v := lastActive.Int64
		out.LastActiveAt = &v
	}
	return out, nil
}
