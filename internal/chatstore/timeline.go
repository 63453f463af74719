package chatstore

import (
	"database/sql"
	"fmt"
)

// TimelineEntry is one row of a user's conversation feed, spec §4.10.
type TimelineEntry struct {
	Conversation Conversation
	Pinned       bool
	Unread       int
}

// Timeline renders spec §4.10's two-section feed for userID: pinned
// conversations first (newest-activity-first), then the remaining
// conversations ordered by timeline_index's ts_rev ascending — which, per
// reverseTimestamp's construction, is newest-message-first. limit bounds
// the second section only; pinned conversations are never truncated.
func (s *Store) Timeline(userID string, limit int) ([]TimelineEntry, error) {
	pinnedRows, err := s.db.Query(`SELECT c.conv_id, c.kind, c.created_at, c.custom_name, c.is_default, c.last_message_at, c.last_message_preview
		FROM conversations c
		JOIN user_convs uc ON uc.conv_id = c.conv_id
		WHERE uc.user_id = ? AND uc.pinned = 1
		ORDER BY c.last_message_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("chatstore: timeline: pinned: %w", err)
	}
	pinned, err := scanConversations(pinnedRows)
	if err != nil {
		return nil, fmt.Errorf("chatstore: timeline: pinned scan: %w", err)
	}
	pinnedSet := make(map[string]bool, len(pinned))
	for _, c := range pinned {
		pinnedSet[c.ConversationID] = true
	}

	restRows, err := s.db.Query(`SELECT c.conv_id, c.kind, c.created_at, c.custom_name, c.is_default, c.last_message_at, c.last_message_preview
		FROM timeline_index t
		JOIN conversations c ON c.conv_id = t.conv_id
		WHERE t.user_id = ?
		ORDER BY t.ts_rev ASC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("chatstore: timeline: rest: %w", err)
	}
	rest, err := scanConversations(restRows)
	if err != nil {
		return nil, fmt.Errorf("chatstore: timeline: rest scan: %w", err)
	}

	var out []TimelineEntry
	for _, c := range pinned {
		unread, err := s.UnreadCount(userID, c.ConversationID)
		if err != nil {
			return nil, err
		}
		out = append(out, TimelineEntry{Conversation: c, Pinned: true, Unread: unread})
	}
	for _, c := range rest {
		if pinnedSet[c.ConversationID] {
			continue
		}
		unread, err := s.UnreadCount(userID, c.ConversationID)
		if err != nil {
			return nil, err
		}
		out = append(out, TimelineEntry{Conversation: c, Pinned: false, Unread: unread})
	}
	return out, nil
}

func scanConversations(rows *sql.Rows) ([]Conversation, error) {
	defer rows.Close()
	var out []Conversation
	for rows.Next() {
		var c Conversation
		var isDefault int
		var lastMessageAt sql.NullInt64
		var customName, preview sql.NullString
		if err := rows.Scan(&c.ConversationID, &c.Kind, &c.CreatedAt, &customName, &isDefault, &lastMessageAt, &preview); err != nil {
			return nil, err
		}
		c.CustomName = customName.String
		c.IsDefault = isDefault != 0
		c.LastMessagePreview = preview.String
		if lastMessageAt.Valid {
			v := lastMessageAt.Int64
			c.LastMessageAt = &v
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
