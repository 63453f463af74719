package chatstore

import "fmt"

// ListAttachments returns a conversation's messages carrying an attachment
// of the given kind, newest first, via attachments_index — spec §3.6's
// dedicated index exists so this never has to scan the full messages
// table.
func (s *Store) ListAttachments(convID string, kind AttachmentKind, limit int) ([]Message, error) {
	rows, err := s.db.Query(`SELECT msg_id FROM attachments_index WHERE conv_id = ? AND kind_u8 = ? ORDER BY ts_rev ASC LIMIT ?`,
		convID, attachmentKindCode(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("chatstore: list attachments: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("chatstore: list attachments: scan: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	out := make([]Message, 0, len(ids))
	for _, id := range ids {
		row := s.db.QueryRow(`SELECT `+messageColumns+` FROM messages WHERE conv_id = ? AND msg_id = ?`, convID, id)
		m, err := scanMessage(row)
		if err != nil {
			return nil, fmt.Errorf("chatstore: list attachments: load %s: %w", id, err)
		}
		out = append(out, m)
	}
	return out, nil
}
