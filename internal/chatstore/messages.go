package chatstore

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/golutra/golutra/internal/apperr"
)

// attachmentPayload is the JSON shape stored in messages.attach_data,
// covering both attachment variants from spec §3.4.
type attachmentPayload struct {
	FilePath  string `json:"file_path,omitempty"`
	FileName  string `json:"file_name,omitempty"`
	FileSize  int64  `json:"file_size,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
	Width     *int   `json:"width,omitempty"`
	Height    *int   `json:"height,omitempty"`
	Thumbnail []byte `json:"thumbnail,omitempty"`
	Title     string `json:"title,omitempty"`
}

// SaveMessage writes msg transactionally, maintaining every invariant spec
// §4.9 lists for save_message:
//  1. the conversation must already exist
//  2. conversations.last_message_at / last_message_preview track the
//     newest message written to that conversation
//  3. the sender, if set, must be a member of the conversation
//  4. exactly one timeline_index row exists per (user, conversation) pair
//     for every member of the conversation: each member's existing rows
//     for the conversation are deleted and one row keyed by the new
//     message's reversed timestamp is inserted
//  5. at most one attachments_index row exists per (conv_id, kind) per
//     message — enforced by the table's composite primary key
//  6. there is never more than one default channel (SaveMessage never
//     creates conversations, so this invariant is EnsureDefaultChannel's
//     to keep, not this function's)
func (s *Store) SaveMessage(msg Message) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("chatstore: save message: begin: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM conversations WHERE conv_id = ?`, msg.ConversationID).Scan(&exists); err != nil {
		return fmt.Errorf("chatstore: save message: check conversation: %w", err)
	}
	if exists == 0 {
		return apperr.New(apperr.KindNotFound, "SaveMessage", "conversation does not exist")
	}

	if msg.SenderID != "" {
		var memberCount int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM members WHERE conv_id = ? AND user_id = ?`, msg.ConversationID, msg.SenderID).Scan(&memberCount); err != nil {
			return fmt.Errorf("chatstore: save message: check membership: %w", err)
		}
		if memberCount == 0 {
			return apperr.New(apperr.KindValidation, "SaveMessage", "sender is not a member of the conversation")
		}
	}

	var sysArgsJSON sql.NullString
	if msg.ContentKind == ContentSystem && len(msg.SystemArgs) > 0 {
		b, err := json.Marshal(msg.SystemArgs)
		if err != nil {
			return fmt.Errorf("chatstore: save message: encode system args: %w", err)
		}
		sysArgsJSON = sql.NullString{String: string(b), Valid: true}
	}

	var attachKind sql.NullString
	var attachData sql.NullString
	if msg.Attachment != nil && msg.Attachment.Kind != AttachmentNone {
		payload := attachmentPayload{
			FilePath: msg.Attachment.FilePath,
			FileName: msg.Attachment.FileName,
			FileSize: msg.Attachment.FileSize,
			MimeType: msg.Attachment.MimeType,
			Width:    msg.Attachment.Width,
			Height:   msg.Attachment.Height,
			Thumbnail: msg.Attachment.Thumbnail,
			Title:    msg.Attachment.Title,
		}
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("chatstore: save message: encode attachment: %w", err)
		}
		attachKind = sql.NullString{String: string(msg.Attachment.Kind), Valid: true}
		attachData = sql.NullString{String: string(b), Valid: true}
	}

	var senderID sql.NullString
	if msg.SenderID != "" {
		senderID = sql.NullString{String: msg.SenderID, Valid: true}
	}

	if _, err := tx.Exec(`INSERT INTO messages
		(conv_id, msg_id, sender_id, created_at, is_ai, status, content_kind, content_text, content_sys_key, content_sys_args, attach_kind, attach_data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ConversationID, msg.MessageID, senderID, msg.CreatedAt, boolToInt(msg.IsAI), msg.Status,
		msg.ContentKind, nullIfEmpty(msg.Text), nullIfEmpty(msg.SystemKey), sysArgsJSON, attachKind, attachData,
	); err != nil {
		return fmt.Errorf("chatstore: save message: insert: %w", err)
	}

	if msg.Attachment != nil && msg.Attachment.Kind != AttachmentNone {
		rev := reverseTimestamp(msg.CreatedAt)
		if _, err := tx.Exec(`INSERT OR REPLACE INTO attachments_index (conv_id, kind_u8, ts_rev, msg_id) VALUES (?, ?, ?, ?)`,
			msg.ConversationID, attachmentKindCode(msg.Attachment.Kind), rev, msg.MessageID); err != nil {
			return fmt.Errorf("chatstore: save message: attachment index: %w", err)
		}
	}

	preview := TruncatePreview(previewText(msg))
	if _, err := tx.Exec(`UPDATE conversations SET last_message_at = ?, last_message_preview = ? WHERE conv_id = ?`,
		msg.CreatedAt, preview, msg.ConversationID); err != nil {
		return fmt.Errorf("chatstore: save message: update conversation: %w", err)
	}

	var memberIDs []string
	rows, err := tx.Query(`SELECT user_id FROM members WHERE conv_id = ?`, msg.ConversationID)
	if err != nil {
		return fmt.Errorf("chatstore: save message: members: %w", err)
	}
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			rows.Close()
			return fmt.Errorf("chatstore: save message: scan member: %w", err)
		}
		memberIDs = append(memberIDs, uid)
	}
	rows.Close()

	rev := reverseTimestamp(msg.CreatedAt)
	for _, uid := range memberIDs {
		if _, err := tx.Exec(`DELETE FROM timeline_index WHERE user_id = ? AND conv_id = ?`, uid, msg.ConversationID); err != nil {
			return fmt.Errorf("chatstore: save message: timeline delete: %w", err)
		}
		if _, err := tx.Exec(`INSERT INTO timeline_index (user_id, ts_rev, conv_id) VALUES (?, ?, ?)`, uid, rev, msg.ConversationID); err != nil {
			return fmt.Errorf("chatstore: save message: timeline insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("chatstore: save message: commit: %w", err)
	}
	return nil
}

// previewText renders the short string stored as a conversation's
// last_message_preview, spec §3.2/§3.4.
func previewText(msg Message) string {
	switch msg.ContentKind {
	case ContentText:
		return msg.Text
	case ContentSystem:
		return msg.SystemKey
	default:
		return ""
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// scanMessage reads one messages row into a Message.
func scanMessage(row interface {
	Scan(dest ...any) error
}) (Message, error) {
	var m Message
	var senderID, text, sysKey, sysArgs, attachKind, attachData sql.NullString
	var isAI int
	if err := row.Scan(&m.ConversationID, &m.MessageID, &senderID, &m.CreatedAt, &isAI, &m.Status,
		&m.ContentKind, &text, &sysKey, &sysArgs, &attachKind, &attachData); err != nil {
		return Message{}, err
	}
	m.SenderID = senderID.String
	m.IsAI = isAI != 0
	m.Text = text.String
	m.SystemKey = sysKey.String
	if sysArgs.Valid && sysArgs.String != "" {
		if err := json.Unmarshal([]byte(sysArgs.String), &m.SystemArgs); err != nil {
			return Message{}, fmt.Errorf("chatstore: scan message: decode system args: %w", err)
		}
	}
	if attachKind.Valid && attachKind.String != "" {
		var payload attachmentPayload
		if attachData.Valid {
			if err := json.Unmarshal([]byte(attachData.String), &payload); err != nil {
				return Message{}, fmt.Errorf("chatstore: scan message: decode attachment: %w", err)
			}
		}
		m.Attachment = &Attachment{
			Kind: AttachmentKind(attachKind.String), FilePath: payload.FilePath, FileName: payload.FileName,
			FileSize: payload.FileSize, MimeType: payload.MimeType, Width: payload.Width, Height: payload.Height,
			Thumbnail: payload.Thumbnail, Title: payload.Title,
		}
	}
	return m, nil
}

const messageColumns = `conv_id, msg_id, sender_id, created_at, is_ai, status, content_kind, content_text, content_sys_key, content_sys_args, attach_kind, attach_data`

// ListMessages returns a conversation's messages oldest-first, optionally
// starting after afterMessageID (pagination cursor) and bounded by limit.
func (s *Store) ListMessages(convID, afterMessageID string, limit int) ([]Message, error) {
	var rows *sql.Rows
	var err error
	if afterMessageID == "" {
		rows, err = s.db.Query(`SELECT `+messageColumns+` FROM messages WHERE conv_id = ? ORDER BY created_at ASC, msg_id ASC LIMIT ?`, convID, limit)
	} else {
		var afterCreated int64
		if err := s.db.QueryRow(`SELECT created_at FROM messages WHERE conv_id = ? AND msg_id = ?`, convID, afterMessageID).Scan(&afterCreated); err != nil {
			if err == sql.ErrNoRows {
				return nil, apperr.New(apperr.KindNotFound, "ListMessages", "cursor message not found")
			}
			return nil, fmt.Errorf("chatstore: list messages: cursor: %w", err)
		}
		rows, err = s.db.Query(`SELECT `+messageColumns+` FROM messages WHERE conv_id = ? AND (created_at > ? OR (created_at = ? AND msg_id > ?))
			ORDER BY created_at ASC, msg_id ASC LIMIT ?`, convID, afterCreated, afterCreated, afterMessageID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("chatstore: list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("chatstore: list messages: scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// RepairInvalidMessages deletes messages whose conversation no longer
// exists and any timeline/attachment index rows left dangling by it — the
// maintenance sweep spec §4.9 names for recovering from a partially
// applied write (e.g. a crash between DeleteConversation steps on an
// older schema version).
func (s *Store) RepairInvalidMessages() (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("chatstore: repair: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM messages WHERE conv_id NOT IN (SELECT conv_id FROM conversations)`)
	if err != nil {
		return 0, fmt.Errorf("chatstore: repair: messages: %w", err)
	}
	n, _ := res.RowsAffected()

	if _, err := tx.Exec(`DELETE FROM attachments_index WHERE conv_id NOT IN (SELECT conv_id FROM conversations)`); err != nil {
		return 0, fmt.Errorf("chatstore: repair: attachments: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM timeline_index WHERE conv_id NOT IN (SELECT conv_id FROM conversations)`); err != nil {
		return 0, fmt.Errorf("chatstore: repair: timeline: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM members WHERE conv_id NOT IN (SELECT conv_id FROM conversations)`); err != nil {
		return 0, fmt.Errorf("chatstore: repair: members: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("chatstore: repair: commit: %w", err)
	}
	return int(n), nil
}
