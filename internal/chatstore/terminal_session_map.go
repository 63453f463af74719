package chatstore

import (
	"database/sql"
	"fmt"

	"github.com/golutra/golutra/internal/apperr"
)

// SetTerminalSessionMapping records which remote agent session a given
// local key (e.g. "<conv_id>:<terminal_id>") resolved to, spec §4.9's
// terminal_session_map table — used by the post-ready planner's
// ExtractSessionId action (C7) to remember a CLI-assigned session id
// across daemon restarts.
func (s *Store) SetTerminalSessionMapping(mapKey, remoteSessionID string) error {
	_, err := s.db.Exec(`INSERT INTO terminal_session_map (map_key, remote_session_id) VALUES (?, ?)
		ON CONFLICT (map_key) DO UPDATE SET remote_session_id = excluded.remote_session_id`,
		mapKey, remoteSessionID)
	if err != nil {
		return fmt.Errorf("chatstore: set terminal session mapping: %w", err)
	}
	return nil
}

// GetTerminalSessionMapping looks up the remote session id for mapKey.
func (s *Store) GetTerminalSessionMapping(mapKey string) (string, error) {
	var remoteID string
	err := s.db.QueryRow(`SELECT remote_session_id FROM terminal_session_map WHERE map_key = ?`, mapKey).Scan(&remoteID)
	if err == sql.ErrNoRows {
		return "", apperr.New(apperr.KindNotFound, "GetTerminalSessionMapping", "no mapping for key")
	}
	if err != nil {
		return "", fmt.Errorf("chatstore: get terminal session mapping: %w", err)
	}
	return remoteID, nil
}

// DeleteTerminalSessionMapping removes a mapping, e.g. when a session ends.
func (s *Store) DeleteTerminalSessionMapping(mapKey string) error {
	if _, err := s.db.Exec(`DELETE FROM terminal_session_map WHERE map_key = ?`, mapKey); err != nil {
		return fmt.Errorf("chatstore: delete terminal session mapping: %w", err)
	}
	return nil
}
