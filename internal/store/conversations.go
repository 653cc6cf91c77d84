package store

import (
	"database/sql"
	"fmt"
)

// EnsureConversation creates the conversation if it does not exist yet and
// returns it. Existing conversations are returned unchanged.
func (s *Store) EnsureConversation(conversationID, userID, title string) (*Conversation, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("conversation_id is required")
	}
	_, err := s.db.Exec(`
		INSERT INTO conversations (conversation_id, user_id, title, status)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO NOTHING
	`, conversationID, userID, title, ConversationActive)
	if err != nil {
		return nil, fmt.Errorf("ensure conversation: %w", err)
	}
	return s.GetConversation(conversationID)
}

// GetConversation returns a conversation by id, or (nil, nil) if absent.
func (s *Store) GetConversation(conversationID string) (*Conversation, error) {
	var c Conversation
	err := s.db.QueryRow(`
		SELECT conversation_id, user_id, title, status, created_at, updated_at
		FROM conversations WHERE conversation_id = ?
	`, conversationID).Scan(&c.ConversationID, &c.UserID, &c.Title, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &c, nil
}

// SetConversationStatus updates the conversation status. Returns false when
// the conversation does not exist.
func (s *Store) SetConversationStatus(conversationID, status string) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE conversations SET status = ?, updated_at = datetime('now')
		WHERE conversation_id = ?
	`, status, conversationID)
	if err != nil {
		return false, fmt.Errorf("set conversation status: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListConversations returns conversations for a user, newest first.
func (s *Store) ListConversations(userID string, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT conversation_id, user_id, title, status, created_at, updated_at
		FROM conversations`
	args := []any{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY updated_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ConversationID, &c.UserID, &c.Title, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
