package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AppendItem appends an item to the conversation log. The insert is
// idempotent on item_id: appending an item that already exists is a no-op
// and returns false. A missing item_id is generated.
func (s *Store) AppendItem(item *Item) (bool, error) {
	if item.ConversationID == "" {
		return false, fmt.Errorf("conversation_id is required")
	}
	if item.ItemID == "" {
		item.ItemID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO conversation_items
			(item_id, conversation_id, thread_id, task_id, role, event, payload, agent_name, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		item.ItemID,
		item.ConversationID,
		item.ThreadID,
		item.TaskID,
		item.Role,
		item.Event,
		item.Payload,
		item.AgentName,
		item.Metadata,
		item.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("append item: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}
	item.Seq, _ = res.LastInsertId()
	return true, nil
}

// ItemFilter holds query parameters for ListItems.
type ItemFilter struct {
	ConversationID string
	ThreadID       string
	Event          string
	Limit          int
	Offset         int
}

// ListItems returns items for a conversation in insertion order.
func (s *Store) ListItems(filter ItemFilter) ([]Item, error) {
	query := `SELECT seq, item_id, conversation_id, thread_id, task_id, role, event, payload, agent_name, metadata, created_at
		FROM conversation_items WHERE conversation_id = ?`
	args := []any{filter.ConversationID}

	if filter.ThreadID != "" {
		query += " AND thread_id = ?"
		args = append(args, filter.ThreadID)
	}
	if filter.Event != "" {
		query += " AND event = ?"
		args = append(args, filter.Event)
	}

	query += " ORDER BY seq ASC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		err := rows.Scan(
			&it.Seq,
			&it.ItemID,
			&it.ConversationID,
			&it.ThreadID,
			&it.TaskID,
			&it.Role,
			&it.Event,
			&it.Payload,
			&it.AgentName,
			&it.Metadata,
			&it.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
