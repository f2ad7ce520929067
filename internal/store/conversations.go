package store

import (
	"database/sql"
	"time"
)

// UpsertConversation inserts or updates a conversation record.
func (db *DB) UpsertConversation(c *Conversation) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO conversations (id, friend_id, friend_username, unread_count, last_message_at, last_message_preview, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			friend_id = excluded.friend_id,
			friend_username = excluded.friend_username,
			unread_count = excluded.unread_count,
			last_message_at = excluded.last_message_at,
			last_message_preview = excluded.last_message_preview,
			updated_at = excluded.updated_at`,
		c.ID, c.FriendID, c.FriendUsername, c.UnreadCount, c.LastMessageAt, c.LastMessagePreview, now)
	return err
}

// ListConversations returns conversations sorted by last message timestamp
// descending.
func (db *DB) ListConversations(limit, offset int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, friend_id, friend_username, unread_count, last_message_at, last_message_preview
		FROM conversations
		ORDER BY last_message_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.FriendID, &c.FriendUsername, &c.UnreadCount, &c.LastMessageAt, &c.LastMessagePreview); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// GetConversation returns a single conversation by id, nil when absent.
func (db *DB) GetConversation(id string) (*Conversation, error) {
	var c Conversation
	err := db.QueryRow(`
		SELECT id, friend_id, friend_username, unread_count, last_message_at, last_message_preview
		FROM conversations
		WHERE id = ?`, id).
		Scan(&c.ID, &c.FriendID, &c.FriendUsername, &c.UnreadCount, &c.LastMessageAt, &c.LastMessagePreview)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
