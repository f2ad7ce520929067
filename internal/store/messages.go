package store

import (
	"fmt"
	"time"
)

// UpsertMessage inserts or updates a message (idempotent on
// conversation_id + msg_id).
func (db *DB) UpsertMessage(m *Message) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO messages (conversation_id, msg_id, sender_id, sender_username, body, content_kind, from_me, is_read, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id, msg_id) DO UPDATE SET
			sender_username = excluded.sender_username,
			body = excluded.body,
			is_read = excluded.is_read`,
		m.ConversationID, m.MsgID, m.SenderID, m.SenderUsername, m.Body, m.ContentKind, m.FromMe, m.Read, m.Timestamp, now)
	return err
}

// UpsertMessageBatch writes a whole history page in one transaction.
func (db *DB) UpsertMessageBatch(msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, m := range msgs {
		if _, err := tx.Exec(`
			INSERT INTO messages (conversation_id, msg_id, sender_id, sender_username, body, content_kind, from_me, is_read, timestamp, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(conversation_id, msg_id) DO UPDATE SET
				sender_username = excluded.sender_username,
				body = excluded.body,
				is_read = excluded.is_read`,
			m.ConversationID, m.MsgID, m.SenderID, m.SenderUsername, m.Body, m.ContentKind, m.FromMe, m.Read, m.Timestamp, now); err != nil {
			return fmt.Errorf("upsert message %s: %w", m.MsgID, err)
		}
	}
	return tx.Commit()
}

// ListMessages returns messages for a conversation using keyset pagination
// by timestamp, newest first.
func (db *DB) ListMessages(conversationID string, beforeTs int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT id, conversation_id, msg_id, sender_id, sender_username, body, content_kind, from_me, is_read, timestamp
		FROM messages
		WHERE conversation_id = ? AND timestamp < ?
		ORDER BY timestamp DESC
		LIMIT ?`, conversationID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.MsgID, &m.SenderID, &m.SenderUsername, &m.Body, &m.ContentKind, &m.FromMe, &m.Read, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
