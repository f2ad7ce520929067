package archive

import (
	"time"

	"github.com/thegoddo/ripple/internal/chat"
	"github.com/thegoddo/ripple/internal/store"
)

// Conversations rebuilds domain conversations from archived rows, used to
// seed the directory when the backend is unreachable. Presence and unread
// counts are live-only, so friends come back offline with an empty unread
// map.
func Conversations(rows []store.Conversation) []chat.Conversation {
	out := make([]chat.Conversation, 0, len(rows))
	for _, r := range rows {
		c := chat.Conversation{
			ID:           r.ID,
			Friend:       chat.Friend{ID: r.FriendID, Username: r.FriendUsername},
			UnreadCounts: map[string]int{},
		}
		if r.LastMessageAt > 0 || r.LastMessagePreview != "" {
			c.LastMessage = &chat.LastMessage{
				Content:   r.LastMessagePreview,
				Timestamp: time.UnixMilli(r.LastMessageAt),
			}
		}
		out = append(out, c)
	}
	return out
}

// Messages rebuilds domain messages from archived rows. ListMessages
// returns newest first; the result here is oldest first, ready for display.
func Messages(rows []store.Message) []chat.Message {
	out := make([]chat.Message, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		out = append(out, chat.Message{
			ID:             r.MsgID,
			ConversationID: r.ConversationID,
			Sender:         chat.Sender{ID: r.SenderID, Username: r.SenderUsername},
			Content:        r.Body,
			Read:           r.Read,
			CreatedAt:      time.UnixMilli(r.Timestamp),
		})
	}
	return out
}
