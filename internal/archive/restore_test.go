package archive

import (
	"testing"

	"github.com/thegoddo/ripple/internal/store"
)

func TestRestoreMessagesOldestFirst(t *testing.T) {
	// Rows come from ListMessages, newest first.
	rows := []store.Message{
		{ConversationID: "c1", MsgID: "m2", SenderID: "f1", SenderUsername: "ana", Body: "two", Read: true, Timestamp: 2000},
		{ConversationID: "c1", MsgID: "m1", SenderID: "u1", SenderUsername: "me", Body: "one", Timestamp: 1000},
	}

	msgs := Messages(rows)
	if len(msgs) != 2 || msgs[0].ID != "m1" || msgs[1].ID != "m2" {
		t.Fatalf("order = %+v", msgs)
	}
	if msgs[0].CreatedAt.UnixMilli() != 1000 {
		t.Errorf("timestamp = %v", msgs[0].CreatedAt)
	}
	if msgs[1].Sender.Username != "ana" || !msgs[1].Read {
		t.Errorf("m2 = %+v", msgs[1])
	}
}

func TestRestoreConversations(t *testing.T) {
	rows := []store.Conversation{
		{ID: "c1", FriendID: "f1", FriendUsername: "ana", LastMessageAt: 5000, LastMessagePreview: "later"},
		{ID: "c2", FriendID: "f2", FriendUsername: "bob"},
	}

	convs := Conversations(rows)
	if len(convs) != 2 {
		t.Fatalf("got %d conversations", len(convs))
	}
	if convs[0].Friend.ID != "f1" || convs[0].Friend.Online {
		t.Errorf("friend = %+v (presence is live-only)", convs[0].Friend)
	}
	if convs[0].LastMessage == nil || convs[0].LastMessage.Content != "later" ||
		convs[0].LastMessage.Timestamp.UnixMilli() != 5000 {
		t.Errorf("last message = %+v", convs[0].LastMessage)
	}
	if convs[1].LastMessage != nil {
		t.Errorf("c2 last message = %+v, want nil", convs[1].LastMessage)
	}
	if convs[1].UnreadCounts == nil {
		t.Error("unread map must be non-nil")
	}
}
