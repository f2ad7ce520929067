package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/thegoddo/ripple/internal/bus"
	"github.com/thegoddo/ripple/internal/chat"
	"github.com/thegoddo/ripple/internal/store"
	"github.com/thegoddo/ripple/internal/timeline"
	"github.com/thegoddo/ripple/internal/transport"
	"go.uber.org/zap"
)

func testArchiver(t *testing.T) (*Archiver, *store.DB, *bus.Bus) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	b := bus.New()
	a := New(db, b, zap.NewNop())
	a.SetIdentity("u1")
	return a, db, b
}

func waitRows(t *testing.T, db *store.DB, conversationID string, want int) []store.Message {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		msgs, err := db.ListMessages(conversationID, 0, 100)
		if err != nil {
			t.Fatal(err)
		}
		if len(msgs) == want {
			return msgs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("rows in %s never reached %d", conversationID, want)
	return nil
}

func TestLiveMessageIsArchived(t *testing.T) {
	a, db, b := testArchiver(t)
	a.Start(context.Background())
	defer a.Stop()

	m := chat.Message{
		ID:             "m1",
		ConversationID: "c1",
		Sender:         chat.Sender{ID: "u1", Username: "me"},
		Content:        "hello",
		CreatedAt:      time.UnixMilli(1000),
	}
	b.Publish(bus.Event{Kind: transport.KindMessage,
		Payload: chat.NewMessage{ConversationID: "c1", Message: m}})

	rows := waitRows(t, db, "c1", 1)
	if rows[0].MsgID != "m1" || !rows[0].FromMe || rows[0].ContentKind != "text" {
		t.Errorf("row = %+v", rows[0])
	}
}

func TestHistoryPageIsArchivedIdempotently(t *testing.T) {
	a, db, b := testArchiver(t)
	a.Start(context.Background())
	defer a.Stop()

	page := timeline.PageEvent{
		ConversationID: "c1",
		Page: chat.Page{Messages: []chat.Message{
			{ID: "m1", ConversationID: "c1", Sender: chat.Sender{ID: "f1"}, Content: "hey", CreatedAt: time.UnixMilli(1000)},
			{ID: "m2", ConversationID: "c1", Sender: chat.Sender{ID: "u1"}, Content: "geo:-23.5,-46.6", CreatedAt: time.UnixMilli(2000)},
		}},
	}
	b.Publish(bus.Event{Kind: "timeline.hydrated", Payload: page})
	waitRows(t, db, "c1", 2)

	// The same page redelivered (a refetch) adds nothing.
	b.Publish(bus.Event{Kind: "timeline.older", Payload: page})
	time.Sleep(50 * time.Millisecond)
	rows := waitRows(t, db, "c1", 2)

	byID := map[string]store.Message{}
	for _, r := range rows {
		byID[r.MsgID] = r
	}
	if byID["m2"].ContentKind != "location" || !byID["m2"].FromMe {
		t.Errorf("m2 = %+v", byID["m2"])
	}
	if byID["m1"].FromMe {
		t.Errorf("m1 = %+v", byID["m1"])
	}
}

func TestIngestConversations(t *testing.T) {
	a, db, _ := testArchiver(t)

	ts := time.UnixMilli(5000)
	a.IngestConversations([]chat.Conversation{
		{
			ID:           "c1",
			Friend:       chat.Friend{ID: "f1", Username: "ana"},
			UnreadCounts: map[string]int{"u1": 2},
			LastMessage:  &chat.LastMessage{Content: "later", Timestamp: ts},
		},
		{ID: "c2", Friend: chat.Friend{ID: "f2", Username: "bob"}},
	})

	convs, err := db.ListConversations(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 2 {
		t.Fatalf("got %d conversations", len(convs))
	}
	if convs[0].ID != "c1" || convs[0].FriendUsername != "ana" || convs[0].LastMessagePreview != "later" {
		t.Errorf("c1 = %+v", convs[0])
	}
	if convs[0].UnreadCount != 2 {
		t.Errorf("unread = %d, want 2 (local user's entry)", convs[0].UnreadCount)
	}
}
