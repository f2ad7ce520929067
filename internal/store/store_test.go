package store

import (
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate; a second run applies nothing.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (init + fts)", result.Version)
	}
}

func TestConversationUpsertAndList(t *testing.T) {
	db := testDB(t)

	c := &Conversation{ID: "c1", FriendID: "f1", FriendUsername: "ana", LastMessageAt: 1000, LastMessagePreview: "hello"}
	if err := db.UpsertConversation(c); err != nil {
		t.Fatal(err)
	}

	// Update preview.
	c.LastMessagePreview = "bye"
	c.LastMessageAt = 2000
	if err := db.UpsertConversation(c); err != nil {
		t.Fatal(err)
	}

	convs, err := db.ListConversations(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 1 {
		t.Fatalf("got %d conversations, want 1", len(convs))
	}
	if convs[0].LastMessagePreview != "bye" {
		t.Errorf("preview = %q, want bye", convs[0].LastMessagePreview)
	}
}

func TestListConversationsOrdersByRecency(t *testing.T) {
	db := testDB(t)

	for _, c := range []Conversation{
		{ID: "old", LastMessageAt: 1000},
		{ID: "new", LastMessageAt: 3000},
		{ID: "mid", LastMessageAt: 2000},
	} {
		c := c
		if err := db.UpsertConversation(&c); err != nil {
			t.Fatal(err)
		}
	}

	convs, err := db.ListConversations(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 3 || convs[0].ID != "new" || convs[2].ID != "old" {
		t.Errorf("order = %+v", convs)
	}
}

func TestGetConversationMissingIsNil(t *testing.T) {
	db := testDB(t)

	c, err := db.GetConversation("missing")
	if err != nil {
		t.Fatal(err)
	}
	if c != nil {
		t.Errorf("got %+v, want nil", c)
	}
}

func TestMessageUpsertIsIdempotent(t *testing.T) {
	db := testDB(t)

	m := &Message{ConversationID: "c1", MsgID: "m1", SenderID: "f1", Body: "hello", ContentKind: "text", Timestamp: 1000}
	if err := db.UpsertMessage(m); err != nil {
		t.Fatal(err)
	}
	// Re-ingesting the same page must not duplicate the row.
	m.Read = true
	if err := db.UpsertMessage(m); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListMessages("c1", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if !msgs[0].Read {
		t.Error("read flag not updated by upsert")
	}
}

func TestUpsertMessageBatch(t *testing.T) {
	db := testDB(t)

	batch := []Message{
		{ConversationID: "c1", MsgID: "m1", Body: "first", Timestamp: 1000},
		{ConversationID: "c1", MsgID: "m2", Body: "second", Timestamp: 2000},
		{ConversationID: "c1", MsgID: "m1", Body: "first again", Timestamp: 1000},
	}
	if err := db.UpsertMessageBatch(batch); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListMessages("c1", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
}

func TestListMessagesKeysetPagination(t *testing.T) {
	db := testDB(t)

	for i, ts := range []int64{1000, 2000, 3000} {
		if err := db.UpsertMessage(&Message{ConversationID: "c1", MsgID: string(rune('a' + i)), Body: "b", Timestamp: ts}); err != nil {
			t.Fatal(err)
		}
	}

	page, err := db.ListMessages("c1", 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].Timestamp != 3000 {
		t.Fatalf("first page = %+v", page)
	}

	older, err := db.ListMessages("c1", page[len(page)-1].Timestamp, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(older) != 1 || older[0].Timestamp != 1000 {
		t.Errorf("older page = %+v", older)
	}
}

func TestSearchMessages(t *testing.T) {
	db := testDB(t)

	seed := []Message{
		{ConversationID: "c1", MsgID: "m1", Body: "meet me at the station", Timestamp: 1000},
		{ConversationID: "c1", MsgID: "m2", Body: "running late", Timestamp: 2000},
		{ConversationID: "c2", MsgID: "m3", Body: "station is closed", Timestamp: 3000},
	}
	if err := db.UpsertMessageBatch(seed); err != nil {
		t.Fatal(err)
	}

	results, err := db.SearchMessages("station", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	scoped, err := db.SearchMessages("station", "c1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(scoped) != 1 || scoped[0].Message.MsgID != "m1" {
		t.Errorf("scoped = %+v", scoped)
	}
	if scoped[0].Snippet == "" {
		t.Error("empty snippet")
	}
}
