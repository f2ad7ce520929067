package store

// Conversation is an archived conversation row.
type Conversation struct {
	ID                 string
	FriendID           string
	FriendUsername     string
	UnreadCount        int
	LastMessageAt      int64
	LastMessagePreview string
}

// Message is an archived message row. Timestamps are unix milliseconds.
type Message struct {
	ID             int64
	ConversationID string
	MsgID          string
	SenderID       string
	SenderUsername string
	Body           string
	ContentKind    string
	FromMe         bool
	Read           bool
	Timestamp      int64
}

// SearchResult holds a message with a search snippet.
type SearchResult struct {
	Message Message
	Snippet string
}
