package chat

// Event payloads carried on the bus for live conversation deltas. Field
// tags match the wire contract so the transport can decode frames into
// them directly.

// OnlineStatus reports a friend going online or offline.
type OnlineStatus struct {
	FriendID string `json:"friendId"`
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

// UnreadUpdate replaces a conversation's unread counts wholesale.
type UnreadUpdate struct {
	ConversationID string         `json:"conversationId"`
	UnreadCounts   map[string]int `json:"unreadCounts"`
}

// ConversationUpdate replaces a conversation's preview and unread counts,
// sent when a message arrives or is read.
type ConversationUpdate struct {
	ConversationID string         `json:"conversationId"`
	LastMessage    *LastMessage   `json:"lastMessage"`
	UnreadCounts   map[string]int `json:"unreadCounts"`
}

// NewMessage is the authoritative live message event. The sender's own
// messages come back through this same path (no local echo).
type NewMessage struct {
	ConversationID string  `json:"conversationId"`
	Message        Message `json:"message"`
}

// TypingUpdate reports a remote user's typing state.
type TypingUpdate struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

// CommandError is a server-side rejection of an outbound command.
type CommandError struct {
	Error string `json:"error"`
}
