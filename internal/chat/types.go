package chat

import "time"

// Identity is the authenticated local user, as issued by the auth backend.
// It is immutable for the lifetime of a session; one identity per process.
type Identity struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	ConnectCode string `json:"connectCode"`
	Email       string `json:"email"`
	FullName    string `json:"fullName"`
}

// Friend is the remote party of a conversation plus their presence flag.
// Online is sourced from presence events only, never inferred from activity.
type Friend struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	ConnectCode string `json:"connectCode"`
	Email       string `json:"email"`
	FullName    string `json:"fullName"`
	Online      bool   `json:"online"`
}

// LastMessage is the conversation preview shown in the sidebar.
type LastMessage struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is a two-party thread. UnreadCounts is keyed per participant
// id so each side tracks its own total; the local user's entry is
// authoritative only from the server.
type Conversation struct {
	ID           string         `json:"conversationId"`
	Friend       Friend         `json:"friend"`
	UnreadCounts map[string]int `json:"unreadCounts"`
	LastMessage  *LastMessage   `json:"lastMessage"`
}

// Sender identifies who authored a message.
type Sender struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
}

// Message is immutable once created. Ordering is by server-assigned
// creation order, not the client clock.
type Message struct {
	ID             string    `json:"_id"`
	ConversationID string    `json:"conversation"`
	Sender         Sender    `json:"sender"`
	Content        string    `json:"content"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Page is one backward slice of a conversation's history. Messages are
// ordered oldest to newest within the page; NextCursor is the opaque
// boundary token for the next older page.
type Page struct {
	Messages   []Message `json:"messages"`
	NextCursor string    `json:"nextCursor"`
	HasNext    bool      `json:"hasNext"`
}
