package bus

import "time"

// Event is a domain event published on the bus. ID is assigned on publish
// and is used to correlate log lines across subscribers.
type Event struct {
	ID        string
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kind namespaces. Subscribers filter by prefix.
const (
	// conversation.* carry live deltas decoded from the wire:
	// online_status, accept, unread_counts, update, message, typing,
	// request_error, send_error, mark_read_error.
	NSConversation = "conversation."
	// session.* carry transport lifecycle: connected, reconnecting,
	// disconnected.
	NSSession = "session."
	// timeline.* carry page-cache changes: hydrated, older, appended.
	NSTimeline = "timeline."
	// directory.* carry conversation-set changes: loaded, updated.
	NSDirectory = "directory."
	// presence.* carry typing-state changes: typing.
	NSPresence = "presence."
	// notice.* carry user-visible flashes: info, error.
	NSNotice = "notice."
)
