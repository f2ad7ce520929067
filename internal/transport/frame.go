package transport

import "encoding/json"

// Wire event names, as emitted and received on the WebSocket.
const (
	// Outbound commands.
	EvRequest     = "conversation:request"
	EvSendMessage = "conversation:send-message"
	EvTyping      = "conversation:typing"
	EvMarkAsRead  = "conversation:mark-as-read"

	// Inbound events.
	EvOnlineStatus    = "conversation:online-status"
	EvAccept          = "conversation:accept"
	EvUnreadCounts    = "conversation:update-unread-counts"
	EvUpdate          = "conversation:update-conversation"
	EvNewMessage      = "conversation:new-message"
	EvUpdateTyping    = "conversation:update-typing"
	EvRequestError    = "conversation:request:error"
	EvSendError       = "conversation:send-message:error"
	EvMarkAsReadError = "conversation:mark-as-read:error"
)

// Bus kinds published for inbound events, one per wire event.
const (
	KindOnlineStatus  = "conversation.online_status"
	KindAccept        = "conversation.accept"
	KindUnreadCounts  = "conversation.unread_counts"
	KindUpdate        = "conversation.update"
	KindMessage       = "conversation.message"
	KindTyping        = "conversation.typing"
	KindRequestError  = "conversation.request_error"
	KindSendError     = "conversation.send_error"
	KindMarkReadError = "conversation.mark_read_error"

	KindConnected    = "session.connected"
	KindReconnecting = "session.reconnecting"
	KindDisconnected = "session.disconnected"
)

// frame is the wire envelope: one named event per text frame.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func encodeFrame(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(frame{Event: event, Data: data})
}

func decodeFrame(raw []byte) (frame, error) {
	var f frame
	err := json.Unmarshal(raw, &f)
	return f, err
}
