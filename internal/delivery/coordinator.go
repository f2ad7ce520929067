package delivery

import (
	"context"
	"fmt"
	"sync"

	"github.com/thegoddo/ripple/internal/api"
	"github.com/thegoddo/ripple/internal/bus"
	"github.com/thegoddo/ripple/internal/chat"
	"github.com/thegoddo/ripple/internal/transport"
	"go.uber.org/zap"
)

// Emitter is the outbound command surface of the transport session.
type Emitter interface {
	Emit(event string, payload any) error
}

// Checker validates a connect code against the REST backend before the
// request command goes out over the socket.
type Checker interface {
	CheckConnectCode(ctx context.Context, connectCode string) (api.CheckResult, error)
}

// sendPayload is the wire shape of conversation:send-message and
// conversation:mark-as-read commands.
type sendPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	FriendID       string `json:"friendId"`
	Content        string `json:"content,omitempty"`
}

type typingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	FriendID       string `json:"friendId"`
	IsTyping       bool   `json:"isTyping"`
}

type requestPayload struct {
	ConnectCode string `json:"connectCode"`
	UserID      string `json:"userId"`
}

// Coordinator builds and emits outbound conversation commands. Messages
// are fire-and-forget: the server echoes the stored message back as a
// live event, and failures come back as error events on the bus.
type Coordinator struct {
	session Emitter
	api     Checker
	bus     *bus.Bus
	logger  *zap.Logger

	mu       sync.RWMutex
	identity chat.Identity
}

func NewCoordinator(session Emitter, checker Checker, b *bus.Bus, logger *zap.Logger) *Coordinator {
	return &Coordinator{session: session, api: checker, bus: b, logger: logger}
}

// SetIdentity installs the authenticated local user. Commands fail until
// this is called once at startup.
func (c *Coordinator) SetIdentity(id chat.Identity) {
	c.mu.Lock()
	c.identity = id
	c.mu.Unlock()
}

func (c *Coordinator) userID() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity.ID == "" {
		return "", fmt.Errorf("no identity")
	}
	return c.identity.ID, nil
}

// SendText emits a plain text message to the conversation.
func (c *Coordinator) SendText(conversationID, friendID, text string) error {
	return c.send(conversationID, friendID, text)
}

// SendLocation emits the user's coordinates as a location message.
func (c *Coordinator) SendLocation(conversationID, friendID string, lat, lng float64) error {
	return c.send(conversationID, friendID, chat.EncodeLocation(lat, lng))
}

// SendImage emits an already-uploaded image by its URL.
func (c *Coordinator) SendImage(conversationID, friendID, imageURL string) error {
	return c.send(conversationID, friendID, chat.EncodeImage(imageURL))
}

func (c *Coordinator) send(conversationID, friendID, content string) error {
	userID, err := c.userID()
	if err != nil {
		return err
	}
	if content == "" {
		return fmt.Errorf("empty message")
	}
	return c.session.Emit(transport.EvSendMessage, sendPayload{
		ConversationID: conversationID,
		UserID:         userID,
		FriendID:       friendID,
		Content:        content,
	})
}

// Typing emits the typing signal for the conversation.
func (c *Coordinator) Typing(conversationID, friendID string, isTyping bool) error {
	userID, err := c.userID()
	if err != nil {
		return err
	}
	return c.session.Emit(transport.EvTyping, typingPayload{
		ConversationID: conversationID,
		UserID:         userID,
		FriendID:       friendID,
		IsTyping:       isTyping,
	})
}

// MarkAsRead tells the server the local user has seen the conversation.
// Safe to emit on every hydration; the server treats it as idempotent.
func (c *Coordinator) MarkAsRead(conversationID, friendID string) error {
	userID, err := c.userID()
	if err != nil {
		return err
	}
	return c.session.Emit(transport.EvMarkAsRead, sendPayload{
		ConversationID: conversationID,
		UserID:         userID,
		FriendID:       friendID,
	})
}

// Request asks the owner of connectCode to start a conversation. The code
// is validated over REST first so a typo surfaces immediately instead of
// as a silent server-side drop.
func (c *Coordinator) Request(ctx context.Context, connectCode string) error {
	userID, err := c.userID()
	if err != nil {
		return err
	}

	res, err := c.api.CheckConnectCode(ctx, connectCode)
	if err != nil {
		return fmt.Errorf("check connect code: %w", err)
	}
	if !res.Success {
		msg := res.Message
		if msg == "" {
			msg = "Invalid connect code!"
		}
		c.bus.Publish(bus.Event{Kind: "notice.error", Payload: msg})
		return nil
	}

	return c.session.Emit(transport.EvRequest, requestPayload{
		ConnectCode: connectCode,
		UserID:      userID,
	})
}
