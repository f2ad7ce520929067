// Package archive mirrors the live conversation state into the profile's
// SQLite cache so history survives restarts and is searchable offline.
package archive

import (
	"context"
	"sync"

	"github.com/thegoddo/ripple/internal/bus"
	"github.com/thegoddo/ripple/internal/chat"
	"github.com/thegoddo/ripple/internal/store"
	"github.com/thegoddo/ripple/internal/timeline"
	"github.com/thegoddo/ripple/internal/transport"
	"go.uber.org/zap"
)

// Archiver ingests live messages and history pages into the store. All
// writes are idempotent upserts, so redelivered events and retried pages
// are absorbed by the database instead of tracked here.
type Archiver struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger

	mu     sync.RWMutex
	userID string

	cancel context.CancelFunc
}

func New(db *store.DB, b *bus.Bus, logger *zap.Logger) *Archiver {
	return &Archiver{db: db, bus: b, logger: logger}
}

// SetIdentity installs the local user id used for the from_me flag.
func (a *Archiver) SetIdentity(userID string) {
	a.mu.Lock()
	a.userID = userID
	a.mu.Unlock()
}

// Start subscribes to live messages and history pages on the bus.
func (a *Archiver) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	convCh, convUnsub := a.bus.Subscribe(bus.NSConversation, 256)
	tlCh, tlUnsub := a.bus.Subscribe(bus.NSTimeline, 256)

	go func() {
		defer convUnsub()
		defer tlUnsub()
		for {
			select {
			case evt := <-convCh:
				if evt.Kind == transport.KindMessage {
					if p, ok := evt.Payload.(chat.NewMessage); ok {
						a.ingestMessage(evt.ID, p.Message)
					}
				}
			case evt := <-tlCh:
				switch evt.Kind {
				case "timeline.hydrated", "timeline.older":
					if p, ok := evt.Payload.(timeline.PageEvent); ok {
						a.ingestPage(evt.ID, p)
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the event loop.
func (a *Archiver) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
}

// IngestConversations archives the directory snapshot. Called after
// hydration and again whenever the caller wants a fresh mirror.
func (a *Archiver) IngestConversations(convs []chat.Conversation) {
	a.mu.RLock()
	userID := a.userID
	a.mu.RUnlock()

	for _, c := range convs {
		row := &store.Conversation{
			ID:             c.ID,
			FriendID:       c.Friend.ID,
			FriendUsername: c.Friend.Username,
			UnreadCount:    c.UnreadCounts[userID],
		}
		if c.LastMessage != nil {
			row.LastMessageAt = c.LastMessage.Timestamp.UnixMilli()
			row.LastMessagePreview = c.LastMessage.Content
		}
		if err := a.db.UpsertConversation(row); err != nil {
			a.logger.Error("archive conversation", zap.String("conversation_id", c.ID), zap.Error(err))
		}
	}
}

func (a *Archiver) ingestMessage(eventID string, m chat.Message) {
	if err := a.db.UpsertMessage(a.toRow(m)); err != nil {
		a.logger.Error("archive message",
			zap.String("event_id", eventID),
			zap.String("msg_id", m.ID),
			zap.Error(err))
	}
}

func (a *Archiver) ingestPage(eventID string, p timeline.PageEvent) {
	rows := make([]store.Message, 0, len(p.Page.Messages))
	for _, m := range p.Page.Messages {
		rows = append(rows, *a.toRow(m))
	}
	if err := a.db.UpsertMessageBatch(rows); err != nil {
		a.logger.Error("archive page",
			zap.String("event_id", eventID),
			zap.String("conversation_id", p.ConversationID),
			zap.Error(err))
	}
}

func (a *Archiver) toRow(m chat.Message) *store.Message {
	a.mu.RLock()
	userID := a.userID
	a.mu.RUnlock()

	return &store.Message{
		ConversationID: m.ConversationID,
		MsgID:          m.ID,
		SenderID:       m.Sender.ID,
		SenderUsername: m.Sender.Username,
		Body:           m.Content,
		ContentKind:    chat.ParseContent(m.Content).Kind.String(),
		FromMe:         userID != "" && m.Sender.ID == userID,
		Read:           m.Read,
		Timestamp:      m.CreatedAt.UnixMilli(),
	}
}
