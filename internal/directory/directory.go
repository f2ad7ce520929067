package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/thegoddo/ripple/internal/bus"
	"github.com/thegoddo/ripple/internal/chat"
	"github.com/thegoddo/ripple/internal/transport"
	"go.uber.org/zap"
)

// Lister is the REST surface the directory hydrates from.
type Lister interface {
	Conversations(ctx context.Context) ([]chat.Conversation, error)
}

// Cycler lets the accept reducer force a transport reconnect so the
// server-side room membership picks up the new conversation.
type Cycler interface {
	Cycle() error
}

// Directory is the authoritative in-memory conversation set: a one-shot
// hydration plus live reducers. All mutations happen on the event loop
// goroutine; the UI reads snapshots.
type Directory struct {
	api     Lister
	session Cycler
	bus     *bus.Bus
	logger  *zap.Logger

	mu     sync.RWMutex
	convs  []chat.Conversation
	loaded bool

	cancel context.CancelFunc
}

// New creates a directory. Call Load then Start.
func New(api Lister, session Cycler, b *bus.Bus, logger *zap.Logger) *Directory {
	return &Directory{
		api:     api,
		session: session,
		bus:     b,
		logger:  logger,
	}
}

// Load hydrates the conversation set from the backend. The returned order
// is the server's; live reducers only ever update or append.
func (d *Directory) Load(ctx context.Context) error {
	convs, err := d.api.Conversations(ctx)
	if err != nil {
		return fmt.Errorf("load conversations: %w", err)
	}
	d.mu.Lock()
	d.convs = convs
	d.loaded = true
	d.mu.Unlock()

	d.bus.Publish(bus.Event{Kind: "directory.loaded", Payload: len(convs)})
	return nil
}

// Seed installs an archived conversation set for offline use. A set from a
// successful Load always wins; Seed after Load is a no-op.
func (d *Directory) Seed(convs []chat.Conversation) {
	d.mu.Lock()
	if d.loaded {
		d.mu.Unlock()
		return
	}
	d.convs = convs
	d.mu.Unlock()

	d.bus.Publish(bus.Event{Kind: "directory.seeded", Payload: len(convs)})
}

// Start subscribes to live conversation events on the bus.
func (d *Directory) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	ch, unsub := d.bus.Subscribe(bus.NSConversation, 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				d.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the event loop.
func (d *Directory) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
}

func (d *Directory) handleEvent(evt bus.Event) {
	d.logger.Debug("conversation event",
		zap.String("event_id", evt.ID),
		zap.String("kind", evt.Kind))

	switch evt.Kind {
	case transport.KindOnlineStatus:
		if p, ok := evt.Payload.(chat.OnlineStatus); ok {
			d.applyOnlineStatus(p)
		}
	case transport.KindAccept:
		if p, ok := evt.Payload.(chat.Conversation); ok {
			d.applyAccept(p)
		}
	case transport.KindUnreadCounts:
		if p, ok := evt.Payload.(chat.UnreadUpdate); ok {
			d.applyUnreadCounts(p)
		}
	case transport.KindUpdate:
		if p, ok := evt.Payload.(chat.ConversationUpdate); ok {
			d.applyUpdate(p)
		}
	case transport.KindRequestError:
		d.notifyError("Unable to add conversation!")
	case transport.KindMarkReadError:
		d.notifyError("Unable to mark conversation as read!")
	case transport.KindSendError:
		if p, ok := evt.Payload.(chat.CommandError); ok && p.Error != "" {
			d.notifyError(p.Error)
		} else {
			d.notifyError("Unable to send message!")
		}
	}
}

// applyOnlineStatus updates the matching friend's presence flag. The
// user-visible notification fires only when the value actually changes;
// duplicate events are silent.
func (d *Directory) applyOnlineStatus(p chat.OnlineStatus) {
	changed := false

	d.mu.Lock()
	for i := range d.convs {
		if d.convs[i].Friend.ID == p.FriendID {
			if d.convs[i].Friend.Online != p.Online {
				d.convs[i].Friend.Online = p.Online
				changed = true
			}
			break
		}
	}
	d.mu.Unlock()

	if changed {
		state := "offline"
		if p.Online {
			state = "online"
		}
		d.bus.Publish(bus.Event{Kind: "notice.info", Payload: fmt.Sprintf("%s is %s", p.Username, state)})
		d.publishUpdated()
	}
}

// applyAccept appends the newly accepted conversation and cycles the
// transport so the server re-scopes the session's rooms.
func (d *Directory) applyAccept(conv chat.Conversation) {
	d.mu.Lock()
	d.convs = append(d.convs, conv)
	d.mu.Unlock()

	d.bus.Publish(bus.Event{
		Kind:    "notice.info",
		Payload: fmt.Sprintf("You and %s are now friends!", conv.Friend.Username),
	})
	d.publishUpdated()

	if err := d.session.Cycle(); err != nil {
		d.logger.Error("reconnect after accept failed", zap.Error(err))
	}
}

// applyUnreadCounts replaces the conversation's unread map wholesale. The
// local user's count is authoritative only from the server.
func (d *Directory) applyUnreadCounts(p chat.UnreadUpdate) {
	d.mu.Lock()
	for i := range d.convs {
		if d.convs[i].ID == p.ConversationID {
			d.convs[i].UnreadCounts = p.UnreadCounts
			break
		}
	}
	d.mu.Unlock()
	d.publishUpdated()
}

// applyUpdate replaces the preview and unread counts, sent when a message
// arrives or is read.
func (d *Directory) applyUpdate(p chat.ConversationUpdate) {
	d.mu.Lock()
	for i := range d.convs {
		if d.convs[i].ID == p.ConversationID {
			d.convs[i].LastMessage = p.LastMessage
			d.convs[i].UnreadCounts = p.UnreadCounts
			break
		}
	}
	d.mu.Unlock()
	d.publishUpdated()
}

func (d *Directory) notifyError(msg string) {
	d.bus.Publish(bus.Event{Kind: "notice.error", Payload: msg})
}

func (d *Directory) publishUpdated() {
	d.bus.Publish(bus.Event{Kind: "directory.updated"})
}

// Snapshot returns a copy of the current conversation set.
func (d *Directory) Snapshot() []chat.Conversation {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]chat.Conversation(nil), d.convs...)
}

// Get returns the conversation with the given id.
func (d *Directory) Get(conversationID string) (chat.Conversation, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, c := range d.convs {
		if c.ID == conversationID {
			return c, true
		}
	}
	return chat.Conversation{}, false
}

// Filter returns the conversations whose friend username contains term,
// case-insensitively. This is a pure projection over the base set.
func (d *Directory) Filter(term string) []chat.Conversation {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if term == "" {
		return append([]chat.Conversation(nil), d.convs...)
	}
	term = strings.ToLower(term)
	var out []chat.Conversation
	for _, c := range d.convs {
		if strings.Contains(strings.ToLower(c.Friend.Username), term) {
			out = append(out, c)
		}
	}
	return out
}
