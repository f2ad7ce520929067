package presence

import (
	"context"
	"sync"

	"github.com/thegoddo/ripple/internal/bus"
	"github.com/thegoddo/ripple/internal/chat"
	"github.com/thegoddo/ripple/internal/transport"
	"go.uber.org/zap"
)

// TypingEvent is the payload for presence.typing.
type TypingEvent struct {
	UserID   string
	IsTyping bool
}

// Tracker holds the per-friend typing flags fed by live typing events.
// Duplicate events are absorbed: the indicator redraws only on change.
type Tracker struct {
	bus    *bus.Bus
	logger *zap.Logger

	mu     sync.RWMutex
	typing map[string]bool

	cancel context.CancelFunc
}

func NewTracker(b *bus.Bus, logger *zap.Logger) *Tracker {
	return &Tracker{
		bus:    b,
		logger: logger,
		typing: make(map[string]bool),
	}
}

// Start subscribes to live typing events on the bus.
func (t *Tracker) Start(ctx context.Context) {
	ctx, t.cancel = context.WithCancel(ctx)
	ch, unsub := t.bus.Subscribe(bus.NSConversation, 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				if evt.Kind == transport.KindTyping {
					if p, ok := evt.Payload.(chat.TypingUpdate); ok {
						t.apply(p)
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the event loop.
func (t *Tracker) Stop() {
	if t.cancel != nil {
		t.cancel()
	}
}

func (t *Tracker) apply(p chat.TypingUpdate) {
	t.mu.Lock()
	changed := t.typing[p.UserID] != p.IsTyping
	if p.IsTyping {
		t.typing[p.UserID] = true
	} else {
		delete(t.typing, p.UserID)
	}
	t.mu.Unlock()

	if changed {
		t.bus.Publish(bus.Event{Kind: "presence.typing", Payload: TypingEvent{UserID: p.UserID, IsTyping: p.IsTyping}})
	}
}

// IsTyping reports whether the given user is currently typing.
func (t *Tracker) IsTyping(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.typing[userID]
}
