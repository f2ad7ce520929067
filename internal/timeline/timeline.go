package timeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/thegoddo/ripple/internal/bus"
	"github.com/thegoddo/ripple/internal/chat"
	"github.com/thegoddo/ripple/internal/transport"
	"go.uber.org/zap"
)

// Fetcher is the REST surface the timeline pages history from.
type Fetcher interface {
	Messages(ctx context.Context, conversationID, cursor string) (chat.Page, error)
}

// PageEvent is the payload for timeline.hydrated and timeline.older.
type PageEvent struct {
	ConversationID string
	Page           chat.Page
}

// AppendEvent is the payload for timeline.appended.
type AppendEvent struct {
	ConversationID string
	Message        chat.Message
}

// Timeline caches each conversation's history as an ordered page sequence:
// index 0 is the most recent page, higher indices are older. Backward
// pagination appends at the end; live messages append to page 0 after
// dedup by id across all cached pages. Only the active conversation
// receives live appends, and fetch results for a conversation that is no
// longer active are discarded at completion time.
type Timeline struct {
	api    Fetcher
	bus    *bus.Bus
	logger *zap.Logger

	mu           sync.Mutex
	active       string
	pages        map[string][]chat.Page
	inflight     map[string]bool
	lastScrolled string

	cancel context.CancelFunc
}

// New creates a timeline backed by the given fetcher.
func New(api Fetcher, b *bus.Bus, logger *zap.Logger) *Timeline {
	return &Timeline{
		api:      api,
		bus:      b,
		logger:   logger,
		pages:    make(map[string][]chat.Page),
		inflight: make(map[string]bool),
	}
}

// Start subscribes to live message events on the bus.
func (t *Timeline) Start(ctx context.Context) {
	ctx, t.cancel = context.WithCancel(ctx)
	ch, unsub := t.bus.Subscribe(bus.NSConversation, 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				if evt.Kind == transport.KindMessage {
					if p, ok := evt.Payload.(chat.NewMessage); ok {
						t.logger.Debug("live message",
							zap.String("event_id", evt.ID),
							zap.String("conversation_id", p.Message.ConversationID))
						t.AppendLive(p)
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the event loop.
func (t *Timeline) Stop() {
	if t.cancel != nil {
		t.cancel()
	}
}

// SetActive switches the active conversation. Side effects (scroll, live
// appends) stop targeting the old conversation immediately.
func (t *Timeline) SetActive(conversationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = conversationID
}

// Active returns the active conversation id.
func (t *Timeline) Active() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// FetchLatest hydrates the conversation with its most recent page,
// replacing any cached pages. A fetch error leaves the cache unchanged.
func (t *Timeline) FetchLatest(ctx context.Context, conversationID string) error {
	t.mu.Lock()
	if t.inflight[conversationID] {
		t.mu.Unlock()
		return nil
	}
	t.inflight[conversationID] = true
	t.mu.Unlock()

	page, err := t.api.Messages(ctx, conversationID, "")

	t.mu.Lock()
	defer t.mu.Unlock()
	t.inflight[conversationID] = false
	if err != nil {
		return fmt.Errorf("fetch latest: %w", err)
	}
	if t.active != conversationID {
		// The user moved on while the fetch was in flight.
		t.logger.Debug("discarding stale page", zap.String("conversation_id", conversationID))
		return nil
	}
	t.pages[conversationID] = []chat.Page{page}
	t.bus.Publish(bus.Event{Kind: "timeline.hydrated", Payload: PageEvent{ConversationID: conversationID, Page: page}})
	return nil
}

// FetchOlder loads the next older page using the cached cursor. It is a
// no-op while a fetch for this conversation is already in flight, and
// once the backend reports no further history.
func (t *Timeline) FetchOlder(ctx context.Context, conversationID string) error {
	t.mu.Lock()
	ps := t.pages[conversationID]
	if len(ps) == 0 || !ps[len(ps)-1].HasNext || t.inflight[conversationID] {
		t.mu.Unlock()
		return nil
	}
	cursor := ps[len(ps)-1].NextCursor
	t.inflight[conversationID] = true
	t.mu.Unlock()

	page, err := t.api.Messages(ctx, conversationID, cursor)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.inflight[conversationID] = false
	if err != nil {
		return fmt.Errorf("fetch older: %w", err)
	}
	if t.active != conversationID {
		t.logger.Debug("discarding stale page", zap.String("conversation_id", conversationID))
		return nil
	}

	// A retried request may deliver a page we already hold; keep ids
	// unique across the whole cache.
	seen := t.idSetLocked(conversationID)
	kept := page.Messages[:0:0]
	for _, m := range page.Messages {
		if !seen[m.ID] {
			kept = append(kept, m)
		}
	}
	page.Messages = kept

	t.pages[conversationID] = append(t.pages[conversationID], page)
	t.bus.Publish(bus.Event{Kind: "timeline.older", Payload: PageEvent{ConversationID: conversationID, Page: page}})
	return nil
}

// AppendLive merges a live message into the active conversation. A message
// already present in any cached page is a no-op: the sender's own echo and
// reconnect redeliveries arrive through this same path.
func (t *Timeline) AppendLive(p chat.NewMessage) {
	t.mu.Lock()
	if p.ConversationID != t.active {
		t.mu.Unlock()
		return
	}
	ps := t.pages[p.ConversationID]
	if len(ps) == 0 {
		t.mu.Unlock()
		return
	}
	if t.idSetLocked(p.ConversationID)[p.Message.ID] {
		t.mu.Unlock()
		return
	}
	ps[0].Messages = append(ps[0].Messages, p.Message)
	t.pages[p.ConversationID] = ps
	t.mu.Unlock()

	t.bus.Publish(bus.Event{Kind: "timeline.appended", Payload: AppendEvent{ConversationID: p.ConversationID, Message: p.Message}})
}

// Flatten returns the conversation's cached history as one oldest→newest
// sequence: page order reversed, then concatenated.
func (t *Timeline) Flatten(conversationID string) []chat.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	ps := t.pages[conversationID]
	var out []chat.Message
	for i := len(ps) - 1; i >= 0; i-- {
		out = append(out, ps[i].Messages...)
	}
	return out
}

// HasMore reports whether an older page can still be requested.
func (t *Timeline) HasMore(conversationID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	ps := t.pages[conversationID]
	return len(ps) > 0 && ps[len(ps)-1].HasNext
}

// Loading reports whether a fetch for the conversation is in flight.
func (t *Timeline) Loading(conversationID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inflight[conversationID]
}

// Hydrated reports whether the conversation has any cached pages.
func (t *Timeline) Hydrated(conversationID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pages[conversationID]) > 0
}

// ConsumeInitialScroll reports whether the view should snap to the bottom:
// true exactly once per conversation switch, on first hydration, not on
// every refetch.
func (t *Timeline) ConsumeInitialScroll(conversationID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.pages[conversationID]) == 0 || t.lastScrolled == conversationID {
		return false
	}
	t.lastScrolled = conversationID
	return true
}

// idSetLocked collects all cached message ids. Caller holds t.mu.
func (t *Timeline) idSetLocked(conversationID string) map[string]bool {
	set := make(map[string]bool)
	for _, page := range t.pages[conversationID] {
		for _, m := range page.Messages {
			set[m.ID] = true
		}
	}
	return set
}
