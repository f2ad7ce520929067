package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/thegoddo/ripple/internal/bus"
	"github.com/thegoddo/ripple/internal/chat"
	"go.uber.org/zap"
)

// Conn is the narrow surface the session needs from a WebSocket connection.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// DialFunc opens a connection to the live event endpoint.
type DialFunc func(ctx context.Context, url, token string) (Conn, error)

// Dial is the production dialer.
func Dial(ctx context.Context, url, token string) (Conn, error) {
	hdr := http.Header{}
	if token != "" {
		hdr.Set("Authorization", "Bearer "+token)
	}
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: hdr})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &wsConn{c: c}, nil
}

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.c.Read(ctx)
	return data, err
}

func (w *wsConn) Write(ctx context.Context, data []byte) error {
	return w.c.Write(ctx, websocket.MessageText, data)
}

func (w *wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "")
}

// Session owns the one live bidirectional connection for the authenticated
// identity. Inbound frames are decoded and published on the bus from a
// single reader goroutine, so subscribers see events in receipt order and
// reducers never need locks against the session.
//
// Reconnection is bounded: one retry per drop, then a fatal
// session.disconnected notice. Cycle is the deliberate
// disconnect+reconnect used when server-side room membership changes
// (the backend scopes subscriptions at connect time).
type Session struct {
	url    string
	token  string
	dial   DialFunc
	bus    *bus.Bus
	logger *zap.Logger

	mu       sync.Mutex
	conn     Conn
	identity chat.Identity
	cancel   context.CancelFunc
}

// NewSession creates a session for the given WebSocket URL. No connection
// is opened until Connect.
func NewSession(url, token string, b *bus.Bus, logger *zap.Logger) *Session {
	return &Session{
		url:    url,
		token:  token,
		dial:   Dial,
		bus:    b,
		logger: logger,
	}
}

// Connect opens the connection for the given identity and starts the read
// loop. A second call without an intervening Disconnect is an error: the
// connection is never multiplexed across identities.
func (s *Session) Connect(ctx context.Context, identity chat.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return fmt.Errorf("session already connected")
	}

	conn, err := s.dial(ctx, s.url, s.token)
	if err != nil {
		s.logger.Warn("connect failed, retrying once", zap.Error(err))
		s.bus.Publish(bus.Event{Kind: KindReconnecting})
		conn, err = s.dial(ctx, s.url, s.token)
		if err != nil {
			s.bus.Publish(bus.Event{Kind: KindDisconnected, Payload: err.Error()})
			return fmt.Errorf("connect: %w", err)
		}
	}

	s.identity = identity
	s.startLocked(conn)
	s.logger.Info("session connected", zap.String("user_id", identity.ID))
	return nil
}

// startLocked installs conn and spawns its read loop. Caller holds s.mu.
func (s *Session) startLocked(conn Conn) {
	readCtx, cancel := context.WithCancel(context.Background())
	s.conn = conn
	s.cancel = cancel
	s.bus.Publish(bus.Event{Kind: KindConnected, Payload: s.identity})
	go s.readLoop(readCtx, conn)
}

// Disconnect tears the connection down. Safe to call when not connected.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnectLocked()
}

func (s *Session) disconnectLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
		s.logger.Info("session disconnected")
	}
}

// Cycle performs a deliberate disconnect+reconnect so the server re-scopes
// the session's subscriptions to the current conversation set.
func (s *Session) Cycle() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity := s.identity
	s.disconnectLocked()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	conn, err := s.dial(ctx, s.url, s.token)
	if err != nil {
		s.bus.Publish(bus.Event{Kind: KindDisconnected, Payload: err.Error()})
		return fmt.Errorf("cycle: %w", err)
	}
	s.identity = identity
	s.startLocked(conn)
	return nil
}

// Emit sends a fire-and-forget command frame.
func (s *Session) Emit(event string, payload any) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("emit %s: session not connected", event)
	}
	data, err := encodeFrame(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return conn.Write(ctx, data)
}

// readLoop reads frames until the connection drops or is cancelled. On a
// drop it retries the dial exactly once; a second failure is fatal to the
// session and surfaced as one disconnected notice.
func (s *Session) readLoop(ctx context.Context, conn Conn) {
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				// Deliberate disconnect.
				return
			}
			s.logger.Warn("connection lost, retrying once", zap.Error(err))
			s.bus.Publish(bus.Event{Kind: KindReconnecting})

			s.mu.Lock()
			s.disconnectLocked()
			dialCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			newConn, dialErr := s.dial(dialCtx, s.url, s.token)
			cancel()
			if dialErr != nil {
				s.mu.Unlock()
				s.logger.Error("reconnect failed", zap.Error(dialErr))
				s.bus.Publish(bus.Event{Kind: KindDisconnected, Payload: dialErr.Error()})
				return
			}
			s.startLocked(newConn)
			s.mu.Unlock()
			return
		}
		s.dispatch(data)
	}
}

// dispatch decodes one inbound frame and publishes its typed payload.
func (s *Session) dispatch(raw []byte) {
	f, err := decodeFrame(raw)
	if err != nil {
		s.logger.Warn("malformed frame", zap.Error(err))
		return
	}

	publish := func(kind string, payload any) {
		if err := json.Unmarshal(f.Data, payload); err != nil {
			s.logger.Warn("malformed payload", zap.String("event", f.Event), zap.Error(err))
			return
		}
		s.bus.Publish(bus.Event{Kind: kind, Payload: deref(payload)})
	}

	switch f.Event {
	case EvOnlineStatus:
		publish(KindOnlineStatus, &chat.OnlineStatus{})
	case EvAccept:
		publish(KindAccept, &chat.Conversation{})
	case EvUnreadCounts:
		publish(KindUnreadCounts, &chat.UnreadUpdate{})
	case EvUpdate:
		publish(KindUpdate, &chat.ConversationUpdate{})
	case EvNewMessage:
		publish(KindMessage, &chat.NewMessage{})
	case EvUpdateTyping:
		publish(KindTyping, &chat.TypingUpdate{})
	case EvRequestError:
		publish(KindRequestError, &chat.CommandError{})
	case EvSendError:
		publish(KindSendError, &chat.CommandError{})
	case EvMarkAsReadError:
		publish(KindMarkReadError, &chat.CommandError{})
	default:
		s.logger.Debug("unknown event", zap.String("event", f.Event))
	}
}

// deref unwraps the pointer used for decoding so subscribers receive
// values, not shared pointers.
func deref(p any) any {
	switch v := p.(type) {
	case *chat.OnlineStatus:
		return *v
	case *chat.Conversation:
		return *v
	case *chat.UnreadUpdate:
		return *v
	case *chat.ConversationUpdate:
		return *v
	case *chat.NewMessage:
		return *v
	case *chat.TypingUpdate:
		return *v
	case *chat.CommandError:
		return *v
	}
	return p
}
