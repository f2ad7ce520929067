package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/thegoddo/ripple/internal/bus"
	"github.com/thegoddo/ripple/internal/chat"
	"go.uber.org/zap"
)

type fakeConn struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu     sync.Mutex
	writes [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-f.in:
		return data, nil
	case <-f.closed:
		return nil, errors.New("connection closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeConn) Write(_ context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, data)
	return nil
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) Writes() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.writes...)
}

// drop simulates the server dropping the connection.
func (f *fakeConn) drop() {
	f.once.Do(func() { close(f.closed) })
}

func (f *fakeConn) push(t *testing.T, event string, payload any) {
	t.Helper()
	raw, err := encodeFrame(event, payload)
	if err != nil {
		t.Fatal(err)
	}
	f.in <- raw
}

func testSession(dial DialFunc) (*Session, *bus.Bus) {
	b := bus.New()
	s := NewSession("ws://test", "tok", b, zap.NewNop())
	s.dial = dial
	return s, b
}

func recvEvent(t *testing.T, ch <-chan bus.Event) bus.Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return bus.Event{}
	}
}

func TestInboundEventsPublishedInOrder(t *testing.T) {
	conn := newFakeConn()
	s, b := testSession(func(context.Context, string, string) (Conn, error) {
		return conn, nil
	})
	ch, unsub := b.Subscribe(bus.NSConversation, 16)
	defer unsub()

	if err := s.Connect(context.Background(), chat.Identity{ID: "u1"}); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer s.Disconnect()

	conn.push(t, EvNewMessage, chat.NewMessage{
		ConversationID: "c1",
		Message:        chat.Message{ID: "m1", Content: "hi"},
	})
	conn.push(t, EvUpdateTyping, chat.TypingUpdate{UserID: "f1", IsTyping: true})

	evt := recvEvent(t, ch)
	if evt.Kind != KindMessage {
		t.Fatalf("first kind = %q, want %q", evt.Kind, KindMessage)
	}
	nm, ok := evt.Payload.(chat.NewMessage)
	if !ok {
		t.Fatalf("payload type = %T", evt.Payload)
	}
	if nm.Message.ID != "m1" || nm.ConversationID != "c1" {
		t.Errorf("payload = %+v", nm)
	}

	evt = recvEvent(t, ch)
	if evt.Kind != KindTyping {
		t.Fatalf("second kind = %q, want %q", evt.Kind, KindTyping)
	}
	tu := evt.Payload.(chat.TypingUpdate)
	if tu.UserID != "f1" || !tu.IsTyping {
		t.Errorf("payload = %+v", tu)
	}
}

func TestEmitWritesFrame(t *testing.T) {
	conn := newFakeConn()
	s, _ := testSession(func(context.Context, string, string) (Conn, error) {
		return conn, nil
	})
	if err := s.Connect(context.Background(), chat.Identity{ID: "u1"}); err != nil {
		t.Fatal(err)
	}
	defer s.Disconnect()

	err := s.Emit(EvSendMessage, map[string]string{"conversationId": "c1", "content": "hi"})
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	writes := conn.Writes()
	if len(writes) != 1 {
		t.Fatalf("got %d writes, want 1", len(writes))
	}
	f, err := decodeFrame(writes[0])
	if err != nil {
		t.Fatal(err)
	}
	if f.Event != EvSendMessage {
		t.Errorf("event = %q", f.Event)
	}
	var data map[string]string
	if err := json.Unmarshal(f.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data["conversationId"] != "c1" {
		t.Errorf("data = %v", data)
	}
}

func TestEmitNotConnected(t *testing.T) {
	s, _ := testSession(func(context.Context, string, string) (Conn, error) {
		return newFakeConn(), nil
	})
	if err := s.Emit(EvTyping, nil); err == nil {
		t.Error("Emit() before Connect should fail")
	}
}

func TestDropReconnectsOnce(t *testing.T) {
	conns := []*fakeConn{newFakeConn(), newFakeConn()}
	dials := 0
	s, b := testSession(func(context.Context, string, string) (Conn, error) {
		c := conns[dials]
		dials++
		return c, nil
	})
	ch, unsub := b.Subscribe(bus.NSSession, 16)
	defer unsub()

	if err := s.Connect(context.Background(), chat.Identity{ID: "u1"}); err != nil {
		t.Fatal(err)
	}
	defer s.Disconnect()

	if evt := recvEvent(t, ch); evt.Kind != KindConnected {
		t.Fatalf("kind = %q, want %q", evt.Kind, KindConnected)
	}

	conns[0].drop()

	if evt := recvEvent(t, ch); evt.Kind != KindReconnecting {
		t.Fatalf("kind = %q, want %q", evt.Kind, KindReconnecting)
	}
	if evt := recvEvent(t, ch); evt.Kind != KindConnected {
		t.Fatalf("kind = %q, want %q", evt.Kind, KindConnected)
	}
	if dials != 2 {
		t.Errorf("dials = %d, want 2", dials)
	}

	// The replacement connection still delivers events.
	convCh, convUnsub := b.Subscribe(bus.NSConversation, 16)
	defer convUnsub()
	conns[1].push(t, EvUpdateTyping, chat.TypingUpdate{UserID: "f1", IsTyping: true})
	if evt := recvEvent(t, convCh); evt.Kind != KindTyping {
		t.Errorf("kind = %q, want %q", evt.Kind, KindTyping)
	}
}

func TestReconnectExhaustionIsFatal(t *testing.T) {
	conn := newFakeConn()
	dials := 0
	s, b := testSession(func(context.Context, string, string) (Conn, error) {
		dials++
		if dials == 1 {
			return conn, nil
		}
		return nil, fmt.Errorf("refused")
	})
	ch, unsub := b.Subscribe(bus.NSSession, 16)
	defer unsub()

	if err := s.Connect(context.Background(), chat.Identity{ID: "u1"}); err != nil {
		t.Fatal(err)
	}

	if evt := recvEvent(t, ch); evt.Kind != KindConnected {
		t.Fatalf("kind = %q", evt.Kind)
	}

	conn.drop()

	if evt := recvEvent(t, ch); evt.Kind != KindReconnecting {
		t.Fatalf("kind = %q, want %q", evt.Kind, KindReconnecting)
	}
	// Single retry, then a fatal notice; no infinite retry.
	if evt := recvEvent(t, ch); evt.Kind != KindDisconnected {
		t.Fatalf("kind = %q, want %q", evt.Kind, KindDisconnected)
	}
	if dials != 2 {
		t.Errorf("dials = %d, want 2", dials)
	}
}

func TestCycleReconnects(t *testing.T) {
	dials := 0
	s, b := testSession(func(context.Context, string, string) (Conn, error) {
		dials++
		return newFakeConn(), nil
	})
	ch, unsub := b.Subscribe(bus.NSSession, 16)
	defer unsub()

	if err := s.Connect(context.Background(), chat.Identity{ID: "u1"}); err != nil {
		t.Fatal(err)
	}
	defer s.Disconnect()

	if evt := recvEvent(t, ch); evt.Kind != KindConnected {
		t.Fatalf("kind = %q", evt.Kind)
	}

	if err := s.Cycle(); err != nil {
		t.Fatalf("Cycle() error = %v", err)
	}
	if evt := recvEvent(t, ch); evt.Kind != KindConnected {
		t.Fatalf("kind after cycle = %q, want %q", evt.Kind, KindConnected)
	}
	if dials != 2 {
		t.Errorf("dials = %d, want 2", dials)
	}
}

func TestConnectTwiceFails(t *testing.T) {
	s, _ := testSession(func(context.Context, string, string) (Conn, error) {
		return newFakeConn(), nil
	})
	if err := s.Connect(context.Background(), chat.Identity{ID: "u1"}); err != nil {
		t.Fatal(err)
	}
	defer s.Disconnect()

	if err := s.Connect(context.Background(), chat.Identity{ID: "u2"}); err == nil {
		t.Error("second Connect should fail: one connection per identity")
	}
}
