package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/thegoddo/ripple/internal/api"
	"github.com/thegoddo/ripple/internal/bus"
	"github.com/thegoddo/ripple/internal/chat"
	"github.com/thegoddo/ripple/internal/transport"
	"go.uber.org/zap"
)

type emitted struct {
	event   string
	payload any
}

type fakeEmitter struct {
	emits []emitted
	err   error
}

func (f *fakeEmitter) Emit(event string, payload any) error {
	if f.err != nil {
		return f.err
	}
	f.emits = append(f.emits, emitted{event, payload})
	return nil
}

type fakeChecker struct {
	result api.CheckResult
	err    error
	codes  []string
}

func (f *fakeChecker) CheckConnectCode(_ context.Context, code string) (api.CheckResult, error) {
	f.codes = append(f.codes, code)
	return f.result, f.err
}

func testCoordinator(checker *fakeChecker) (*Coordinator, *fakeEmitter, *bus.Bus) {
	em := &fakeEmitter{}
	b := bus.New()
	if checker == nil {
		checker = &fakeChecker{result: api.CheckResult{Success: true}}
	}
	c := NewCoordinator(em, checker, b, zap.NewNop())
	c.SetIdentity(chat.Identity{ID: "u1", Username: "me"})
	return c, em, b
}

func TestSendTextBuildsCommand(t *testing.T) {
	c, em, _ := testCoordinator(nil)

	if err := c.SendText("c1", "f1", "hello"); err != nil {
		t.Fatal(err)
	}
	if len(em.emits) != 1 || em.emits[0].event != transport.EvSendMessage {
		t.Fatalf("emits = %+v", em.emits)
	}
	p := em.emits[0].payload.(sendPayload)
	if p.ConversationID != "c1" || p.UserID != "u1" || p.FriendID != "f1" || p.Content != "hello" {
		t.Errorf("payload = %+v", p)
	}
}

func TestSendEncodesLocationAndImage(t *testing.T) {
	c, em, _ := testCoordinator(nil)

	if err := c.SendLocation("c1", "f1", -23.5, -46.6); err != nil {
		t.Fatal(err)
	}
	if err := c.SendImage("c1", "f1", "https://cdn/x.png"); err != nil {
		t.Fatal(err)
	}

	loc := em.emits[0].payload.(sendPayload).Content
	if kind := chat.ParseContent(loc).Kind; kind != chat.ContentLocation {
		t.Errorf("location content = %q parsed as %v", loc, kind)
	}
	img := em.emits[1].payload.(sendPayload).Content
	if kind := chat.ParseContent(img).Kind; kind != chat.ContentImage {
		t.Errorf("image content = %q parsed as %v", img, kind)
	}
}

func TestSendRejectsEmptyAndMissingIdentity(t *testing.T) {
	c, em, _ := testCoordinator(nil)
	if err := c.SendText("c1", "f1", ""); err == nil {
		t.Error("empty message accepted")
	}

	bare := NewCoordinator(em, &fakeChecker{}, bus.New(), zap.NewNop())
	if err := bare.SendText("c1", "f1", "hi"); err == nil {
		t.Error("send without identity accepted")
	}
	if len(em.emits) != 0 {
		t.Errorf("emits = %+v", em.emits)
	}
}

func TestTypingCarriesFlag(t *testing.T) {
	c, em, _ := testCoordinator(nil)

	if err := c.Typing("c1", "f1", true); err != nil {
		t.Fatal(err)
	}
	if err := c.Typing("c1", "f1", false); err != nil {
		t.Fatal(err)
	}

	if em.emits[0].event != transport.EvTyping {
		t.Errorf("event = %q", em.emits[0].event)
	}
	if p := em.emits[0].payload.(typingPayload); !p.IsTyping {
		t.Errorf("payload = %+v", p)
	}
	if p := em.emits[1].payload.(typingPayload); p.IsTyping {
		t.Errorf("payload = %+v", p)
	}
}

func TestMarkAsRead(t *testing.T) {
	c, em, _ := testCoordinator(nil)

	if err := c.MarkAsRead("c1", "f1"); err != nil {
		t.Fatal(err)
	}
	if em.emits[0].event != transport.EvMarkAsRead {
		t.Errorf("event = %q", em.emits[0].event)
	}
	p := em.emits[0].payload.(sendPayload)
	if p.Content != "" {
		t.Errorf("mark-as-read must not carry content: %+v", p)
	}
}

func TestRequestValidCodeEmits(t *testing.T) {
	checker := &fakeChecker{result: api.CheckResult{Success: true}}
	c, em, _ := testCoordinator(checker)

	if err := c.Request(context.Background(), "ABC123"); err != nil {
		t.Fatal(err)
	}
	if len(checker.codes) != 1 || checker.codes[0] != "ABC123" {
		t.Errorf("checked codes = %v", checker.codes)
	}
	if len(em.emits) != 1 || em.emits[0].event != transport.EvRequest {
		t.Fatalf("emits = %+v", em.emits)
	}
	if p := em.emits[0].payload.(requestPayload); p.ConnectCode != "ABC123" || p.UserID != "u1" {
		t.Errorf("payload = %+v", p)
	}
}

func TestRequestInvalidCodeNoticesWithoutEmit(t *testing.T) {
	checker := &fakeChecker{result: api.CheckResult{Success: false, Message: "User not found!"}}
	c, em, b := testCoordinator(checker)

	ch, unsub := b.Subscribe(bus.NSNotice, 16)
	defer unsub()

	if err := c.Request(context.Background(), "nope"); err != nil {
		t.Fatal(err)
	}
	if len(em.emits) != 0 {
		t.Errorf("invalid code emitted a request: %+v", em.emits)
	}
	select {
	case evt := <-ch:
		if evt.Kind != "notice.error" || evt.Payload.(string) != "User not found!" {
			t.Errorf("notice = %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for notice")
	}
}

func TestRequestCheckFailurePropagates(t *testing.T) {
	checker := &fakeChecker{err: errors.New("backend down")}
	c, em, _ := testCoordinator(checker)

	if err := c.Request(context.Background(), "ABC123"); err == nil {
		t.Fatal("expected error")
	}
	if len(em.emits) != 0 {
		t.Errorf("emits = %+v", em.emits)
	}
}
