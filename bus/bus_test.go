package bus

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"devkit-go/errcode"
)

func expect(t *testing.T, sub *Subscription, want string) {
	t.Helper()
	select {
	case m := <-sub.Channel():
		if s, _ := m.Payload.(string); s != want {
			t.Fatalf("payload %v, want %q", m.Payload, want)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("timeout waiting for %q", want)
	}
}

func expectNone(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case m := <-sub.Channel():
		t.Fatalf("unexpected message on %v: %v", m.Topic, m.Payload)
	case <-time.After(40 * time.Millisecond):
	}
}

func drain(sub *Subscription, n int) []string {
	var out []string
	deadline := time.After(300 * time.Millisecond)
	for len(out) < n {
		select {
		case m := <-sub.Channel():
			s, _ := m.Payload.(string)
			out = append(out, s)
		case <-deadline:
			n = 0
		}
	}
	sort.Strings(out)
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPublishSubscribe(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("kit")
	sub := c.Subscribe(T("kit", "button", "a"))

	c.Publish(c.NewMessage(T("kit", "button", "a"), "pressed", false))
	expect(t, sub, "pressed")

	c.Publish(c.NewMessage(T("kit", "button", "b"), "pressed", false))
	expectNone(t, sub)
}

func TestIntegerTokens(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("kit")
	sub := c.Subscribe(T("kit", "led", 3))
	c.Publish(c.NewMessage(T("kit", "led", 3), "on", false))
	expect(t, sub, "on")
	c.Publish(c.NewMessage(T("kit", "led", "3"), "on", false))
	expectNone(t, sub)
}

func TestSingleLevelWildcard(t *testing.T) {
	b := NewBus(8)
	c := b.NewConnection("kit")
	btn := c.Subscribe(T("kit", "button", "+"))
	deep := c.Subscribe(T("kit", "+", "+"))
	exact := c.Subscribe(T("kit", "+", "c"))

	c.Publish(b.NewMessage(T("kit", "button", "c"), "m1", false))
	expect(t, btn, "m1")
	expect(t, deep, "m1")
	expect(t, exact, "m1")

	c.Publish(b.NewMessage(T("kit", "env"), "m2", false))
	expectNone(t, btn)
	expectNone(t, deep)
	expectNone(t, exact)
}

func TestMultiLevelWildcard(t *testing.T) {
	b := NewBus(8)
	c := b.NewConnection("kit")
	kitAll := c.Subscribe(T("kit", "#"))
	all := c.Subscribe(T("#"))
	radio := c.Subscribe(T("kit", "radio", "#"))
	kit := c.Subscribe(T("kit"))

	c.Publish(b.NewMessage(T("kit"), "p1", false))
	expect(t, kitAll, "p1")
	expect(t, all, "p1")
	expect(t, kit, "p1")
	expectNone(t, radio)

	c.Publish(b.NewMessage(T("kit", "radio", "rx"), "p2", false))
	expect(t, kitAll, "p2")
	expect(t, all, "p2")
	expect(t, radio, "p2")
	expectNone(t, kit)
}

func TestRetained(t *testing.T) {
	b := NewBus(8)
	c := b.NewConnection("kit")
	c.Publish(b.NewMessage(T("kit", "env"), "r0", true))
	c.Publish(b.NewMessage(T("kit", "env", "temp"), "r1", true))
	c.Publish(b.NewMessage(T("kit", "port_b", "level"), "r2", true))

	if got := drain(c.Subscribe(T("kit", "#")), 3); !equal(got, []string{"r0", "r1", "r2"}) {
		t.Fatalf("kit/# got %v", got)
	}
	// # also matches its parent level, so kit/env is under kit/+/#.
	if got := drain(c.Subscribe(T("kit", "+", "#")), 3); !equal(got, []string{"r0", "r1", "r2"}) {
		t.Fatalf("kit/+/# got %v", got)
	}
	expect(t, c.Subscribe(T("kit", "env")), "r0")

	// nil payload clears
	c.Publish(b.NewMessage(T("kit", "env"), nil, true))
	if got := drain(c.Subscribe(T("kit", "#")), 3); !equal(got, []string{"r1", "r2"}) {
		t.Fatalf("after clear got %v", got)
	}
	if got := drain(c.Subscribe(T("kit", "+", "#")), 3); !equal(got, []string{"r1", "r2"}) {
		t.Fatalf("kit/+/# after clear got %v", got)
	}
}

func TestMultiLevelWildcardMatchesParent(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("kit")
	sub := c.Subscribe(T("kit", "+", "#"))

	c.Publish(c.NewMessage(T("kit", "env"), "parent", false))
	expect(t, sub, "parent")
	c.Publish(c.NewMessage(T("kit", "env", "temp"), "child", false))
	expect(t, sub, "child")
	c.Publish(c.NewMessage(T("kit"), "root", false))
	expectNone(t, sub)
}

func TestFullQueueDropsOldest(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("kit")
	sub := c.Subscribe(T("kit", "tick"))
	for _, p := range []string{"1", "2", "3"} {
		c.Publish(b.NewMessage(T("kit", "tick"), p, false))
	}
	expect(t, sub, "2")
	expect(t, sub, "3")
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("kit")
	sub := c.Subscribe(T("kit", "tick"))
	sub.Unsubscribe()
	sub.Unsubscribe()
	if _, ok := <-sub.Channel(); ok {
		t.Fatal("channel still open")
	}
	c.Publish(b.NewMessage(T("kit", "tick"), "x", false))

	s1 := c.Subscribe(T("a"))
	s2 := c.Subscribe(T("b", "#"))
	c.Disconnect()
	for _, s := range []*Subscription{s1, s2} {
		if _, ok := <-s.Channel(); ok {
			t.Fatal("disconnect left a channel open")
		}
	}
}

func TestRequestWait(t *testing.T) {
	b := NewBus(8)
	svc := b.NewConnection("speaker")
	app := b.NewConnection("app")
	reqs := svc.Subscribe(T("kit", "speaker", "play"))
	go func() {
		if m, ok := <-reqs.Channel(); ok {
			svc.Reply(m, "ok", false)
		}
	}()

	req := app.NewMessage(T("kit", "speaker", "play"), "C4", false)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	rep, err := app.RequestWait(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if s, _ := rep.Payload.(string); s != "ok" {
		t.Fatalf("reply %v", rep.Payload)
	}
	if len(req.ReplyTo) == 0 || !b.match(req.ReplyTo, rep.Topic) {
		t.Fatalf("reply on %v, request asked for %v", rep.Topic, req.ReplyTo)
	}
}

func TestRequestWaitTimeout(t *testing.T) {
	b := NewBus(8)
	app := b.NewConnection("app")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := app.RequestWait(ctx, app.NewMessage(T("kit", "nobody"), nil, false))
	if errcode.Of(err) != errcode.Timeout || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want timeout, got %v", err)
	}
}

func TestReplyWithoutReplyTo(t *testing.T) {
	b := NewBus(8)
	c := b.NewConnection("kit")
	all := c.Subscribe(T("#"))
	c.Reply(c.NewMessage(T("kit", "x"), nil, false), "ignored", false)
	expectNone(t, all)
}

func TestInvalidTokenPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("no panic for a slice token")
		}
	}()
	_ = T([]byte{1, 2, 3})
}

func TestCustomWildcards(t *testing.T) {
	b := NewBus(4, "*", ">")
	c := b.NewConnection("kit")
	s := c.Subscribe(T("kit", "*", ">"))
	c.Publish(b.NewMessage(T("kit", "radio", "rx"), "m", false))
	expect(t, s, "m")
}
