// Package bus is the in-process pub/sub fabric the kit services talk over.
// Topics are token paths; subscriptions may use a single-level and a
// multi-level wildcard; retained messages are replayed to new subscribers;
// request/reply rides on per-request reply topics.
package bus

import (
	"context"
	"sync"
	"sync/atomic"

	"devkit-go/errcode"
	"devkit-go/x/conv"
)

// Topic is a sequence of comparable tokens (strings or integers).
type Topic []any

// T builds a topic and panics on a token that cannot key a map.
func T(tokens ...any) Topic {
	for _, tok := range tokens {
		switch tok.(type) {
		case string, int, int32, int64, uint, uint8, uint16, uint32, bool:
		default:
			panic("bus: unsupported topic token")
		}
	}
	return Topic(tokens)
}

// Append returns a copy of t extended with tokens.
func (t Topic) Append(tokens ...any) Topic {
	out := make(Topic, 0, len(t)+len(tokens))
	out = append(out, t...)
	return append(out, T(tokens...)...)
}

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
	ReplyTo  Topic
}

type Subscription struct {
	topic Topic
	ch    chan *Message
	conn  *Connection
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

type node struct {
	children map[any]*node
	subs     []*Subscription
}

type Bus struct {
	mu       sync.RWMutex
	root     *node
	retained map[string]*Message
	qLen     int
	single   any
	multi    any
	replies  atomic.Uint32
}

// NewBus creates a bus whose subscriptions buffer queueLen messages. The
// optional wild arguments override the single-level ("+") and multi-level
// ("#") wildcard tokens.
func NewBus(queueLen int, wild ...string) *Bus {
	if queueLen <= 0 {
		queueLen = 8
	}
	b := &Bus{
		root:     &node{},
		retained: make(map[string]*Message),
		qLen:     queueLen,
		single:   "+",
		multi:    "#",
	}
	if len(wild) > 0 {
		b.single = wild[0]
	}
	if len(wild) > 1 {
		b.multi = wild[1]
	}
	return b
}

func (b *Bus) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: topic, Payload: payload, Retained: retained}
}

func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

// Publish delivers msg to every matching subscriber. A full subscriber
// queue loses its oldest message. A retained message with a nil payload
// clears the retained slot of its topic.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if msg.Retained {
		k := key(msg.Topic)
		if msg.Payload == nil {
			delete(b.retained, k)
		} else {
			b.retained[k] = msg
		}
	}
	b.collect(b.root, msg.Topic, func(s *Subscription) { deliver(s.ch, msg) })
}

// collect walks every trie branch whose pattern matches topic.
func (b *Bus) collect(n *node, topic Topic, f func(*Subscription)) {
	if n.children == nil && len(topic) > 0 {
		return
	}
	if c := n.children[b.multi]; c != nil {
		for _, s := range c.subs {
			f(s)
		}
	}
	if len(topic) == 0 {
		for _, s := range n.subs {
			f(s)
		}
		return
	}
	if c := n.children[topic[0]]; c != nil {
		b.collect(c, topic[1:], f)
	}
	if topic[0] != b.single {
		if c := n.children[b.single]; c != nil {
			b.collect(c, topic[1:], f)
		}
	}
}

func (b *Bus) match(pattern, topic Topic) bool {
	for i, p := range pattern {
		if p == b.multi {
			return true
		}
		if i >= len(topic) {
			return false
		}
		if p != b.single && p != topic[i] {
			return false
		}
	}
	return len(pattern) == len(topic)
}

func (b *Bus) subscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	for _, tok := range sub.topic {
		if n.children == nil {
			n.children = make(map[any]*node)
		}
		c := n.children[tok]
		if c == nil {
			c = &node{}
			n.children[tok] = c
		}
		n = c
	}
	n.subs = append(n.subs, sub)

	for _, m := range b.retained {
		if b.match(sub.topic, m.Topic) {
			deliver(sub.ch, m)
		}
	}
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	path := make([]*node, 0, len(sub.topic))
	for _, tok := range sub.topic {
		c := n.children[tok]
		if c == nil {
			return
		}
		path = append(path, n)
		n = c
	}
	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}
	// prune empty branches
	for i := len(sub.topic) - 1; i >= 0; i-- {
		parent, tok := path[i], sub.topic[i]
		c := parent.children[tok]
		if len(c.subs) > 0 || len(c.children) > 0 {
			break
		}
		delete(parent.children, tok)
	}
}

func deliver(ch chan *Message, msg *Message) {
	for {
		select {
		case ch <- msg:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func key(t Topic) string {
	b := make([]byte, 0, 32)
	for _, tok := range t {
		b = appendToken(b, tok)
		b = append(b, 0)
	}
	return string(b)
}

func appendToken(b []byte, tok any) []byte {
	switch v := tok.(type) {
	case string:
		return append(append(b, 's'), v...)
	case int:
		return conv.AppendInt(append(b, 'i'), int64(v))
	case int32:
		return conv.AppendInt(append(b, 'i'), int64(v))
	case int64:
		return conv.AppendInt(append(b, 'i'), v)
	case uint:
		return conv.AppendUint(append(b, 'i'), uint64(v))
	case uint8:
		return conv.AppendUint(append(b, 'i'), uint64(v))
	case uint16:
		return conv.AppendUint(append(b, 'i'), uint64(v))
	case uint32:
		return conv.AppendUint(append(b, 'i'), uint64(v))
	case bool:
		if v {
			return append(b, 't')
		}
		return append(b, 'f')
	}
	return append(b, '?')
}

// Connection is one client's view of the bus; it owns its subscriptions.
type Connection struct {
	bus  *Bus
	id   string
	mu   sync.Mutex
	subs []*Subscription
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(topic, payload, retained)
}

func (c *Connection) Publish(msg *Message) { c.bus.Publish(msg) }

func (c *Connection) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{topic: topic, ch: make(chan *Message, c.bus.qLen), conn: c}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	c.bus.subscribe(sub)
	return sub
}

// Unsubscribe detaches sub and closes its channel. Repeated calls are no-ops.
func (c *Connection) Unsubscribe(sub *Subscription) {
	c.mu.Lock()
	found := false
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			found = true
			break
		}
	}
	c.mu.Unlock()
	if !found {
		return
	}
	c.bus.unsubscribe(sub)
	close(sub.ch)
}

func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()
	for _, s := range subs {
		c.bus.unsubscribe(s)
		close(s.ch)
	}
}

// Request publishes msg with a fresh reply topic and returns the
// subscription on which replies arrive.
func (c *Connection) Request(msg *Message) *Subscription {
	if len(msg.ReplyTo) == 0 {
		msg.ReplyTo = T("_reply", c.id, c.bus.replies.Add(1))
	}
	sub := c.Subscribe(msg.ReplyTo)
	c.Publish(msg)
	return sub
}

// RequestWait sends msg and blocks for the first reply.
func (c *Connection) RequestWait(ctx context.Context, msg *Message) (*Message, error) {
	sub := c.Request(msg)
	defer c.Unsubscribe(sub)
	select {
	case m := <-sub.Channel():
		return m, nil
	case <-ctx.Done():
		return nil, &errcode.E{C: errcode.Timeout, Op: "bus request", Err: ctx.Err()}
	}
}

// Reply answers req on its reply topic. Requests without one are ignored.
func (c *Connection) Reply(req *Message, payload any, retained bool) {
	if len(req.ReplyTo) == 0 {
		return
	}
	c.Publish(c.NewMessage(req.ReplyTo, payload, retained))
}
