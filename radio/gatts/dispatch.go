package gatts

import (
	"sync"

	"devkit-go/x/logx"
)

var log = logx.New("gatts")

type callback = func(Interface, Event)

// Dispatcher owns the stack's single event handler and routes events to
// single-use waiters, observers and per-attribute read/write handlers.
type Dispatcher struct {
	stack Stack

	mu        sync.Mutex
	once      map[Kind][]callback
	observers map[Kind][]callback
	readers   map[AttrHandle]ReadHandler
	writers   map[AttrHandle]WriteHandler
}

func NewDispatcher(s Stack) *Dispatcher {
	d := &Dispatcher{
		stack:     s,
		once:      map[Kind][]callback{},
		observers: map[Kind][]callback{},
		readers:   map[AttrHandle]ReadHandler{},
		writers:   map[AttrHandle]WriteHandler{},
	}
	s.SetEventHandler(d.Dispatch)
	return d
}

func (d *Dispatcher) Stack() Stack { return d.stack }

// Once arms f for the next event of kind k only.
func (d *Dispatcher) Once(k Kind, f func(Interface, Event)) {
	d.mu.Lock()
	d.once[k] = append(d.once[k], f)
	d.mu.Unlock()
}

// Observe calls f for every event of kind k.
func (d *Dispatcher) Observe(k Kind, f func(Interface, Event)) {
	d.mu.Lock()
	d.observers[k] = append(d.observers[k], f)
	d.mu.Unlock()
}

func (d *Dispatcher) HandleRead(attr AttrHandle, h ReadHandler) {
	d.mu.Lock()
	d.readers[attr] = h
	d.mu.Unlock()
}

func (d *Dispatcher) HandleWrite(attr AttrHandle, h WriteHandler) {
	d.mu.Lock()
	d.writers[attr] = h
	d.mu.Unlock()
}

// Dispatch is the EventHandler installed on the stack.
func (d *Dispatcher) Dispatch(iface Interface, ev Event) {
	k := ev.Kind()

	d.mu.Lock()
	once := d.once[k]
	delete(d.once, k)
	obs := append([]callback(nil), d.observers[k]...)
	var rh ReadHandler
	var wh WriteHandler
	switch e := ev.(type) {
	case ReadEvent:
		rh = d.readers[e.Attr]
	case WriteEvent:
		wh = d.writers[e.Attr]
	}
	d.mu.Unlock()

	for _, f := range once {
		f(iface, ev)
	}
	for _, f := range obs {
		f(iface, ev)
	}

	switch e := ev.(type) {
	case ReadEvent:
		if rh == nil {
			log.Warn("read on unknown attribute", "attr", e.Attr)
			if e.NeedRsp {
				d.respond(iface, e.Conn, e.Trans, StatusInvalidHandle, Response{Attr: e.Attr})
			}
			return
		}
		v := rh.OnRead(e)
		d.respond(iface, e.Conn, e.Trans, StatusOK, Response{Attr: e.Attr, Offset: e.Offset, Value: v})
	case WriteEvent:
		if wh == nil {
			log.Warn("write on unknown attribute", "attr", e.Attr)
			if e.NeedRsp {
				d.respond(iface, e.Conn, e.Trans, StatusInvalidHandle, Response{Attr: e.Attr})
			}
			return
		}
		if v, ok := wh.OnWrite(e); ok {
			d.respond(iface, e.Conn, e.Trans, StatusOK, Response{Attr: e.Attr, Offset: e.Offset, Value: v})
		}
	default:
		if len(once) == 0 && len(obs) == 0 {
			log.Debug("unhandled event", "kind", k)
		}
	}
}

// Responses are sent from callback context; failures can only be logged.
func (d *Dispatcher) respond(iface Interface, conn ConnID, trans TransID, st Status, rsp Response) {
	if err := d.stack.SendResponse(iface, conn, trans, st, rsp); err != nil {
		log.Error("send response failed", "conn", conn, "trans", trans, "err", err)
	}
}
