package gpioirq

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"devkit-go/internal/core"
)

// Event is one debounced transition of a watched input. Pressed is the
// logical level, after active-low inversion.
type Event struct {
	Name    string
	Pressed bool
	Edge    core.Edge
	TS      time.Time
}

// Worker moves pin interrupts out of interrupt context. The ISR side only
// samples the pin and does a non-blocking send.
type Worker struct {
	isrQ    chan sample
	outQ    chan Event
	stopped chan struct{}

	mu      sync.RWMutex
	watches map[string]*watch

	drops atomic.Uint32
}

type sample struct {
	name  string
	level bool
}

type watch struct {
	pin       core.IRQPin
	edge      core.Edge
	debounce  time.Duration
	activeLow bool
	last      bool // logical
	lastAt    time.Time
}

func New(isrBuf, outBuf int) *Worker {
	if isrBuf <= 0 {
		isrBuf = 32
	}
	if outBuf <= 0 {
		outBuf = 32
	}
	return &Worker{
		isrQ:    make(chan sample, isrBuf),
		outQ:    make(chan Event, outBuf),
		stopped: make(chan struct{}),
		watches: map[string]*watch{},
	}
}

// Start runs the dispatch loop until ctx is done.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		defer close(w.stopped)
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-w.isrQ:
				w.handle(s)
			}
		}
	}()
}

// Done is closed once the dispatch loop has exited.
func (w *Worker) Done() <-chan struct{} { return w.stopped }

func (w *Worker) Events() <-chan Event { return w.outQ }

// Watch arms the interrupt on pin and returns a cancel func that disarms it.
func (w *Worker) Watch(name string, pin core.IRQPin, edge core.Edge, debounceMs int, activeLow bool) (func(), error) {
	if edge == core.EdgeNone {
		return func() {}, nil
	}
	wh := &watch{
		pin:       pin,
		edge:      edge,
		debounce:  time.Duration(debounceMs) * time.Millisecond,
		activeLow: activeLow,
		last:      pin.Get() != activeLow,
	}

	isr := func() {
		select {
		case w.isrQ <- sample{name: name, level: pin.Get()}:
		default:
			w.drops.Add(1)
		}
	}
	if err := pin.SetIRQ(edge, isr); err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.watches[name] = wh
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		if cur, ok := w.watches[name]; ok && cur == wh {
			_ = pin.ClearIRQ()
			delete(w.watches, name)
		}
		w.mu.Unlock()
	}, nil
}

func (w *Worker) handle(s sample) {
	w.mu.RLock()
	wh := w.watches[s.name]
	w.mu.RUnlock()
	if wh == nil {
		return
	}
	level := s.level != wh.activeLow
	now := time.Now()

	if !wh.lastAt.IsZero() && now.Sub(wh.lastAt) < wh.debounce {
		return
	}

	var e core.Edge
	switch {
	case !wh.last && level:
		e = core.EdgeRising
	case wh.last && !level:
		e = core.EdgeFalling
	case wh.edge != core.EdgeBoth:
		// Single-edge IRQ whose level bounced back before sampling.
		e = wh.edge
	}

	if e != core.EdgeNone {
		select {
		case w.outQ <- Event{Name: s.name, Pressed: level, Edge: e, TS: now}:
		default:
		}
	}
	wh.last = level
	wh.lastAt = now
}

// ISRDrops counts samples lost because the ISR queue was full.
func (w *Worker) ISRDrops() uint32 { return w.drops.Load() }
