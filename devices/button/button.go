// Package button reads the front push buttons, by polling or through the
// interrupt worker.
package button

import (
	"devkit-go/errcode"
	"devkit-go/internal/core"
	"devkit-go/internal/gpioirq"
)

type Button struct {
	name       string
	pin        core.IRQPin
	activeLow  bool
	debounceMs int
}

// New configures pin as an input, pulled towards the released level.
func New(name string, pin core.IRQPin, activeLow bool, debounceMs int) (*Button, error) {
	pull := core.PullDown
	if activeLow {
		pull = core.PullUp
	}
	if err := pin.ConfigureInput(pull); err != nil {
		return nil, &errcode.E{C: errcode.Error, Op: "button " + name, Err: err}
	}
	return &Button{name: name, pin: pin, activeLow: activeLow, debounceMs: debounceMs}, nil
}

func (b *Button) Name() string { return b.name }
func (b *Button) Pin() int     { return b.pin.Number() }

// IsLow reports the raw pin level.
func (b *Button) IsLow() bool { return !b.pin.Get() }

func (b *Button) IsPressed() bool { return b.pin.Get() != b.activeLow }

// Watch delivers debounced press/release events through w. edge is the
// logical edge: EdgeRising is a press.
func (b *Button) Watch(w *gpioirq.Worker, edge core.Edge) (func(), error) {
	return w.Watch(b.name, b.pin, physicalEdge(edge, b.activeLow), b.debounceMs, b.activeLow)
}

func physicalEdge(e core.Edge, activeLow bool) core.Edge {
	if !activeLow {
		return e
	}
	switch e {
	case core.EdgeRising:
		return core.EdgeFalling
	case core.EdgeFalling:
		return core.EdgeRising
	}
	return e
}
