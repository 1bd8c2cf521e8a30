package screen

import (
	"testing"

	"devkit-go/internal/core"
	"devkit-go/internal/provider"
	"devkit-go/types"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

func newScreen(t *testing.T) (*Screen, *provider.FakeDisplay, *provider.FakePin) {
	t.Helper()
	d := provider.NewFakeDisplay(320, 240)
	bl := &provider.FakePin{}
	s, err := New(d, bl)
	if err != nil {
		t.Fatal(err)
	}
	return s, d, bl
}

func TestBacklight(t *testing.T) {
	s, _, bl := newScreen(t)
	if s.IsOn() || !bl.IsOutput() {
		t.Fatal("backlight should start as an output, off")
	}
	s.TurnOn()
	if !s.IsOn() {
		t.Fatal("TurnOn")
	}
	s.TurnOff()
	if s.IsOn() {
		t.Fatal("TurnOff")
	}
}

func TestFillBackground(t *testing.T) {
	s, d, _ := newScreen(t)
	s.FillBackground(types.Blue)
	if d.Count(types.Blue.RGBA()) != 320*240 {
		t.Fatal("fill did not cover the panel")
	}
}

func TestDrawTextLeftChains(t *testing.T) {
	s, d, _ := newScreen(t)
	s.FillBackground(types.Black)

	_, w := tinyfont.LineWidth(&proggy.TinySZ8pt7b, "Hello")
	next, err := s.DrawText("Hello", types.Point{X: 4, Y: 20}, types.AlignLeft, types.White)
	if err != nil {
		t.Fatal(err)
	}
	if next != (types.Point{X: 4 + int16(w), Y: 20}) {
		t.Fatalf("next = %+v", next)
	}
	if d.Count(types.White.RGBA()) == 0 {
		t.Fatal("no glyph pixels drawn")
	}
	if d.Flushes != 1 {
		t.Fatalf("want one flush, got %d", d.Flushes)
	}
}

func TestDrawTextCenter(t *testing.T) {
	s, _, _ := newScreen(t)
	_, w := tinyfont.LineWidth(&proggy.TinySZ8pt7b, "Ode to Joy")
	next, err := s.DrawText("Ode to Joy", types.Point{X: 160, Y: 120}, types.AlignCenter, types.White)
	if err != nil {
		t.Fatal(err)
	}
	if want := 160 - int16(w/2) + int16(w); next.X != want || next.Y != 120 {
		t.Fatalf("next = %+v, want x=%d", next, want)
	}
}

func TestDrawTextMultiline(t *testing.T) {
	s, _, _ := newScreen(t)
	next, err := s.DrawText("a\nbb", types.Point{X: 0, Y: 15}, types.AlignLeft, types.White)
	if err != nil {
		t.Fatal(err)
	}
	if next.Y != 15+s.LineHeight() {
		t.Fatalf("second line baseline %d", next.Y)
	}
}

var _ core.GPIOHandle = (*provider.FakePin)(nil)
