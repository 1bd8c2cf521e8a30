// Package screen wraps the ILI9341 panel: backlight control, solid fills and
// single-font text.
package screen

import (
	"strings"

	"devkit-go/errcode"
	"devkit-go/internal/core"
	"devkit-go/types"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

type Screen struct {
	d    core.Display
	bl   core.GPIOHandle
	font *tinyfont.Font
}

// New takes a configured display and the backlight pin. The backlight
// starts off.
func New(d core.Display, backlight core.GPIOHandle) (*Screen, error) {
	if err := backlight.ConfigureOutput(false); err != nil {
		return nil, &errcode.E{C: errcode.Error, Op: "screen backlight", Err: err}
	}
	return &Screen{d: d, bl: backlight, font: &proggy.TinySZ8pt7b}, nil
}

func (s *Screen) IsOn() bool { return s.bl.Get() }
func (s *Screen) TurnOn()    { s.bl.Set(true) }
func (s *Screen) TurnOff()   { s.bl.Set(false) }

// Size is the landscape resolution.
func (s *Screen) Size() (int16, int16) { return s.d.Size() }

func (s *Screen) FillBackground(c types.RGB) { s.d.FillScreen(c.RGBA()) }

// LineHeight is the baseline-to-baseline distance of the font.
func (s *Screen) LineHeight() int16 { return int16(s.font.YAdvance) }

// DrawText draws text with pos.Y as the baseline and pos.X as the left edge,
// centre or right edge depending on align. Newlines move down one line.
// It returns the position right after the last glyph so that calls chain.
func (s *Screen) DrawText(text string, pos types.Point, align types.Alignment, c types.RGB) (types.Point, error) {
	next := pos
	for i, line := range strings.Split(text, "\n") {
		y := pos.Y + int16(i)*s.LineHeight()
		_, w := tinyfont.LineWidth(s.font, line)
		x := pos.X
		switch align {
		case types.AlignCenter:
			x -= int16(w / 2)
		case types.AlignRight:
			x -= int16(w)
		}
		tinyfont.WriteLine(s.d, s.font, x, y, line, c.RGBA())
		next = types.Point{X: x + int16(w), Y: y}
	}
	if err := s.d.Display(); err != nil {
		return pos, &errcode.E{C: errcode.Error, Op: "screen draw text", Msg: text, Err: err}
	}
	return next, nil
}
