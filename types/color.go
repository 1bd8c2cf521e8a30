package types

import (
	"image/color"

	"devkit-go/x/mathx"
)

// RGB is one pixel of the LED bar.
type RGB struct {
	R, G, B uint8
}

// Scale dims every component to c*brightness/255 (integer division).
func (c RGB) Scale(brightness uint8) RGB {
	return RGB{
		R: mathx.ScaleU8(c.R, brightness),
		G: mathx.ScaleU8(c.G, brightness),
		B: mathx.ScaleU8(c.B, brightness),
	}
}

func (c RGB) RGBA() color.RGBA { return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff} }

// Named colours (CSS values).
var (
	Black       = RGB{0, 0, 0}
	White       = RGB{255, 255, 255}
	Red         = RGB{255, 0, 0}
	Green       = RGB{0, 128, 0}
	Blue        = RGB{0, 0, 255}
	HotPink     = RGB{255, 105, 180}
	Purple      = RGB{128, 0, 128}
	YellowGreen = RGB{154, 205, 50}
	Magenta     = RGB{255, 0, 255}
	Yellow      = RGB{255, 255, 0}
	Brown       = RGB{165, 42, 42}
	LimeGreen   = RGB{50, 205, 50}
	Cyan        = RGB{0, 255, 255}
	Pink        = RGB{255, 192, 203}
)
