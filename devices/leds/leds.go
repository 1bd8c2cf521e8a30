// Package leds drives the 10-pixel addressable LED bar. Colour changes stay
// in memory until Display pushes the whole bar.
package leds

import (
	"image/color"

	"devkit-go/errcode"
	"devkit-go/internal/core"
	"devkit-go/types"
)

// Count is the number of pixels on the bar.
const Count = 10

type Strip struct {
	w      core.LEDWriter
	lights [Count]types.RGB
	frame  [Count]color.RGBA
}

func New(w core.LEDWriter) *Strip { return &Strip{w: w} }

// Display writes every pixel in index order.
func (s *Strip) Display() error {
	for i, c := range s.lights {
		s.frame[i] = c.RGBA()
	}
	if err := s.w.WriteColors(s.frame[:]); err != nil {
		return &errcode.E{C: errcode.Error, Op: "leds display", Err: err}
	}
	return nil
}

func (s *Strip) Fill(c types.RGB) {
	for i := range s.lights {
		s.lights[i] = c
	}
}

func (s *Strip) Clear() { s.Fill(types.Black) }

func (s *Strip) SetColorAtIndex(i int, c types.RGB) error {
	if i < 0 || i >= Count {
		return errcode.OutOfRange
	}
	s.lights[i] = c
	return nil
}

// Colors returns a copy of the in-memory bar.
func (s *Strip) Colors() [Count]types.RGB { return s.lights }

// Off clears the bar and pushes it.
func (s *Strip) Off() error {
	s.Clear()
	return s.Display()
}
