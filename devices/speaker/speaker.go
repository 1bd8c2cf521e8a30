// Package speaker synthesises tones on a PWM channel.
package speaker

import (
	"context"
	"time"

	"devkit-go/errcode"
	"devkit-go/internal/core"
	"devkit-go/x/logx"
)

var log = logx.New("speaker")

// pwmTop is the logical duty resolution. With the default volume of 1 the
// duty is 1/pwmTop, which is how quiet the buzzer is meant to be.
const pwmTop = 255

type Speaker struct {
	pwm   core.PWMHandle
	duty  uint16
	sleep func(time.Duration)
}

// New wraps a claimed PWM channel. duty 0 selects 1.
func New(pwm core.PWMHandle, duty uint16) *Speaker {
	if duty == 0 {
		duty = 1
	}
	return &Speaker{pwm: pwm, duty: duty, sleep: time.Sleep}
}

// DoSound plays freqHz for d at volume (0 means the default duty). The
// timer is reprogrammed on every call; the channel is disabled afterwards.
func (s *Speaker) DoSound(freqHz uint32, d time.Duration, volume uint16) error {
	if freqHz == 0 {
		s.sleep(d)
		return nil
	}
	if err := s.pwm.Configure(uint64(freqHz), pwmTop); err != nil {
		return &errcode.E{C: errcode.Of(err), Op: "speaker configure", Err: err}
	}
	if volume == 0 {
		volume = s.duty
	}
	s.pwm.Set(volume)
	s.pwm.Enable(true)
	s.sleep(d)
	s.pwm.Enable(false)
	return nil
}

// PlayNote plays n in octave for d. A rest only waits.
func (s *Speaker) PlayNote(n Note, octave uint8, d time.Duration) error {
	return s.DoSound(n.Octave(octave), d, 0)
}

// Phrase is a run of notes sharing a length and an octave. Halves is the
// note length in half beats.
type Phrase struct {
	Notes  []Note
	Halves uint8
	Octave uint8
}

type Melody []Phrase

// Halves returns the melody length in half beats.
func (m Melody) Halves() int {
	n := 0
	for _, p := range m {
		n += len(p.Notes) * int(p.Halves)
	}
	return n
}

// PlayMelody plays m note by note with beat as the length of one beat. It
// checks stop (may be nil) and ctx before every note and returns early,
// ctx.Err() for a cancelled context and nil for stop.
func (s *Speaker) PlayMelody(ctx context.Context, m Melody, beat time.Duration, stop func() bool) error {
	for _, p := range m {
		d := beat * time.Duration(p.Halves) / 2
		for _, n := range p.Notes {
			if err := ctx.Err(); err != nil {
				return err
			}
			if stop != nil && stop() {
				log.Debug("melody stopped")
				return nil
			}
			if err := s.PlayNote(n, p.Octave, d); err != nil {
				return err
			}
		}
	}
	return nil
}

// OdeToJoy is the demo tune.
var OdeToJoy = Melody{
	{Notes: []Note{E, E, F, G, G, F, E, D, C, C, D, E}, Halves: 2, Octave: 4},
	{Notes: []Note{E}, Halves: 3, Octave: 4},
	{Notes: []Note{D}, Halves: 1, Octave: 4},
	{Notes: []Note{D}, Halves: 4, Octave: 4},
	{Notes: []Note{E, E, F, G, G, F, E, D, C, C, D, E}, Halves: 2, Octave: 4},
	{Notes: []Note{D}, Halves: 3, Octave: 4},
	{Notes: []Note{C}, Halves: 1, Octave: 4},
	{Notes: []Note{C}, Halves: 4, Octave: 4},
	{Notes: []Note{D, D, E, C, D}, Halves: 2, Octave: 4},
	{Notes: []Note{E, F}, Halves: 1, Octave: 4},
	{Notes: []Note{E, C, D}, Halves: 2, Octave: 4},
	{Notes: []Note{E, F}, Halves: 1, Octave: 4},
	{Notes: []Note{E, D, C, D}, Halves: 2, Octave: 4},
	{Notes: []Note{G}, Halves: 2, Octave: 3},
	{Notes: []Note{E}, Halves: 4, Octave: 4},
	{Notes: []Note{E, F, G, G, F, E, D, C, C, D, E}, Halves: 2, Octave: 4},
	{Notes: []Note{D}, Halves: 3, Octave: 4},
	{Notes: []Note{C}, Halves: 1, Octave: 4},
	{Notes: []Note{C}, Halves: 4, Octave: 4},
}
