package kit

import (
	"time"

	"devkit-go/bus"
	"devkit-go/devices/speaker"
	"devkit-go/types"
)

// Topic tokens.
const (
	TokKit     = "kit"
	TokButton  = "button"
	TokEnv     = "env"
	TokPortB   = "port_b"
	TokLEDs    = "leds"
	TokScreen  = "screen"
	TokSpeaker = "speaker"
	TokRadio   = "radio"
	TokState   = "state"
)

// Events published by the service.
var (
	TopicState   = bus.T(TokKit, TokState)           // retained State
	TopicButton  = bus.T(TokKit, TokButton)          // + name: gpioirq.Event
	TopicEnv     = bus.T(TokKit, TokEnv)             // retained port.Env
	TopicPortB   = bus.T(TokKit, TokPortB)           // retained PortBReading
	TopicRadioRx = bus.T(TokKit, TokRadio, "rx")     // []byte written by the peer
	TopicMelody  = bus.T(TokKit, TokSpeaker, "done") // error or nil when a melody ends
)

// Requests the service answers. Replies carry a Reply.
var (
	TopicLEDsSet     = bus.T(TokKit, TokLEDs, "set")
	TopicLEDsFade    = bus.T(TokKit, TokLEDs, "fade")
	TopicScreenText  = bus.T(TokKit, TokScreen, "text")
	TopicScreenLight = bus.T(TokKit, TokScreen, "backlight")
	TopicSpeakerPlay = bus.T(TokKit, TokSpeaker, "play")
	TopicSpeakerStop = bus.T(TokKit, TokSpeaker, "stop")
	TopicRadioSend   = bus.T(TokKit, TokRadio, "send")
)

type State struct {
	Level string // "ready" or "stopped"
	TS    time.Time
}

type PortBReading struct {
	Raw     uint16
	Level   uint8
	Percent uint8
}

// LEDCommand paints the strip. Index < 0 fills every pixel. Brightness 0
// means full brightness.
type LEDCommand struct {
	Index      int
	Color      types.RGB
	Brightness uint8
}

// FadeCommand ramps the whole strip from one brightness to another. The
// reply is sent when the fade ends. Duration is capped at MaxFade.
type FadeCommand struct {
	Color    types.RGB
	From, To uint8
	Duration time.Duration
}

// TextCommand draws one block of text. Clear fills the background first.
type TextCommand struct {
	Text  string
	Pos   types.Point
	Align types.Alignment
	Color types.RGB
	Clear *types.RGB
}

// SpeakerCommand plays a melody in the background; a single note is a
// one-phrase melody. Beat 0 selects DefaultBeat.
type SpeakerCommand struct {
	Melody speaker.Melody
	Beat   time.Duration
}

// Reply answers every request. Value is set by requests that produce one
// (the text cursor for TopicScreenText).
type Reply struct {
	OK    bool
	Error string
	Value any
}

func replyOf(v any, err error) Reply {
	if err != nil {
		return Reply{Error: err.Error()}
	}
	return Reply{OK: true, Value: v}
}
