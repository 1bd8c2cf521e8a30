package console

import (
	"context"
	"strings"
	"time"

	"devkit-go/devices/port"
	"devkit-go/devices/speaker"
	"devkit-go/errcode"
	"devkit-go/services/kit"
	"devkit-go/types"
	"devkit-go/x/strconvx"
)

type command struct {
	name  string
	usage string
	min   int
	run   func(ctx context.Context, s *Service, args []string) (string, error)
}

var commands = []command{
	{"led", "led <all|0-9> <colour> [brightness]", 2, runLED},
	{"fade", "fade <colour> <from> <to> <ms>", 4, runFade},
	{"text", "text <x> <y> <text> [colour]", 3, runText},
	{"light", "light <on|off>", 1, runLight},
	{"beep", "beep <note> [octave] [ms]", 1, runBeep},
	{"stop", "stop", 0, runStop},
	{"send", "send <text>", 1, runSend},
	{"env", "env", 0, runEnv},
	{"portb", "portb", 0, runPortB},
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func usage() string {
	names := make([]string, 0, len(commands)+1)
	for _, c := range commands {
		names = append(names, c.name)
	}
	return strings.Join(append(names, "help"), " ")
}

func runLED(ctx context.Context, s *Service, args []string) (string, error) {
	cmd := kit.LEDCommand{Index: -1}
	if args[0] != "all" {
		i, err := strconvx.Atoi(args[0])
		if err != nil {
			return "", errcode.InvalidParams
		}
		cmd.Index = i
	}
	var err error
	if cmd.Color, err = parseColour(args[1]); err != nil {
		return "", err
	}
	if len(args) > 2 {
		if cmd.Brightness, err = parseU8(args[2]); err != nil {
			return "", err
		}
	}
	_, err = s.request(ctx, kit.TopicLEDsSet, cmd)
	return "", err
}

func runFade(ctx context.Context, s *Service, args []string) (string, error) {
	var cmd kit.FadeCommand
	var err error
	if cmd.Color, err = parseColour(args[0]); err != nil {
		return "", err
	}
	if cmd.From, err = parseU8(args[1]); err != nil {
		return "", err
	}
	if cmd.To, err = parseU8(args[2]); err != nil {
		return "", err
	}
	ms, err := strconvx.Atoi(args[3])
	if err != nil {
		return "", errcode.InvalidParams
	}
	cmd.Duration = time.Duration(ms) * time.Millisecond
	_, err = s.request(ctx, kit.TopicLEDsFade, cmd)
	return "", err
}

func runText(ctx context.Context, s *Service, args []string) (string, error) {
	x, errX := strconvx.Atoi(args[0])
	y, errY := strconvx.Atoi(args[1])
	if errX != nil || errY != nil {
		return "", errcode.InvalidParams
	}
	cmd := kit.TextCommand{Text: args[2], Pos: types.Point{X: int16(x), Y: int16(y)}, Color: types.White}
	if len(args) > 3 {
		var err error
		if cmd.Color, err = parseColour(args[3]); err != nil {
			return "", err
		}
	}
	v, err := s.request(ctx, kit.TopicScreenText, cmd)
	if err != nil {
		return "", err
	}
	end, _ := v.(types.Point)
	return strconvx.Itoa(int(end.X)) + " " + strconvx.Itoa(int(end.Y)), nil
}

func runLight(ctx context.Context, s *Service, args []string) (string, error) {
	var on bool
	switch args[0] {
	case "on":
		on = true
	case "off":
	default:
		return "", errcode.InvalidParams
	}
	_, err := s.request(ctx, kit.TopicScreenLight, on)
	return "", err
}

func runBeep(ctx context.Context, s *Service, args []string) (string, error) {
	n, ok := parseNote(args[0])
	if !ok {
		return "", errcode.InvalidParams
	}
	octave, ms := 4, 250
	var err error
	if len(args) > 1 {
		if octave, err = strconvx.Atoi(args[1]); err != nil || octave < 1 || octave > 8 {
			return "", errcode.InvalidParams
		}
	}
	if len(args) > 2 {
		if ms, err = strconvx.Atoi(args[2]); err != nil || ms <= 0 {
			return "", errcode.InvalidParams
		}
	}
	// one note of two halves lasts exactly one beat
	cmd := kit.SpeakerCommand{
		Melody: speaker.Melody{{Notes: []speaker.Note{n}, Halves: 2, Octave: uint8(octave)}},
		Beat:   time.Duration(ms) * time.Millisecond,
	}
	_, err = s.request(ctx, kit.TopicSpeakerPlay, cmd)
	return "", err
}

func runStop(ctx context.Context, s *Service, _ []string) (string, error) {
	_, err := s.request(ctx, kit.TopicSpeakerStop, nil)
	return "", err
}

func runSend(ctx context.Context, s *Service, args []string) (string, error) {
	_, err := s.request(ctx, kit.TopicRadioSend, strings.Join(args, " "))
	return "", err
}

func runEnv(_ context.Context, s *Service, _ []string) (string, error) {
	v, ok := s.retained(kit.TopicEnv)
	env, isEnv := v.(port.Env)
	if !ok || !isEnv {
		return "", errcode.NotReady
	}
	return fixed(int64(env.MilliC), 1000, 3) + "C " + fixed(int64(env.HumidityH), 100, 2) + "%", nil
}

func runPortB(_ context.Context, s *Service, _ []string) (string, error) {
	v, ok := s.retained(kit.TopicPortB)
	r, isReading := v.(kit.PortBReading)
	if !ok || !isReading {
		return "", errcode.NotReady
	}
	return "raw=" + strconvx.Itoa(int(r.Raw)) + " level=" + strconvx.Itoa(int(r.Level)) + " pct=" + strconvx.Itoa(int(r.Percent)), nil
}

// fixed renders v/scale with digits decimals.
func fixed(v, scale int64, digits int) string {
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	frac := strconvx.FormatInt(v%scale, 10)
	for len(frac) < digits {
		frac = "0" + frac
	}
	return sign + strconvx.FormatInt(v/scale, 10) + "." + frac
}

func parseU8(s string) (uint8, error) {
	v, err := strconvx.ParseUint(s, 10, 8)
	if err != nil {
		return 0, errcode.InvalidParams
	}
	return uint8(v), nil
}

var colours = map[string]types.RGB{
	"black":       types.Black,
	"white":       types.White,
	"red":         types.Red,
	"green":       types.Green,
	"blue":        types.Blue,
	"hotpink":     types.HotPink,
	"purple":      types.Purple,
	"yellowgreen": types.YellowGreen,
	"magenta":     types.Magenta,
	"yellow":      types.Yellow,
	"brown":       types.Brown,
	"limegreen":   types.LimeGreen,
	"cyan":        types.Cyan,
	"pink":        types.Pink,
}

// parseColour accepts a colour name or 0xrrggbb. A bare '#' would start a
// comment.
func parseColour(s string) (types.RGB, error) {
	if c, ok := colours[strings.ToLower(s)]; ok {
		return c, nil
	}
	if len(s) == 8 && strings.HasPrefix(s, "0x") {
		v, err := strconvx.ParseUint(s[2:], 16, 32)
		if err == nil {
			return types.RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
		}
	}
	return types.RGB{}, &errcode.E{C: errcode.InvalidParams, Op: "colour", Msg: s}
}

func parseNote(s string) (speaker.Note, bool) {
	if strings.EqualFold(s, "rest") {
		return speaker.None, true
	}
	for _, n := range speaker.Scale {
		if strings.EqualFold(n.String(), s) {
			return n, true
		}
	}
	return 0, false
}
