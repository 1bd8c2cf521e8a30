// Package kit runs the board behind the bus: inputs are published as
// events, outputs are driven by requests.
package kit

import (
	"context"
	"sync/atomic"
	"time"

	"devkit-go/board"
	"devkit-go/bus"
	"devkit-go/devices/button"
	"devkit-go/errcode"
	"devkit-go/internal/core"
	"devkit-go/internal/gpioirq"
	"devkit-go/radio"
	"devkit-go/types"
	"devkit-go/x/logx"
	"devkit-go/x/mathx"
	"devkit-go/x/ramp"
)

var log = logx.New("kit")

const (
	DefaultTelemetry = 2 * time.Second
	DefaultBeat      = 500 * time.Millisecond
	MaxFade          = 5 * time.Second
	minTelemetry     = 100 * time.Millisecond
	fadeSteps        = 32
)

type Options struct {
	Telemetry time.Duration // env and port B period; 0 selects DefaultTelemetry
	ISRBuf    int
	EventBuf  int
}

type Service struct {
	b    *board.Board
	conn *bus.Connection
	opts Options

	irq      *gpioirq.Worker
	melodies chan SpeakerCommand
	stop     atomic.Bool
	playing  atomic.Bool
}

func New(b *board.Board, conn *bus.Connection, opts Options) *Service {
	if opts.Telemetry == 0 {
		opts.Telemetry = DefaultTelemetry
	}
	opts.Telemetry = mathx.Max(opts.Telemetry, minTelemetry)
	return &Service{
		b:        b,
		conn:     conn,
		opts:     opts,
		irq:      gpioirq.New(opts.ISRBuf, opts.EventBuf),
		melodies: make(chan SpeakerCommand, 1),
	}
}

// Run serves until ctx is done. It returns an error only when the buttons
// cannot be armed.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.irq.Start(ctx)
	for _, btn := range []*button.Button{s.b.ButtonA, s.b.ButtonB, s.b.ButtonC} {
		unwatch, err := btn.Watch(s.irq, core.EdgeBoth)
		if err != nil {
			return errcode.Wrap("watch button "+btn.Name(), err)
		}
		defer unwatch()
	}

	subs := map[*bus.Subscription]func(*bus.Message){}
	for _, r := range []struct {
		topic bus.Topic
		h     func(*bus.Message)
	}{
		{TopicLEDsSet, s.onLEDs},
		{TopicLEDsFade, func(m *bus.Message) { s.onFade(ctx, m) }},
		{TopicScreenText, s.onText},
		{TopicScreenLight, s.onBacklight},
		{TopicSpeakerPlay, s.onPlay},
		{TopicSpeakerStop, s.onStop},
		{TopicRadioSend, s.onRadioSend},
	} {
		sub := s.conn.Subscribe(r.topic)
		defer s.conn.Unsubscribe(sub)
		subs[sub] = r.h
	}
	reqs := merge(ctx, subs)

	go s.melodyLoop(ctx)

	tick := time.NewTicker(s.opts.Telemetry)
	defer tick.Stop()

	s.publishState("ready")
	defer s.publishState("stopped")
	s.telemetry()

	for {
		select {
		case <-ctx.Done():
			log.Info("stopping")
			return nil
		case ev := <-s.irq.Events():
			s.conn.Publish(s.conn.NewMessage(TopicButton.Append(ev.Name), ev, false))
		case <-tick.C:
			s.telemetry()
		case r := <-reqs:
			r.h(r.m)
		}
	}
}

type request struct {
	m *bus.Message
	h func(*bus.Message)
}

// merge fans the request subscriptions into one channel so the loop handles
// them in arrival order.
func merge(ctx context.Context, subs map[*bus.Subscription]func(*bus.Message)) <-chan request {
	out := make(chan request)
	for sub, h := range subs {
		go func() {
			for m := range sub.Channel() {
				select {
				case out <- request{m: m, h: h}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	return out
}

func (s *Service) publishState(level string) {
	s.conn.Publish(s.conn.NewMessage(TopicState, State{Level: level, TS: time.Now()}, true))
}

func (s *Service) telemetry() {
	if env, err := s.b.PortA.ReadEnv(); err != nil {
		log.Debug("env read failed", "err", err)
	} else {
		s.conn.Publish(s.conn.NewMessage(TopicEnv, env, true))
	}

	raw, err := s.b.PortB.Read()
	if err != nil {
		log.Warn("port b read failed", "err", err)
		return
	}
	r := PortBReading{Raw: raw}
	r.Level, _ = s.b.PortB.Level()
	r.Percent, _ = s.b.PortB.Percent()
	s.conn.Publish(s.conn.NewMessage(TopicPortB, r, true))
}

func (s *Service) onLEDs(m *bus.Message) {
	cmd, ok := m.Payload.(LEDCommand)
	if !ok {
		s.conn.Reply(m, replyOf(nil, errcode.InvalidParams), false)
		return
	}
	c := cmd.Color
	if cmd.Brightness != 0 {
		c = c.Scale(cmd.Brightness)
	}
	var err error
	if cmd.Index < 0 {
		s.b.LEDs.Fill(c)
	} else {
		err = s.b.LEDs.SetColorAtIndex(cmd.Index, c)
	}
	if err == nil {
		err = s.b.LEDs.Display()
	}
	s.conn.Reply(m, replyOf(nil, err), false)
}

// onFade runs on the service loop, so other requests wait for it.
func (s *Service) onFade(ctx context.Context, m *bus.Message) {
	cmd, ok := m.Payload.(FadeCommand)
	if !ok || cmd.Duration < 0 || cmd.Duration > MaxFade {
		s.conn.Reply(m, replyOf(nil, errcode.InvalidParams), false)
		return
	}
	var err error
	done := false
	tick := func(d time.Duration) bool {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return false
		case <-t.C:
			return true
		}
	}
	set := func(level uint16) {
		done = level == uint16(cmd.To)
		s.b.LEDs.Fill(cmd.Color.Scale(uint8(level)))
		if e := s.b.LEDs.Display(); e != nil && err == nil {
			err = e
		}
	}
	ramp.StartLinear(uint16(cmd.From), uint16(cmd.To), 255, uint32(cmd.Duration.Milliseconds()), fadeSteps, tick, set)
	if err == nil && !done {
		err = errcode.Timeout
	}
	s.conn.Reply(m, replyOf(nil, err), false)
}

func (s *Service) onText(m *bus.Message) {
	cmd, ok := m.Payload.(TextCommand)
	if !ok {
		s.conn.Reply(m, replyOf(nil, errcode.InvalidParams), false)
		return
	}
	if cmd.Clear != nil {
		s.b.Screen.FillBackground(*cmd.Clear)
	}
	end, err := s.b.Screen.DrawText(cmd.Text, cmd.Pos, cmd.Align, cmd.Color)
	s.conn.Reply(m, replyOf(end, err), false)
}

func (s *Service) onBacklight(m *bus.Message) {
	on, ok := m.Payload.(bool)
	if !ok {
		s.conn.Reply(m, replyOf(nil, errcode.InvalidParams), false)
		return
	}
	if on {
		s.b.Screen.TurnOn()
	} else {
		s.b.Screen.TurnOff()
	}
	s.conn.Reply(m, replyOf(s.b.Screen.IsOn(), nil), false)
}

// onPlay queues a melody. The speaker plays one at a time; a request while
// one is playing fails with busy.
func (s *Service) onPlay(m *bus.Message) {
	cmd, ok := m.Payload.(SpeakerCommand)
	if !ok || len(cmd.Melody) == 0 {
		s.conn.Reply(m, replyOf(nil, errcode.InvalidParams), false)
		return
	}
	if !s.playing.CompareAndSwap(false, true) {
		s.conn.Reply(m, replyOf(nil, errcode.Busy), false)
		return
	}
	s.stop.Store(false)
	s.melodies <- cmd
	s.conn.Reply(m, replyOf(nil, nil), false)
}

func (s *Service) onStop(m *bus.Message) {
	s.stop.Store(true)
	s.conn.Reply(m, replyOf(s.playing.Load(), nil), false)
}

func (s *Service) melodyLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-s.melodies:
			beat := cmd.Beat
			if beat == 0 {
				beat = DefaultBeat
			}
			err := s.b.Speaker.PlayMelody(ctx, cmd.Melody, beat, s.stop.Load)
			s.playing.Store(false)
			s.conn.Publish(s.conn.NewMessage(TopicMelody, err, false))
		}
	}
}

func (s *Service) onRadioSend(m *bus.Message) {
	cmd, ok := m.Payload.(string)
	if !ok {
		s.conn.Reply(m, replyOf(nil, errcode.InvalidParams), false)
		return
	}
	if s.b.Radio == nil {
		s.conn.Reply(m, replyOf(nil, errcode.NotReady), false)
		return
	}
	s.conn.Reply(m, replyOf(nil, s.b.Radio.Send(cmd)), false)
}

// RadioObserver publishes every peer write on TopicRadioRx and answers with
// reply, which may be nil for no answer. Publishing never blocks, so the
// observer is safe under the radio's config lock.
func RadioObserver(conn *bus.Connection, reply radio.Observer) radio.Observer {
	return func(msg []byte) (string, bool) {
		conn.Publish(conn.NewMessage(TopicRadioRx, append([]byte(nil), msg...), false))
		if reply == nil {
			return "", false
		}
		return reply(msg)
	}
}

// Echo answers a write with its own text.
func Echo(msg []byte) (string, bool) { return string(msg), true }

// Brightness maps a port B reading onto c.
func Brightness(c types.RGB, r PortBReading) types.RGB { return c.Scale(r.Level) }
