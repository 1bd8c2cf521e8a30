//go:build rp2040 || rp2350

// cmd/boardtest runs a hardware self-test over the bus: it sweeps the LED
// bar, sounds every note of one octave, checks that port A and port B
// telemetry arrives and reports PASS or FAIL on the screen.
package main

import (
	"context"
	"sync/atomic"
	"time"

	"devkit-go/board"
	"devkit-go/bus"
	"devkit-go/devices/port"
	"devkit-go/devices/speaker"
	"devkit-go/services/kit"
	"devkit-go/setups"
	"devkit-go/types"
)

// ---------- Configuration ----------

const (
	readyTimeout = 5 * time.Second
	stepDelay    = 80 * time.Millisecond
	freshMaxAge  = 2 * time.Second
	telemetry    = 500 * time.Millisecond

	// 0 = loop forever
	cyclesToRun = 0
)

// ---------- Helpers ----------

func waitReady(c *bus.Connection, d time.Duration) bool {
	sub := c.Subscribe(kit.TopicState)
	defer c.Unsubscribe(sub)

	timeout := time.After(d)
	for {
		select {
		case m := <-sub.Channel():
			if st, ok := m.Payload.(kit.State); ok && st.Level == "ready" {
				return true
			}
		case <-timeout:
			return false
		}
	}
}

func request(ui *bus.Connection, topic bus.Topic, payload any) bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m, err := ui.RequestWait(ctx, ui.NewMessage(topic, payload, false))
	if err != nil {
		println("[boardtest] request failed:", err.Error())
		return false
	}
	r, _ := m.Payload.(kit.Reply)
	if !r.OK {
		println("[boardtest] request refused:", r.Error)
	}
	return r.OK
}

func sweepLEDs(ui *bus.Connection) bool {
	ok := request(ui, kit.TopicLEDsSet, kit.LEDCommand{Index: -1, Color: types.Black})
	for i := 0; i < 10 && ok; i++ {
		ok = request(ui, kit.TopicLEDsSet, kit.LEDCommand{Index: i, Color: types.Green, Brightness: 64})
		time.Sleep(stepDelay)
	}
	return ok && request(ui, kit.TopicLEDsSet, kit.LEDCommand{Index: -1, Color: types.Black})
}

func scale(ui *bus.Connection, done *bus.Subscription) bool {
	tune := speaker.Melody{{Notes: speaker.Scale[:], Halves: 1, Octave: 4}}
	if !request(ui, kit.TopicSpeakerPlay, kit.SpeakerCommand{Melody: tune, Beat: 2 * stepDelay}) {
		return false
	}
	select {
	case m := <-done.Channel():
		return m.Payload == nil
	case <-time.After(5 * time.Second):
		return false
	}
}

func fresh(ts *atomic.Int64) bool {
	t := ts.Load()
	return t != 0 && time.Since(time.Unix(0, t)) <= freshMaxAge
}

func report(ui *bus.Connection, cycle int, pass bool, miss []string) {
	bg, fg, verdict := types.Green, types.White, "PASS"
	if !pass {
		bg, verdict = types.Red, "FAIL"
	}
	request(ui, kit.TopicScreenText, kit.TextCommand{
		Text: "boardtest", Pos: types.Point{X: 160, Y: 60}, Align: types.AlignCenter, Color: fg, Clear: &bg,
	})
	request(ui, kit.TopicScreenText, kit.TextCommand{
		Text: verdict, Pos: types.Point{X: 160, Y: 100}, Align: types.AlignCenter, Color: fg,
	})
	y := int16(140)
	for _, m := range miss {
		request(ui, kit.TopicScreenText, kit.TextCommand{Text: "missing " + m, Pos: types.Point{X: 20, Y: y}, Color: fg})
		y += 16
	}
	println("[boardtest] cycle", cycle, verdict)
}

// ---------- Main ----------

func main() {
	time.Sleep(2 * time.Second)
	ctx := context.Background()

	b, err := board.Open(setups.DefaultPlan, setups.DefaultSetup)
	board.Must("open board", err)

	fabric := bus.NewBus(8)
	ui := fabric.NewConnection("ui")
	svc := kit.New(b, fabric.NewConnection("kit"), kit.Options{Telemetry: telemetry})
	go func() { board.Must("run kit", svc.Run(ctx)) }()

	if !waitReady(ui, readyTimeout) {
		println("[boardtest] kit not ready within timeout; continuing")
	}
	request(ui, kit.TopicScreenLight, true)

	subEnv := ui.Subscribe(kit.TopicEnv)
	subPortB := ui.Subscribe(kit.TopicPortB)
	subDone := ui.Subscribe(kit.TopicMelody)

	var tsEnv, tsPortB atomic.Int64
	go func() {
		for {
			select {
			case m := <-subEnv.Channel():
				if env, ok := m.Payload.(port.Env); ok {
					tsEnv.Store(time.Now().UnixNano())
					println("[boardtest] env mC", env.MilliC, "rh", env.HumidityH)
				}
			case m := <-subPortB.Channel():
				if _, ok := m.Payload.(kit.PortBReading); ok {
					tsPortB.Store(time.Now().UnixNano())
				}
			}
		}
	}()

	for cycle := 1; ; cycle++ {
		miss := make([]string, 0, 4)
		if !sweepLEDs(ui) {
			miss = append(miss, "leds")
		}
		if !scale(ui, subDone) {
			miss = append(miss, "speaker")
		}
		if !fresh(&tsEnv) {
			miss = append(miss, "port A env")
		}
		if !fresh(&tsPortB) {
			miss = append(miss, "port B")
		}
		report(ui, cycle, len(miss) == 0, miss)

		if cyclesToRun > 0 && cycle >= cyclesToRun {
			println("[boardtest] completed", cycle, "cycles; halting")
			return
		}
		time.Sleep(2 * time.Second)
	}
}
