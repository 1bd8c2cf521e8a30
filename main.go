//go:build rp2040 || rp2350

package main

import (
	"context"
	"time"

	"devkit-go/board"
	"devkit-go/bus"
	"devkit-go/devices/speaker"
	"devkit-go/internal/gpioirq"
	"devkit-go/radio"
	"devkit-go/radio/btstack"
	"devkit-go/services/config"
	"devkit-go/services/console"
	"devkit-go/services/heartbeat"
	"devkit-go/services/kit"
	"devkit-go/setups"
	"devkit-go/types"
)

var palette = []types.RGB{
	types.Red, types.Green, types.Blue, types.Yellow,
	types.Cyan, types.Magenta, types.HotPink, types.White,
}

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("[main] boot")

	ctx := context.Background()
	b, err := board.Open(setups.DefaultPlan, setups.DefaultSetup)
	board.Must("open board", err)

	fabric := bus.NewBus(8)
	app := fabric.NewConnection("app")
	config.New(config.DefaultDevice).Start(ctx, fabric.NewConnection("config"))

	cfg := radio.NewConfig().OnReceive(kit.RadioObserver(fabric.NewConnection("radio"), kit.Echo))
	board.Must("setup radio", b.SetupRadio(ctx, btstack.New(nil), cfg))

	state := app.Subscribe(kit.TopicState)
	svc := kit.New(b, fabric.NewConnection("kit"), kit.Options{Telemetry: 250 * time.Millisecond})
	go func() { board.Must("run kit", svc.Run(ctx)) }()
	<-state.Channel()
	app.Unsubscribe(state)

	heartbeat.New(heartbeat.DefaultInterval).Start(ctx, fabric.NewConnection("heartbeat"))
	go console.New(fabric.NewConnection("console"), b.PortC).Run(ctx)

	// the kit owns the screen from here on
	bg := types.Black
	board.Must("backlight", request(ctx, app, kit.TopicScreenLight, true))
	board.Must("draw title", request(ctx, app, kit.TopicScreenText, kit.TextCommand{
		Text: "DevKit", Pos: types.Point{X: 160, Y: 40}, Align: types.AlignCenter, Color: types.White, Clear: &bg,
	}))
	board.Must("draw help", request(ctx, app, kit.TopicScreenText, kit.TextCommand{
		Text: "A/B: colour  C: tune\nport B: brightness", Pos: types.Point{X: 160, Y: 80}, Align: types.AlignCenter, Color: types.Cyan,
	}))

	buttons := app.Subscribe(kit.TopicButton.Append("+"))
	levels := app.Subscribe(kit.TopicPortB)
	rx := app.Subscribe(kit.TopicRadioRx)

	idx := 0
	reading := kit.PortBReading{Level: 255}
	rxPos := types.Point{X: 10, Y: 200}

	for {
		select {
		case m := <-buttons.Channel():
			ev, ok := m.Payload.(gpioirq.Event)
			if !ok || !ev.Pressed {
				continue
			}
			switch ev.Name {
			case "a":
				idx = (idx + 1) % len(palette)
			case "b":
				idx = (idx + len(palette) - 1) % len(palette)
			case "c":
				app.Publish(app.NewMessage(kit.TopicSpeakerPlay, kit.SpeakerCommand{Melody: speaker.OdeToJoy}, false))
				continue
			}
		case m := <-levels.Channel():
			r, ok := m.Payload.(kit.PortBReading)
			if !ok || r.Level == reading.Level {
				continue
			}
			reading = r
		case m := <-rx.Channel():
			msg, _ := m.Payload.([]byte)
			println("[main] radio rx", string(msg))
			if err := request(ctx, app, kit.TopicScreenText, kit.TextCommand{
				Text: string(msg), Pos: rxPos, Color: types.Yellow,
			}); err != nil {
				println("[main] draw rx:", err.Error())
			}
			continue
		}
		paint(ctx, app, kit.Brightness(palette[idx], reading))
	}
}

func paint(ctx context.Context, app *bus.Connection, c types.RGB) {
	if err := request(ctx, app, kit.TopicLEDsSet, kit.LEDCommand{Index: -1, Color: c}); err != nil {
		println("[main] leds:", err.Error())
	}
}

func request(ctx context.Context, app *bus.Connection, topic bus.Topic, payload any) error {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	m, err := app.RequestWait(ctx, app.NewMessage(topic, payload, false))
	if err != nil {
		return err
	}
	if r, ok := m.Payload.(kit.Reply); ok && !r.OK {
		return errString(r.Error)
	}
	return nil
}

type errString string

func (e errString) Error() string { return string(e) }
