// Package board assembles the kit from a wiring setup: every pin and bus is
// claimed once, up front, and handed out as a ready device.
package board

import (
	"context"

	"devkit-go/devices/button"
	"devkit-go/devices/leds"
	"devkit-go/devices/port"
	"devkit-go/devices/screen"
	"devkit-go/devices/speaker"
	"devkit-go/errcode"
	"devkit-go/internal/core"
	"devkit-go/internal/provider"
	"devkit-go/radio"
	"devkit-go/radio/gatts"
	"devkit-go/setups"
	"devkit-go/x/logx"
)

var log = logx.New("board")

type pinClaim struct {
	dev string
	pin int
}

type busClaim struct {
	dev string
	bus core.ResourceID
}

type Board struct {
	ButtonA *button.Button
	ButtonB *button.Button
	ButtonC *button.Button
	LEDs    *leds.Strip
	Screen  *screen.Screen
	PortA   *port.PortA
	PortB   *port.PortB
	PortC   *port.PortC
	Speaker *speaker.Speaker
	Radio   *radio.Radio // nil until SetupRadio

	reg   core.ResourceRegistry
	setup setups.KitSetup
	pins  []pinClaim
	buses []busClaim
}

// Open takes the peripherals for plan and builds the board on them. It can
// succeed once per boot.
func Open(plan setups.ResourcePlan, setup setups.KitSetup) (*Board, error) {
	reg, err := provider.Take(plan)
	if err != nil {
		return nil, errcode.Wrap("take peripherals", err)
	}
	b, err := New(reg, setup)
	if err != nil {
		reg.Close()
		return nil, err
	}
	return b, nil
}

// New claims every resource named by setup. On failure everything claimed
// so far is released and the error names the component.
func New(reg core.ResourceRegistry, setup setups.KitSetup) (*Board, error) {
	b := &Board{reg: reg, setup: setup}
	if err := b.build(); err != nil {
		b.Close()
		return nil, err
	}
	log.Info("board ready")
	return b, nil
}

func (b *Board) build() error {
	s := b.setup

	var btns [3]*button.Button
	for i, p := range s.Buttons {
		dev := "button_" + p.Name
		h, err := b.claimPin(dev, p.Pin, core.FuncGPIOIn)
		if err != nil {
			return err
		}
		if btns[i], err = button.New(p.Name, h.AsGPIO(), p.ActiveLow, p.DebounceMs); err != nil {
			return err
		}
	}
	b.ButtonA, b.ButtonB, b.ButtonC = btns[0], btns[1], btns[2]

	if s.LEDs.Count != leds.Count {
		return &errcode.E{C: errcode.InvalidParams, Op: "leds", Msg: "strip length mismatch"}
	}
	h, err := b.claimPin("leds", s.LEDs.Pin, core.FuncLED)
	if err != nil {
		return err
	}
	b.LEDs = leds.New(h.AsLED())

	if err := b.buildScreen(); err != nil {
		return err
	}

	i2c, err := claimBusOf(b, "port_a", core.ResourceID(s.PortA.Bus), b.reg.ClaimI2C)
	if err != nil {
		return err
	}
	if b.PortA, err = port.NewPortA(i2c, s.PortA.EnvSensor, s.PortA.EnvAddr); err != nil {
		return err
	}

	io, err := b.claimPin("port_b_io", s.PortB.IO, core.FuncGPIOIn)
	if err != nil {
		return err
	}
	adc, err := b.claimPin("port_b_adc", s.PortB.ADC, core.FuncADC)
	if err != nil {
		return err
	}
	b.PortB = port.NewPortB(io.AsGPIO(), adc.AsADC())

	ser, err := claimBusOf(b, "port_c", core.ResourceID(s.PortC.Bus), b.reg.ClaimSerial)
	if err != nil {
		return err
	}
	if b.PortC, err = port.NewPortC(ser); err != nil {
		return errcode.Wrap("port_c", err)
	}

	spk, err := b.claimPin("speaker", s.Speaker.Pin, core.FuncPWM)
	if err != nil {
		return err
	}
	b.Speaker = speaker.New(spk.AsPWM(), s.Speaker.Duty)
	return nil
}

func (b *Board) buildScreen() error {
	s := b.setup.Screen
	bus := core.ResourceID(s.Bus)
	d, err := b.reg.ClaimDisplay("screen", bus, core.DisplayPins{DC: s.DC, CS: s.CS, RST: s.RST})
	if err != nil {
		return errcode.Wrap("screen", err)
	}
	b.buses = append(b.buses, busClaim{"screen", bus})
	for _, n := range []int{s.DC, s.CS, s.RST} {
		b.pins = append(b.pins, pinClaim{"screen", n})
	}
	bl, err := b.claimPin("screen_backlight", s.Backlight, core.FuncGPIOOut)
	if err != nil {
		return err
	}
	if b.Screen, err = screen.New(d, bl.AsGPIO()); err != nil {
		return err
	}
	return nil
}

func (b *Board) claimPin(dev string, n int, fn core.PinFunc) (core.PinHandle, error) {
	h, err := b.reg.ClaimPin(dev, n, fn)
	if err != nil {
		return nil, errcode.Wrap(dev, err)
	}
	b.pins = append(b.pins, pinClaim{dev, n})
	return h, nil
}

func claimBusOf[T any](b *Board, dev string, id core.ResourceID, claim func(string, core.ResourceID) (T, error)) (T, error) {
	h, err := claim(dev, id)
	if err != nil {
		var zero T
		return zero, errcode.Wrap(dev, err)
	}
	b.buses = append(b.buses, busClaim{dev, id})
	return h, nil
}

// SetupRadio brings the radio up on stack and starts advertising. The
// device name comes from the setup. ctx bounds the bring-up.
func (b *Board) SetupRadio(ctx context.Context, stack gatts.Stack, cfg radio.Config) error {
	if b.Radio != nil {
		return errcode.Busy
	}
	r, err := radio.New(ctx, stack, cfg, radio.Options{Name: b.setup.Radio.Name})
	if err != nil {
		return err
	}
	if err := r.Start(); err != nil {
		return err
	}
	b.Radio = r
	return nil
}

// Close releases every claim in reverse order. The devices must not be used
// afterwards.
func (b *Board) Close() {
	for i := len(b.buses) - 1; i >= 0; i-- {
		b.reg.ReleaseBus(b.buses[i].dev, b.buses[i].bus)
	}
	for i := len(b.pins) - 1; i >= 0; i-- {
		b.reg.ReleasePin(b.pins[i].dev, b.pins[i].pin)
	}
	b.buses, b.pins = nil, nil
}

// Must aborts with the failing action when err is non-nil.
func Must(action string, err error) {
	if err != nil {
		println("[board] FATAL", action+":", err.Error())
		panic("failed to " + action)
	}
}
