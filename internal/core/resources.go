package core

import (
	"context"
	"image/color"

	"tinygo.org/x/drivers"
)

type ResourceID string // e.g. "i2c0", "spi1", "uart0"

// ---- GPIO handles ----

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

type GPIOHandle interface {
	Number() int
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(bool)
	Get() bool
	Toggle()
}

// Edge selection for IRQ.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	default:
		return "none"
	}
}

// IRQPin extends GPIOHandle with interrupts. The handler runs in interrupt
// context and must not block.
type IRQPin interface {
	GPIOHandle
	SetIRQ(edge Edge, handler func()) error
	ClearIRQ() error
}

// ---- PWM / ADC / LED ----

// PWMHandle is one channel. Configure reprograms the whole timer, which is
// the only way to change frequency.
type PWMHandle interface {
	Configure(freqHz uint64, top uint16) error
	Set(level uint16) // 0..top
	Enable(on bool)
}

// ADCMax is the full-scale value returned by ADCHandle.Read.
const ADCMax = 4095

type ADCHandle interface {
	Read() (uint16, error) // 0..ADCMax
}

// LEDWriter pushes a whole addressable-LED frame in index order.
type LEDWriter interface {
	WriteColors(buf []color.RGBA) error
}

// Display is the drawing surface of the screen controller.
type Display interface {
	drivers.Displayer
	FillScreen(c color.RGBA)
}

// ---- Stream buses ----

type SerialPort interface {
	Write(p []byte) (int, error)
	RecvSomeContext(ctx context.Context, p []byte) (int, error)
	SetBaudRate(br uint32) error
}

// ---- Claims ----

type PinFunc uint8

const (
	FuncGPIOIn PinFunc = iota
	FuncGPIOOut
	FuncPWM
	FuncADC
	FuncLED // addressable LED data line
)

// PinHandle is the result of a pin claim; As* panics when the pin was
// claimed for a different function.
type PinHandle interface {
	Pin() int
	AsGPIO() IRQPin
	AsPWM() PWMHandle
	AsADC() ADCHandle
	AsLED() LEDWriter
}

// DisplayPins names the control lines of an SPI display.
type DisplayPins struct {
	DC, CS, RST int
}

// ResourceRegistry hands out exclusive ownership of pins and buses.
// A second claim of a held resource fails with pin_in_use / bus_in_use.
type ResourceRegistry interface {
	ClaimPin(devID string, n int, fn PinFunc) (PinHandle, error)
	ReleasePin(devID string, n int)

	ClaimI2C(devID string, id ResourceID) (drivers.I2C, error)
	ClaimSerial(devID string, id ResourceID) (SerialPort, error)
	// ClaimDisplay claims an SPI bus plus its control pins and returns the
	// configured controller.
	ClaimDisplay(devID string, bus ResourceID, pins DisplayPins) (Display, error)
	ReleaseBus(devID string, id ResourceID)

	Close()
}
