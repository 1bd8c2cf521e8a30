// Package port exposes the three expansion ports: A (I2C), B (GPIO + ADC)
// and C (UART).
package port

import (
	"devkit-go/drivers/aht20"
	"devkit-go/errcode"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/sht3x"
)

// Env is one environment reading.
type Env struct {
	MilliC    int32 // temperature, thousandths of a degree Celsius
	HumidityH int16 // relative humidity, hundredths of a percent
}

// Environment units port A can read.
const (
	SensorSHT3x = "sht3x"
	SensorAHT20 = "aht20"
)

// PortA is the I2C port. Bus is free for any unit; ReadEnv talks to the
// environment unit chosen at construction.
type PortA struct {
	Bus  drivers.I2C
	read func() (Env, error)
}

// NewPortA binds the bus. sensor "" selects the SHT3x; addr 0 selects the
// sensor's default address.
func NewPortA(bus drivers.I2C, sensor string, addr uint16) (*PortA, error) {
	p := &PortA{Bus: bus}
	switch sensor {
	case "", SensorSHT3x:
		env := sht3x.New(bus)
		if addr != 0 {
			env.Address = addr
		}
		p.read = func() (Env, error) {
			t, h, err := env.ReadTemperatureHumidity()
			return Env{MilliC: t, HumidityH: h}, err
		}
	case SensorAHT20:
		env := aht20.New(bus, aht20.Config{Address: addr})
		p.read = func() (Env, error) {
			s, err := env.Read()
			return Env{MilliC: s.MilliCelsius(), HumidityH: s.CentiRelHumidity()}, err
		}
	default:
		return nil, &errcode.E{C: errcode.Unsupported, Op: "port a", Msg: "sensor " + sensor}
	}
	return p, nil
}

func (p *PortA) ReadEnv() (Env, error) {
	env, err := p.read()
	if err != nil {
		return Env{}, &errcode.E{C: errcode.MapDriverErr(err), Op: "port a read env", Err: err}
	}
	return env, nil
}
