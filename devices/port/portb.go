package port

import (
	"devkit-go/errcode"
	"devkit-go/internal/core"
	"devkit-go/x/mathx"
)

// PortB pairs a general purpose pin with an analog input.
type PortB struct {
	IO  core.GPIOHandle
	adc core.ADCHandle
}

func NewPortB(io core.GPIOHandle, adc core.ADCHandle) *PortB {
	return &PortB{IO: io, adc: adc}
}

// Read returns the raw conversion, 0..core.ADCMax.
func (p *PortB) Read() (uint16, error) {
	v, err := p.adc.Read()
	if err != nil {
		return 0, &errcode.E{C: errcode.MapDriverErr(err), Op: "port b read", Err: err}
	}
	return mathx.Min(v, core.ADCMax), nil
}

// Level maps the reading onto 0..255, e.g. for LED brightness.
func (p *PortB) Level() (uint8, error) {
	v, err := p.Read()
	if err != nil {
		return 0, err
	}
	return uint8(mathx.MapU16(v, 0, core.ADCMax, 0, 255)), nil
}

// Percent maps the reading onto 0..100, rounded.
func (p *PortB) Percent() (uint8, error) {
	v, err := p.Read()
	if err != nil {
		return 0, err
	}
	return uint8(mathx.RoundDiv(uint32(v)*100, core.ADCMax)), nil
}
