package port

import (
	"context"

	"devkit-go/internal/core"
)

// PortCBaud is the fixed line rate of port C.
const PortCBaud = 9600

// PortC is the UART port.
type PortC struct {
	core.SerialPort
}

func NewPortC(s core.SerialPort) (*PortC, error) {
	if err := s.SetBaudRate(PortCBaud); err != nil {
		return nil, err
	}
	return &PortC{SerialPort: s}, nil
}

// ReadLine reads bytes until '\n' (not included), ctx is done or buf is
// full.
func (p *PortC) ReadLine(ctx context.Context, buf []byte) (int, error) {
	n := 0
	var one [1]byte
	for n < len(buf) {
		if _, err := p.RecvSomeContext(ctx, one[:]); err != nil {
			return n, err
		}
		if one[0] == '\n' {
			return n, nil
		}
		buf[n] = one[0]
		n++
	}
	return n, nil
}
