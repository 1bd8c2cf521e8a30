package aht20

import (
	"errors"
	"testing"
	"time"

	"devkit-go/errcode"
)

type fakeBus struct {
	status  byte
	frames  [][]byte // successive Collect answers
	writes  [][]byte
	failing error
}

func (b *fakeBus) Tx(addr uint16, w, r []byte) error {
	if b.failing != nil {
		return b.failing
	}
	if len(w) > 0 {
		b.writes = append(b.writes, append([]byte(nil), w...))
	}
	switch {
	case len(w) == 1 && w[0] == cmdStatus:
		r[0] = b.status
	case len(w) == 0 && len(r) > 0:
		if len(b.frames) == 0 {
			r[0] = statusBusy | statusCalibrated
			return nil
		}
		copy(r, b.frames[0])
		b.frames = b.frames[1:]
	}
	return nil
}

func newDevice(b *fakeBus) (*Device, *time.Duration) {
	d := New(b, Config{})
	var slept time.Duration
	d.sleep = func(t time.Duration) { slept += t }
	return d, &slept
}

// frame for raw humidity 0x80000 (50 %) and raw temperature 0x60000 (25 C)
var midFrame = []byte{statusCalibrated, 0x80, 0x00, 0x06, 0x00, 0x00, 0x00}

func TestReadConverts(t *testing.T) {
	b := &fakeBus{status: statusCalibrated, frames: [][]byte{midFrame}}
	d, _ := newDevice(b)

	s, err := d.Read()
	if err != nil {
		t.Fatal(err)
	}
	if s.RawHumidity != 0x80000 || s.RawTemp != 0x60000 {
		t.Fatalf("raw %+v", s)
	}
	if s.MilliCelsius() != 25000 || s.CentiRelHumidity() != 5000 {
		t.Fatalf("converted %d mC %d", s.MilliCelsius(), s.CentiRelHumidity())
	}
	if len(b.writes) != 2 || b.writes[1][0] != cmdTrigger {
		t.Fatalf("writes %x", b.writes)
	}
}

func TestConfigureCalibratesOnce(t *testing.T) {
	b := &fakeBus{frames: [][]byte{midFrame, midFrame}}
	d, slept := newDevice(b)

	if _, err := d.Read(); err != nil {
		t.Fatal(err)
	}
	if b.writes[1][0] != cmdInitialize || *slept != 10*time.Millisecond {
		t.Fatalf("writes %x slept %v", b.writes, *slept)
	}
	n := len(b.writes)
	if _, err := d.Read(); err != nil {
		t.Fatal(err)
	}
	if len(b.writes) != n+1 {
		t.Fatalf("second read wrote %x", b.writes[n:])
	}
}

func TestReadPollsUntilReady(t *testing.T) {
	busy := []byte{statusBusy | statusCalibrated}
	b := &fakeBus{status: statusCalibrated, frames: [][]byte{busy, busy, midFrame}}
	d, slept := newDevice(b)

	if _, err := d.Read(); err != nil {
		t.Fatal(err)
	}
	if *slept != 30*time.Millisecond {
		t.Fatalf("slept %v", *slept)
	}
}

func TestReadTimesOut(t *testing.T) {
	b := &fakeBus{status: statusCalibrated}
	d, _ := newDevice(b)
	if _, err := d.Read(); errcode.Of(err) != errcode.Timeout {
		t.Fatalf("err %v", err)
	}
}

func TestBusError(t *testing.T) {
	boom := errors.New("nack")
	d, _ := newDevice(&fakeBus{failing: boom})
	if _, err := d.Read(); !errors.Is(err, boom) {
		t.Fatalf("err %v", err)
	}
}

func TestSampleExtremes(t *testing.T) {
	if s := (Sample{}); s.MilliCelsius() != -50000 || s.CentiRelHumidity() != 0 {
		t.Fatalf("zero sample %d %d", s.MilliCelsius(), s.CentiRelHumidity())
	}
}
