// Package aht20 drives the AHT20 temperature/humidity sensor.
//
// A measurement is two-phase: Trigger starts a conversion and Collect fetches
// it, returning ErrNotReady while the sensor is busy. Read does both with
// bounded polling.
//
// The bus must perform a write followed by a repeated-start read when both w
// and r are given. Results are fixed-point.
package aht20

import (
	"time"

	"devkit-go/errcode"

	"tinygo.org/x/drivers"
)

const Address = 0x38

const (
	cmdTrigger    = 0xAC
	cmdInitialize = 0xBE
	cmdSoftReset  = 0xBA
	cmdStatus     = 0x71

	statusBusy       = 0x80
	statusCalibrated = 0x08
)

var (
	ErrTimeout  = &errcode.E{C: errcode.Timeout, Op: "aht20"}
	ErrNotReady = &errcode.E{C: errcode.NotReady, Op: "aht20"}
)

// Config is optional; zero fields take the defaults.
type Config struct {
	Address        uint16        // 0x38
	PollInterval   time.Duration // 15 ms, between Collect attempts in Read
	CollectTimeout time.Duration // 250 ms, bounds Read
}

type Device struct {
	bus   drivers.I2C
	cfg   Config
	buf   [7]byte
	ready bool
	sleep func(time.Duration)
}

// New binds bus without touching the sensor.
func New(bus drivers.I2C, cfg Config) *Device {
	if cfg.Address == 0 {
		cfg.Address = Address
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Millisecond
	}
	if cfg.CollectTimeout <= 0 {
		cfg.CollectTimeout = 250 * time.Millisecond
	}
	return &Device{bus: bus, cfg: cfg, sleep: time.Sleep}
}

func (d *Device) Address() uint16 { return d.cfg.Address }

// Configure calibrates the sensor unless it reports calibrated already.
func (d *Device) Configure() error {
	st, err := d.Status()
	if err == nil && st&statusCalibrated != 0 {
		d.ready = true
		return nil
	}
	if err := d.bus.Tx(d.cfg.Address, []byte{cmdInitialize, 0x08, 0x00}, nil); err != nil {
		return err
	}
	d.sleep(10 * time.Millisecond)
	d.ready = true
	return nil
}

// Reset issues a soft reset; give the sensor ~20 ms before using it.
func (d *Device) Reset() error {
	d.ready = false
	return d.bus.Tx(d.cfg.Address, []byte{cmdSoftReset}, nil)
}

func (d *Device) Status() (byte, error) {
	var st [1]byte
	if err := d.bus.Tx(d.cfg.Address, []byte{cmdStatus}, st[:]); err != nil {
		return 0, err
	}
	return st[0], nil
}

// Trigger starts a conversion, calibrating first if needed.
func (d *Device) Trigger() error {
	if !d.ready {
		if err := d.Configure(); err != nil {
			return err
		}
	}
	return d.bus.Tx(d.cfg.Address, []byte{cmdTrigger, 0x33, 0x00}, nil)
}

// Collect fetches a finished conversion.
func (d *Device) Collect() (Sample, error) {
	data := d.buf[:]
	if err := d.bus.Tx(d.cfg.Address, nil, data); err != nil {
		return Sample{}, err
	}
	if data[0]&statusCalibrated == 0 || data[0]&statusBusy != 0 {
		return Sample{}, ErrNotReady
	}
	return Sample{
		RawHumidity: uint32(data[1])<<12 | uint32(data[2])<<4 | uint32(data[3])>>4,
		RawTemp:     uint32(data[3]&0x0F)<<16 | uint32(data[4])<<8 | uint32(data[5]),
	}, nil
}

// Read triggers and polls until a sample arrives or CollectTimeout passes.
func (d *Device) Read() (Sample, error) {
	if err := d.Trigger(); err != nil {
		return Sample{}, err
	}
	var waited time.Duration
	for {
		s, err := d.Collect()
		if err != ErrNotReady {
			return s, err
		}
		if waited >= d.cfg.CollectTimeout {
			return Sample{}, ErrTimeout
		}
		d.sleep(d.cfg.PollInterval)
		waited += d.cfg.PollInterval
	}
}

// Sample holds the raw 20-bit readings.
type Sample struct {
	RawHumidity uint32
	RawTemp     uint32
}

func (s Sample) MilliCelsius() int32 {
	return int32(int64(s.RawTemp)*200000>>20) - 50000
}

// CentiRelHumidity returns hundredths of %RH.
func (s Sample) CentiRelHumidity() int16 {
	return int16(int64(s.RawHumidity) * 10000 >> 20)
}
