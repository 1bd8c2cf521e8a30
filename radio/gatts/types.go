// Package gatts models a callback-driven GATT server stack: every request
// is acknowledged later through one generic event handler.
package gatts

import (
	"strconv"

	"github.com/google/uuid"
)

// Interface is the id the stack assigns to a registered application.
type Interface uint8

type (
	ServiceHandle uint16
	AttrHandle    uint16
	ConnID        uint16
	TransID       uint32
)

func (i Interface) String() string     { return strconv.FormatUint(uint64(i), 10) }
func (h ServiceHandle) String() string { return strconv.FormatUint(uint64(h), 10) }
func (h AttrHandle) String() string    { return strconv.FormatUint(uint64(h), 10) }
func (c ConnID) String() string        { return strconv.FormatUint(uint64(c), 10) }
func (t TransID) String() string       { return strconv.FormatUint(uint64(t), 10) }

// Status is the ATT status carried by events and responses.
type Status uint8

const (
	StatusOK              Status = 0x00
	StatusInvalidHandle   Status = 0x01
	StatusReadNotPermit   Status = 0x02
	StatusWriteNotPermit  Status = 0x03
	StatusInvalidOffset   Status = 0x07
	StatusInsufficientRes Status = 0x11
	StatusError           Status = 0x85
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInvalidHandle:
		return "invalid_handle"
	case StatusReadNotPermit:
		return "read_not_permit"
	case StatusWriteNotPermit:
		return "write_not_permit"
	case StatusInvalidOffset:
		return "invalid_offset"
	case StatusInsufficientRes:
		return "insufficient_resources"
	case StatusError:
		return "error"
	}
	return "status_" + strconv.FormatUint(uint64(s), 16)
}

// Perm is an attribute permission mask.
type Perm uint16

const (
	PermRead  Perm = 1 << 0
	PermWrite Perm = 1 << 4
)

// Prop is a characteristic property mask.
type Prop uint8

const (
	PropRead   Prop = 1 << 1
	PropWrite  Prop = 1 << 3
	PropNotify Prop = 1 << 4
)

// AutoRsp selects who answers reads and writes.
type AutoRsp uint8

const (
	RspByApp AutoRsp = iota
	RspAuto
)

// Well-known 16-bit assigned numbers.
const (
	ServiceBattery     uint16 = 0x180F
	DescrClientConfig  uint16 = 0x2902
	DescrUserDesc      uint16 = 0x2901
	ServiceDeviceInfo  uint16 = 0x180A
	ServiceGenericAttr uint16 = 0x1801
)

// baseUUID is the Bluetooth base UUID; 16-bit UUIDs live in bytes 2..3.
var baseUUID = uuid.MustParse("00000000-0000-1000-8000-00805f9b34fb")

// UUID is a 16-bit or 128-bit attribute type. The 16-bit form is kept as a
// flag over its expansion into the base UUID.
type UUID struct {
	full  uuid.UUID
	short bool
}

func UUID16(v uint16) UUID {
	u := baseUUID
	u[2], u[3] = byte(v>>8), byte(v)
	return UUID{full: u, short: true}
}

func UUID128(u uuid.UUID) UUID { return UUID{full: u} }

func (u UUID) Is16() bool        { return u.short }
func (u UUID) Short() uint16     { return uint16(u.full[2])<<8 | uint16(u.full[3]) }
func (u UUID) Full() uuid.UUID   { return u.full }
func (u UUID) IsZero() bool      { return u.full == uuid.Nil }
func (u UUID) Equal(o UUID) bool { return u.full == o.full }

// LittleEndian returns the 128-bit form in over-the-air byte order.
func (u UUID) LittleEndian() [16]byte {
	var b [16]byte
	for i := range b {
		b[i] = u.full[15-i]
	}
	return b
}

func (u UUID) String() string {
	if u.short {
		return "0x" + strconv.FormatUint(uint64(u.Short()), 16)
	}
	return u.full.String()
}
