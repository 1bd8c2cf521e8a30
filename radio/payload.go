package radio

import (
	"devkit-go/radio/gatts"

	"github.com/google/uuid"
)

// ServiceMarker is the 128-bit service UUID carried in both payloads.
var ServiceMarker = gatts.UUID128(uuid.MustParse("000000ff-0000-1000-8000-00805f9b34fb"))

// Preferred connection interval bounds, 1.25 ms units.
const (
	advMinInterval = 6
	advMaxInterval = 16
)

// AdvertisingPayload is always broadcast: name, no TX power.
func AdvertisingPayload() gatts.AdvertiseData {
	marker := ServiceMarker
	return gatts.AdvertiseData{
		IncludeName:    true,
		IncludeTxPower: false,
		MinInterval:    advMinInterval,
		MaxInterval:    advMaxInterval,
		ServiceUUID:    &marker,
		Flags:          gatts.FlagGenDisc | gatts.FlagBREDRNotSupport,
	}
}

// ScanResponsePayload answers active scans: TX power, no name.
func ScanResponsePayload() gatts.AdvertiseData {
	marker := ServiceMarker
	return gatts.AdvertiseData{
		SetScanRsp:     true,
		IncludeName:    false,
		IncludeTxPower: true,
		ServiceUUID:    &marker,
	}
}
