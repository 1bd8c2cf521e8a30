package btstack

import (
	"time"

	"devkit-go/radio/gatts"

	"tinygo.org/x/bluetooth"
)

// advInterval is the advertising period. The payload's interval range is a
// connection interval preference and does not apply here.
const advInterval = 100 * time.Millisecond

func toUUID(u gatts.UUID) bluetooth.UUID {
	if u.Is16() {
		return bluetooth.New16BitUUID(u.Short())
	}
	return bluetooth.NewUUID([16]byte(u.Full()))
}

// charFlags maps permissions and properties onto the adapter's single flag
// set. Write always implies write-without-response so that zero-length
// read requests can reach the write callback.
func charFlags(perm gatts.Perm, prop gatts.Prop) bluetooth.CharacteristicPermissions {
	var f bluetooth.CharacteristicPermissions
	if perm&gatts.PermRead != 0 || prop&gatts.PropRead != 0 {
		f |= bluetooth.CharacteristicReadPermission
	}
	if perm&gatts.PermWrite != 0 || prop&gatts.PropWrite != 0 {
		f |= bluetooth.CharacteristicWritePermission | bluetooth.CharacteristicWriteWithoutResponsePermission
	}
	if prop&gatts.PropNotify != 0 {
		f |= bluetooth.CharacteristicNotifyPermission
	}
	return f
}

// advOptions merges the advertising and scan-response payloads into the
// adapter's single option set.
func advOptions(name string, adv, scan gatts.AdvertiseData) bluetooth.AdvertisementOptions {
	opts := bluetooth.AdvertisementOptions{}
	if adv.IncludeName || scan.IncludeName {
		opts.LocalName = name
	}
	for _, d := range []gatts.AdvertiseData{adv, scan} {
		if d.ServiceUUID != nil && len(opts.ServiceUUIDs) == 0 {
			opts.ServiceUUIDs = []bluetooth.UUID{toUUID(*d.ServiceUUID)}
		}
		if len(d.Manufacturer) > 0 && len(opts.ManufacturerData) == 0 {
			opts.ManufacturerData = []bluetooth.ManufacturerDataElement{
				{CompanyID: 0xFFFF, Data: d.Manufacturer},
			}
		}
	}
	opts.Interval = bluetooth.NewDuration(advInterval)
	return opts
}
