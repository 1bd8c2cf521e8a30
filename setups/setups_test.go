package setups

import "testing"

// Every GPIO referenced by the default setup must be distinct and inside the
// plan's range, otherwise board bring-up fails on a double claim.
func TestDefaultSetupPinsDistinct(t *testing.T) {
	seen := map[int]string{}
	claim := func(name string, n int) {
		if n < 0 {
			return
		}
		if n < DefaultPlan.GPIOMin || n > DefaultPlan.GPIOMax {
			t.Fatalf("%s: pin %d outside plan range", name, n)
		}
		if prev, dup := seen[n]; dup {
			t.Fatalf("%s: pin %d already used by %s", name, n, prev)
		}
		seen[n] = name
	}
	for _, b := range DefaultSetup.Buttons {
		claim("button "+b.Name, b.Pin)
	}
	claim("leds", DefaultSetup.LEDs.Pin)
	claim("screen dc", DefaultSetup.Screen.DC)
	claim("screen cs", DefaultSetup.Screen.CS)
	claim("screen rst", DefaultSetup.Screen.RST)
	claim("screen bl", DefaultSetup.Screen.Backlight)
	claim("port b io", DefaultSetup.PortB.IO)
	claim("port b adc", DefaultSetup.PortB.ADC)
	claim("speaker", DefaultSetup.Speaker.Pin)
	for _, p := range DefaultPlan.I2C {
		claim(p.ID+" sda", p.SDA)
		claim(p.ID+" scl", p.SCL)
	}
	for _, p := range DefaultPlan.SPI {
		claim(p.ID+" sck", p.SCK)
		claim(p.ID+" sdo", p.SDO)
		claim(p.ID+" sdi", p.SDI)
	}
	for _, p := range DefaultPlan.UART {
		claim(p.ID+" tx", p.TX)
		claim(p.ID+" rx", p.RX)
	}
}

func TestDefaultSetupBusesExist(t *testing.T) {
	has := func(id string) bool {
		for _, p := range DefaultPlan.I2C {
			if p.ID == id {
				return true
			}
		}
		for _, p := range DefaultPlan.SPI {
			if p.ID == id {
				return true
			}
		}
		for _, p := range DefaultPlan.UART {
			if p.ID == id {
				return true
			}
		}
		return false
	}
	for _, id := range []string{DefaultSetup.Screen.Bus, DefaultSetup.PortA.Bus, DefaultSetup.PortC.Bus} {
		if !has(id) {
			t.Fatalf("bus %q not in plan", id)
		}
	}
	if DefaultSetup.LEDs.Count != 10 {
		t.Fatalf("kit has 10 LEDs, setup says %d", DefaultSetup.LEDs.Count)
	}
}
