package setups

// KitSetup maps every logical component of the kit to its physical
// resources. Bus fields reference IDs from the ResourcePlan.
type KitSetup struct {
	Buttons [3]ButtonParams
	LEDs    LEDParams
	Screen  ScreenParams
	PortA   PortAParams
	PortB   PortBParams
	PortC   PortCParams
	Speaker SpeakerParams
	Radio   RadioParams
}

type ButtonParams struct {
	Name       string
	Pin        int
	ActiveLow  bool
	DebounceMs int
}

type LEDParams struct {
	Pin   int
	Count int
}

type ScreenParams struct {
	Bus       string
	DC        int
	CS        int
	RST       int
	Backlight int
}

type PortAParams struct {
	Bus       string
	EnvSensor string // "sht3x" (default) or "aht20"
	EnvAddr   uint16 // 0 selects the sensor's default address
}

type PortBParams struct {
	IO  int // in/out GPIO
	ADC int // analog input
}

type PortCParams struct {
	Bus string
}

type SpeakerParams struct {
	Pin  int
	Duty uint16 // PWM level while a note sounds; 0 selects 1
}

type RadioParams struct {
	Name string // advertised device name
}
