package setups

// Default wiring of the kit (Pico W carrier, GP numbering).
var DefaultPlan = ResourcePlan{
	GPIOMin: 0,
	GPIOMax: 28,
	I2C: []I2CPlan{
		{ID: "i2c0", SDA: 4, SCL: 5, Hz: 100_000},
	},
	SPI: []SPIPlan{
		{ID: "spi1", SCK: 10, SDO: 11, SDI: -1, Hz: 10_000_000},
	},
	UART: []UARTPlan{
		{ID: "uart0", TX: 0, RX: 1, Baud: 9_600},
	},
}

var DefaultSetup = KitSetup{
	Buttons: [3]ButtonParams{
		{Name: "a", Pin: 13, ActiveLow: true, DebounceMs: 20},
		{Name: "b", Pin: 14, ActiveLow: true, DebounceMs: 20},
		{Name: "c", Pin: 15, ActiveLow: true, DebounceMs: 20},
	},
	LEDs:    LEDParams{Pin: 16, Count: 10},
	Screen:  ScreenParams{Bus: "spi1", DC: 8, CS: 9, RST: 12, Backlight: 7},
	PortA:   PortAParams{Bus: "i2c0", EnvSensor: "sht3x", EnvAddr: 0x44},
	PortB:   PortBParams{IO: 22, ADC: 26},
	PortC:   PortCParams{Bus: "uart0"},
	Speaker: SpeakerParams{Pin: 18, Duty: 1},
	Radio:   RadioParams{Name: "DevKit"},
}
