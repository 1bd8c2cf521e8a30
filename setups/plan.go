package setups

// ResourcePlan specifies wiring and operating parameters of the buses.
// Providers consume this plan to instantiate resource owners.
type ResourcePlan struct {
	GPIOMin, GPIOMax int

	I2C  []I2CPlan
	SPI  []SPIPlan
	UART []UARTPlan
}

type I2CPlan struct {
	ID  string // e.g. "i2c0"
	SDA int    // GPIO number
	SCL int    // GPIO number
	Hz  uint32 // bus frequency
}

type SPIPlan struct {
	ID  string // e.g. "spi1"
	SCK int
	SDO int
	SDI int // -1 when the bus is write-only
	Hz  uint32
}

type UARTPlan struct {
	ID   string // e.g. "uart0"
	TX   int    // GPIO number
	RX   int    // GPIO number
	Baud uint32 // initial baud
}
