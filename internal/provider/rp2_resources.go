//go:build rp2040 || rp2350

package provider

import (
	"context"
	"machine"
	"sync"
	"time"

	"devkit-go/errcode"
	"devkit-go/internal/core"
	"devkit-go/setups"
	"devkit-go/x/mathx"
	"devkit-go/x/timex"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/ili9341"
	"tinygo.org/x/drivers/ws2812"
)

var _ core.ResourceRegistry = (*rp2Registry)(nil)

func newRegistry(plan setups.ResourcePlan) core.ResourceRegistry {
	return newRP2Registry(plan)
}

// -----------------------------------------------------------------------------
// GPIO handle
// -----------------------------------------------------------------------------

type rp2GPIO struct {
	p machine.Pin
	n int
}

func (r *rp2GPIO) Number() int { return r.n }

func (r *rp2GPIO) ConfigureInput(pull core.Pull) error {
	mode := machine.PinInput
	switch pull {
	case core.PullUp:
		mode = machine.PinInputPullup
	case core.PullDown:
		mode = machine.PinInputPulldown
	}
	r.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (r *rp2GPIO) ConfigureOutput(initial bool) error {
	r.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	r.p.Set(initial)
	return nil
}

func (r *rp2GPIO) Set(b bool) { r.p.Set(b) }
func (r *rp2GPIO) Get() bool  { return r.p.Get() }
func (r *rp2GPIO) Toggle()    { r.p.Set(!r.p.Get()) }

func (r *rp2GPIO) SetIRQ(edge core.Edge, handler func()) error {
	var ch machine.PinChange
	switch edge {
	case core.EdgeRising:
		ch = machine.PinRising
	case core.EdgeFalling:
		ch = machine.PinFalling
	case core.EdgeBoth:
		ch = machine.PinToggle
	default:
		return errcode.InvalidParams
	}
	return r.p.SetInterrupt(ch, func(machine.Pin) { handler() })
}

func (r *rp2GPIO) ClearIRQ() error {
	return r.p.SetInterrupt(0, nil)
}

// -----------------------------------------------------------------------------
// PWM
// -----------------------------------------------------------------------------

// Local interface to avoid depending on an unexported concrete type in machine.
type pwmCtrl interface {
	Configure(cfg machine.PWMConfig) error
	SetPeriod(period uint64) error
	Top() uint32
	Set(channel uint8, value uint32)
}

func pwmGroupBySlice(slice uint8) pwmCtrl {
	switch slice {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}

type sliceCfg struct {
	freqHz uint64
	users  int
}

// Slices are shared by two channels; both must agree on the frequency
// unless the caller is the only user.
var globalPWM struct {
	mu    sync.Mutex
	slice map[int]*sliceCfg
}

func init() {
	globalPWM.slice = make(map[int]*sliceCfg)
}

type rp2PWM struct {
	mu sync.Mutex

	pin   int
	ctrl  pwmCtrl
	chIdx uint8 // 0 => A, 1 => B
	slice int

	reqTop uint16 // logical resolution
	hwTop  uint32 // controller.Top() after Configure
	level  uint16

	registered bool
}

// caller holds lock
func (p *rp2PWM) setHW(logical uint16) {
	if p.hwTop == 0 || p.reqTop == 0 {
		return
	}
	logical = mathx.Min(logical, p.reqTop)
	p.ctrl.Set(p.chIdx, uint32(logical)*p.hwTop/uint32(p.reqTop))
}

// Configure sets the slice period. The speaker calls it once per note.
func (p *rp2PWM) Configure(freqHz uint64, top uint16) error {
	if freqHz == 0 {
		return errcode.InvalidParams
	}
	top = mathx.Max(top, 1)

	globalPWM.mu.Lock()
	defer globalPWM.mu.Unlock()

	sc := globalPWM.slice[p.slice]
	if sc == nil {
		sc = &sliceCfg{}
		globalPWM.slice[p.slice] = sc
	}

	period := timex.PeriodFromHz(freqHz)
	switch {
	case sc.users == 0:
		if err := p.ctrl.Configure(machine.PWMConfig{Period: period}); err != nil {
			return err
		}
		sc.users = 1
		p.registered = true
	case !p.registered:
		if sc.freqHz != freqHz {
			return errcode.Busy
		}
		sc.users++
		p.registered = true
	case sc.freqHz != freqHz:
		if sc.users != 1 {
			return errcode.Busy
		}
		if err := p.ctrl.SetPeriod(period); err != nil {
			return err
		}
	}
	sc.freqHz = freqHz

	machine.Pin(p.pin).Configure(machine.PinConfig{Mode: machine.PinPWM})

	p.mu.Lock()
	p.reqTop = top
	p.hwTop = p.ctrl.Top()
	p.mu.Unlock()
	return nil
}

func (p *rp2PWM) Set(level uint16) {
	p.mu.Lock()
	p.level = level
	p.setHW(level)
	p.mu.Unlock()
}

// Enable models on/off as driving the current level versus driving 0.
func (p *rp2PWM) Enable(on bool) {
	p.mu.Lock()
	if on {
		p.setHW(p.level)
	} else {
		p.setHW(0)
	}
	p.mu.Unlock()
}

// caller holds no locks
func (p *rp2PWM) release() {
	p.mu.Lock()
	if p.hwTop != 0 {
		p.ctrl.Set(p.chIdx, 0)
	}
	p.mu.Unlock()

	globalPWM.mu.Lock()
	if sc := globalPWM.slice[p.slice]; sc != nil && p.registered && sc.users > 0 {
		sc.users--
		if sc.users == 0 {
			sc.freqHz = 0
		}
	}
	p.registered = false
	globalPWM.mu.Unlock()
}

// -----------------------------------------------------------------------------
// ADC
// -----------------------------------------------------------------------------

var adcOnce sync.Once

type rp2ADC struct{ a machine.ADC }

// Read scales the 16-bit machine reading down to the 12-bit converter range.
func (a *rp2ADC) Read() (uint16, error) {
	return a.a.Get() >> 4, nil
}

// -----------------------------------------------------------------------------
// PinHandle
// -----------------------------------------------------------------------------

type rp2PinHandle struct {
	n    int
	fn   core.PinFunc
	gpio *rp2GPIO
	pwm  *rp2PWM
	adc  *rp2ADC
	led  ws2812.Device
}

func (h *rp2PinHandle) Pin() int { return h.n }

func (h *rp2PinHandle) AsGPIO() core.IRQPin {
	if h.fn != core.FuncGPIOIn && h.fn != core.FuncGPIOOut {
		panic("pin not claimed for GPIO")
	}
	return h.gpio
}

func (h *rp2PinHandle) AsPWM() core.PWMHandle {
	if h.fn != core.FuncPWM {
		panic("pin not claimed for PWM")
	}
	return h.pwm
}

func (h *rp2PinHandle) AsADC() core.ADCHandle {
	if h.fn != core.FuncADC {
		panic("pin not claimed for ADC")
	}
	return h.adc
}

func (h *rp2PinHandle) AsLED() core.LEDWriter {
	if h.fn != core.FuncLED {
		panic("pin not claimed for LED")
	}
	return h.led
}

// -----------------------------------------------------------------------------
// I2C owner (one worker per bus)
// -----------------------------------------------------------------------------

type i2cReq struct {
	addr uint16
	w, r []byte
	done chan error // buffered(1)
}

type i2cOwner struct {
	hw   *machine.I2C
	reqs chan i2cReq
	quit chan struct{}
}

func newI2COwner(hw *machine.I2C) *i2cOwner {
	o := &i2cOwner{hw: hw, reqs: make(chan i2cReq, 16), quit: make(chan struct{})}
	go o.loop()
	return o
}

func (o *i2cOwner) loop() {
	for {
		select {
		case req := <-o.reqs:
			err := o.hw.Tx(req.addr, req.w, req.r)
			select {
			case req.done <- err:
			default:
			}
		case <-o.quit:
			return
		}
	}
}

func (o *i2cOwner) stop() { close(o.quit) }

// driversI2C adapts the owner to drivers.I2C with a per-call deadline.
type driversI2C struct {
	o       *i2cOwner
	timeout time.Duration
}

var _ drivers.I2C = (*driversI2C)(nil)

func (d *driversI2C) Tx(addr uint16, w, r []byte) error {
	req := i2cReq{addr: addr, w: w, r: r, done: make(chan error, 1)}
	t := time.NewTimer(d.timeout)
	defer t.Stop()
	select {
	case d.o.reqs <- req:
	case <-t.C:
		return errcode.Busy
	}
	select {
	case err := <-req.done:
		return err
	case <-t.C:
		return errcode.Timeout
	}
}

// -----------------------------------------------------------------------------
// Serial
// -----------------------------------------------------------------------------

type rp2SerialPort struct{ u *uartx.UART }

func (p *rp2SerialPort) Write(b []byte) (int, error) { return p.u.Write(b) }
func (p *rp2SerialPort) RecvSomeContext(ctx context.Context, buf []byte) (int, error) {
	return p.u.RecvSomeContext(ctx, buf)
}
func (p *rp2SerialPort) SetBaudRate(br uint32) error {
	if br == 0 {
		return errcode.InvalidParams
	}
	p.u.SetBaudRate(br)
	return nil
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

type pinOwner struct {
	devID string
	fn    core.PinFunc
}

type rp2Registry struct {
	mu   sync.Mutex
	plan setups.ResourcePlan

	pinOwners map[int]pinOwner
	gpioMap   map[int]*rp2GPIO
	pwmMap    map[int]*rp2PWM
	busOwners map[core.ResourceID]string

	i2cOwners map[core.ResourceID]*i2cOwner
	uartPorts map[core.ResourceID]*rp2SerialPort
	spiBuses  map[core.ResourceID]*machine.SPI
	displays  map[core.ResourceID]*ili9341.Device
}

func newRP2Registry(plan setups.ResourcePlan) *rp2Registry {
	r := &rp2Registry{
		plan:      plan,
		pinOwners: make(map[int]pinOwner),
		gpioMap:   make(map[int]*rp2GPIO),
		pwmMap:    make(map[int]*rp2PWM),
		busOwners: make(map[core.ResourceID]string),
		i2cOwners: make(map[core.ResourceID]*i2cOwner),
		uartPorts: make(map[core.ResourceID]*rp2SerialPort),
		spiBuses:  make(map[core.ResourceID]*machine.SPI),
		displays:  make(map[core.ResourceID]*ili9341.Device),
	}

	for _, p := range plan.I2C {
		var hw *machine.I2C
		switch p.ID {
		case "i2c0":
			hw = machine.I2C0
		case "i2c1":
			hw = machine.I2C1
		default:
			continue
		}
		sda, scl := machine.Pin(p.SDA), machine.Pin(p.SCL)
		sda.Configure(machine.PinConfig{Mode: machine.PinI2C})
		scl.Configure(machine.PinConfig{Mode: machine.PinI2C})
		if err := hw.Configure(machine.I2CConfig{SCL: scl, SDA: sda, Frequency: p.Hz}); err != nil {
			println("[provider] i2c configure failed", p.ID, err.Error())
			continue
		}
		r.i2cOwners[core.ResourceID(p.ID)] = newI2COwner(hw)
	}

	for _, s := range plan.SPI {
		var hw *machine.SPI
		switch s.ID {
		case "spi0":
			hw = machine.SPI0
		case "spi1":
			hw = machine.SPI1
		default:
			continue
		}
		sdi := machine.NoPin
		if s.SDI >= 0 {
			sdi = machine.Pin(s.SDI)
		}
		if err := hw.Configure(machine.SPIConfig{
			Frequency: s.Hz,
			SCK:       machine.Pin(s.SCK),
			SDO:       machine.Pin(s.SDO),
			SDI:       sdi,
		}); err != nil {
			println("[provider] spi configure failed", s.ID, err.Error())
			continue
		}
		r.spiBuses[core.ResourceID(s.ID)] = hw
	}

	for _, u := range plan.UART {
		var hw *uartx.UART
		switch u.ID {
		case "uart0":
			hw = uartx.UART0
		case "uart1":
			hw = uartx.UART1
		default:
			continue
		}
		if err := hw.Configure(uartx.UARTConfig{
			BaudRate: u.Baud,
			TX:       machine.Pin(u.TX),
			RX:       machine.Pin(u.RX),
		}); err != nil {
			println("[provider] uart configure failed", u.ID, err.Error())
			continue
		}
		r.uartPorts[core.ResourceID(u.ID)] = &rp2SerialPort{u: hw}
	}
	return r
}

func (r *rp2Registry) inBoardRange(n int) bool {
	return n >= r.plan.GPIOMin && n <= r.plan.GPIOMax
}

// caller holds lock
func (r *rp2Registry) lookupGPIO(n int) *rp2GPIO {
	if g, ok := r.gpioMap[n]; ok {
		return g
	}
	h := &rp2GPIO{p: machine.Pin(n), n: n}
	r.gpioMap[n] = h
	return h
}

// caller holds lock
func (r *rp2Registry) claimBusLocked(devID string, id core.ResourceID) error {
	if o, taken := r.busOwners[id]; taken && o != devID {
		return errcode.BusInUse
	}
	r.busOwners[id] = devID
	return nil
}

func (r *rp2Registry) ClaimPin(devID string, n int, fn core.PinFunc) (core.PinHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.inBoardRange(n) {
		return nil, errcode.UnknownPin
	}
	if _, inUse := r.pinOwners[n]; inUse {
		return nil, errcode.PinInUse
	}

	ph := &rp2PinHandle{n: n, fn: fn}
	switch fn {
	case core.FuncGPIOIn, core.FuncGPIOOut:
		ph.gpio = r.lookupGPIO(n)

	case core.FuncPWM:
		sliceNum, err := machine.PWMPeripheral(machine.Pin(n))
		if err != nil {
			return nil, errcode.Unsupported
		}
		ph.pwm = &rp2PWM{
			pin:   n,
			ctrl:  pwmGroupBySlice(sliceNum),
			chIdx: uint8(n & 1), // even pin => A, odd => B
			slice: int(sliceNum),
		}
		r.pwmMap[n] = ph.pwm

	case core.FuncADC:
		if n < 26 || n > 29 {
			return nil, errcode.Unsupported
		}
		adcOnce.Do(machine.InitADC)
		a := machine.ADC{Pin: machine.Pin(n)}
		a.Configure(machine.ADCConfig{})
		ph.adc = &rp2ADC{a: a}

	case core.FuncLED:
		p := machine.Pin(n)
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
		ph.led = ws2812.NewWS2812(p)

	default:
		return nil, errcode.Unsupported
	}

	r.pinOwners[n] = pinOwner{devID: devID, fn: fn}
	return ph, nil
}

func (r *rp2Registry) ReleasePin(devID string, n int) {
	r.mu.Lock()
	o, ok := r.pinOwners[n]
	if !ok || o.devID != devID {
		r.mu.Unlock()
		return
	}
	pwm := r.pwmMap[n]
	delete(r.pwmMap, n)
	delete(r.pinOwners, n)
	r.mu.Unlock()

	if pwm != nil {
		pwm.release()
	}
	if o.fn == core.FuncGPIOIn {
		_ = machine.Pin(n).SetInterrupt(0, nil)
	}
	machine.Pin(n).Configure(machine.PinConfig{Mode: machine.PinInput})
}

func (r *rp2Registry) ClaimI2C(devID string, id core.ResourceID) (drivers.I2C, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.i2cOwners[id]
	if o == nil {
		return nil, errcode.UnknownBus
	}
	if err := r.claimBusLocked(devID, id); err != nil {
		return nil, err
	}
	return &driversI2C{o: o, timeout: 250 * time.Millisecond}, nil
}

func (r *rp2Registry) ClaimSerial(devID string, id core.ResourceID) (core.SerialPort, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.uartPorts[id]
	if p == nil {
		return nil, errcode.UnknownBus
	}
	if err := r.claimBusLocked(devID, id); err != nil {
		return nil, err
	}
	return p, nil
}

// ClaimDisplay brings up the ILI9341 in landscape with inversion on.
func (r *rp2Registry) ClaimDisplay(devID string, bus core.ResourceID, pins core.DisplayPins) (core.Display, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	spi := r.spiBuses[bus]
	if spi == nil {
		return nil, errcode.UnknownBus
	}
	for _, n := range []int{pins.DC, pins.CS, pins.RST} {
		if !r.inBoardRange(n) {
			return nil, errcode.UnknownPin
		}
		if _, inUse := r.pinOwners[n]; inUse {
			return nil, errcode.PinInUse
		}
	}
	if err := r.claimBusLocked(devID, bus); err != nil {
		return nil, err
	}
	for _, n := range []int{pins.DC, pins.CS, pins.RST} {
		r.pinOwners[n] = pinOwner{devID: devID, fn: core.FuncGPIOOut}
	}

	d := r.displays[bus]
	if d == nil {
		d = ili9341.NewSPI(spi, machine.Pin(pins.DC), machine.Pin(pins.CS), machine.Pin(pins.RST))
		d.Configure(ili9341.Config{
			Rotation:         drivers.Rotation90,
			DisplayInversion: true,
		})
		r.displays[bus] = d
	}
	return d, nil
}

func (r *rp2Registry) ReleaseBus(devID string, id core.ResourceID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.busOwners[id]; ok && o == devID {
		delete(r.busOwners, id)
	}
}

// Close stops background workers (per-bus I2C goroutines).
func (r *rp2Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, o := range r.i2cOwners {
		o.stop()
		delete(r.i2cOwners, id)
	}
}
