//go:build !(rp2040 || rp2350)

package provider

import (
	"context"
	"image/color"
	"sync"

	"devkit-go/errcode"
	"devkit-go/internal/core"
	"devkit-go/setups"

	"tinygo.org/x/drivers"
)

var _ core.ResourceRegistry = (*HostRegistry)(nil)

func newRegistry(plan setups.ResourcePlan) core.ResourceRegistry {
	return NewHostRegistry(plan)
}

// ----------------------------- GPIO ------------------------------------------

// FakePin implements core.IRQPin for host-side tests.
type FakePin struct {
	mu      sync.RWMutex
	number  int
	level   bool
	modeOut bool
	pull    core.Pull
	irqEdge core.Edge
	irqFunc func()
}

func (p *FakePin) ConfigureInput(pull core.Pull) error {
	p.mu.Lock()
	p.modeOut = false
	p.pull = pull
	// An undriven input with a pull settles at the pull level.
	p.level = pull == core.PullUp
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	p.modeOut = true
	p.level = initial
	p.mu.Unlock()
	return nil
}

// Set drives the level and fires the IRQ handler when the edge matches.
func (p *FakePin) Set(level bool) {
	p.mu.Lock()
	edge := edgeFrom(p.level, level)
	p.level = level
	irq := p.irqFunc
	want := irqWanted(p.irqEdge, edge)
	p.mu.Unlock()
	if want && irq != nil {
		irq()
	}
}

func (p *FakePin) Get() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.level
}

func (p *FakePin) Toggle()     { p.Set(!p.Get()) }
func (p *FakePin) Number() int { return p.number }

// IsOutput reports the last configured direction.
func (p *FakePin) IsOutput() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.modeOut
}

func (p *FakePin) SetIRQ(edge core.Edge, handler func()) error {
	p.mu.Lock()
	p.irqEdge = edge
	p.irqFunc = handler
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ClearIRQ() error {
	p.mu.Lock()
	p.irqEdge = core.EdgeNone
	p.irqFunc = nil
	p.mu.Unlock()
	return nil
}

func edgeFrom(old, new bool) core.Edge {
	switch {
	case !old && new:
		return core.EdgeRising
	case old && !new:
		return core.EdgeFalling
	default:
		return core.EdgeNone
	}
}

func irqWanted(cfg, seen core.Edge) bool {
	if cfg == core.EdgeBoth {
		return seen == core.EdgeRising || seen == core.EdgeFalling
	}
	return cfg != core.EdgeNone && cfg == seen
}

// ----------------------------- PWM -------------------------------------------

// Tone is one Configure call seen by FakePWM.
type Tone struct {
	FreqHz uint64
	Top    uint16
}

// FakePWM records configuration and level history.
type FakePWM struct {
	mu      sync.Mutex
	Tones   []Tone
	Levels  []uint16
	level   uint16
	enabled bool
}

func (p *FakePWM) Configure(freqHz uint64, top uint16) error {
	if freqHz == 0 {
		return errcode.InvalidParams
	}
	p.mu.Lock()
	p.Tones = append(p.Tones, Tone{FreqHz: freqHz, Top: top})
	p.mu.Unlock()
	return nil
}

func (p *FakePWM) Set(level uint16) {
	p.mu.Lock()
	p.level = level
	p.Levels = append(p.Levels, level)
	p.mu.Unlock()
}

func (p *FakePWM) Enable(on bool) {
	p.mu.Lock()
	p.enabled = on
	p.mu.Unlock()
}

func (p *FakePWM) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// Snapshot returns copies of the recorded history.
func (p *FakePWM) Snapshot() ([]Tone, []uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Tone(nil), p.Tones...), append([]uint16(nil), p.Levels...)
}

// ----------------------------- ADC -------------------------------------------

// FakeADC returns the last value given to SetValue.
type FakeADC struct {
	mu  sync.Mutex
	v   uint16
	Err error
}

func (a *FakeADC) SetValue(v uint16) {
	a.mu.Lock()
	a.v = v
	a.mu.Unlock()
}

func (a *FakeADC) Read() (uint16, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Err != nil {
		return 0, a.Err
	}
	return a.v, nil
}

// ----------------------------- LEDs ------------------------------------------

// FakeLEDs captures every frame written to the strip.
type FakeLEDs struct {
	mu     sync.Mutex
	Frames [][]color.RGBA
	Err    error
}

func (l *FakeLEDs) WriteColors(buf []color.RGBA) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return l.Err
	}
	l.Frames = append(l.Frames, append([]color.RGBA(nil), buf...))
	return nil
}

// Last returns the most recent frame, or nil.
func (l *FakeLEDs) Last() []color.RGBA {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.Frames) == 0 {
		return nil
	}
	return l.Frames[len(l.Frames)-1]
}

// ----------------------------- I2C -------------------------------------------

// HostI2C implements drivers.I2C. Respond, when set, fills read buffers.
type HostI2C struct {
	mu      sync.Mutex
	Respond func(addr uint16, w, r []byte) error
	LastTx  struct {
		Addr uint16
		W    []byte
		Rn   int
	}
}

var _ drivers.I2C = (*HostI2C)(nil)

func (h *HostI2C) Tx(addr uint16, w, r []byte) error {
	h.mu.Lock()
	h.LastTx.Addr = addr
	h.LastTx.W = append([]byte(nil), w...)
	h.LastTx.Rn = len(r)
	fn := h.Respond
	h.mu.Unlock()
	if fn != nil {
		return fn(addr, w, r)
	}
	return nil
}

// ----------------------------- Serial ----------------------------------------

// LoopSerial echoes writes back to its receive side.
type LoopSerial struct {
	mu   sync.Mutex
	Baud uint32
	rx   chan byte
}

func NewLoopSerial(baud uint32) *LoopSerial {
	return &LoopSerial{Baud: baud, rx: make(chan byte, 256)}
}

func (s *LoopSerial) Write(p []byte) (int, error) {
	for i, b := range p {
		select {
		case s.rx <- b:
		default:
			return i, errcode.Busy
		}
	}
	return len(p), nil
}

// RecvSomeContext blocks for the first byte, then drains what is buffered.
func (s *LoopSerial) RecvSomeContext(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	select {
	case b := <-s.rx:
		p[0] = b
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	n := 1
	for n < len(p) {
		select {
		case b := <-s.rx:
			p[n] = b
			n++
		default:
			return n, nil
		}
	}
	return n, nil
}

func (s *LoopSerial) SetBaudRate(br uint32) error {
	if br == 0 {
		return errcode.InvalidParams
	}
	s.mu.Lock()
	s.Baud = br
	s.mu.Unlock()
	return nil
}

// ----------------------------- Display ---------------------------------------

// FakeDisplay is a framebuffer with the controller's landscape geometry.
type FakeDisplay struct {
	mu       sync.Mutex
	w, h     int16
	pix      []color.RGBA
	Flushes  int
	Inverted bool
}

func NewFakeDisplay(w, h int16) *FakeDisplay {
	return &FakeDisplay{w: w, h: h, pix: make([]color.RGBA, int(w)*int(h)), Inverted: true}
}

func (d *FakeDisplay) Size() (int16, int16) { return d.w, d.h }

func (d *FakeDisplay) SetPixel(x, y int16, c color.RGBA) {
	if x < 0 || y < 0 || x >= d.w || y >= d.h {
		return
	}
	d.mu.Lock()
	d.pix[int(y)*int(d.w)+int(x)] = c
	d.mu.Unlock()
}

func (d *FakeDisplay) Display() error {
	d.mu.Lock()
	d.Flushes++
	d.mu.Unlock()
	return nil
}

func (d *FakeDisplay) FillScreen(c color.RGBA) {
	d.mu.Lock()
	for i := range d.pix {
		d.pix[i] = c
	}
	d.mu.Unlock()
}

func (d *FakeDisplay) At(x, y int16) color.RGBA {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pix[int(y)*int(d.w)+int(x)]
}

// Count returns how many pixels hold c.
func (d *FakeDisplay) Count(c color.RGBA) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, p := range d.pix {
		if p == c {
			n++
		}
	}
	return n
}

// ----------------------------- Registry --------------------------------------

type hostPinHandle struct {
	n   int
	fn  core.PinFunc
	reg *HostRegistry
}

func (h *hostPinHandle) Pin() int { return h.n }

func (h *hostPinHandle) AsGPIO() core.IRQPin {
	if h.fn != core.FuncGPIOIn && h.fn != core.FuncGPIOOut {
		panic("pin not claimed for GPIO")
	}
	return h.reg.Pin(h.n)
}

func (h *hostPinHandle) AsPWM() core.PWMHandle {
	if h.fn != core.FuncPWM {
		panic("pin not claimed for PWM")
	}
	return h.reg.PWM(h.n)
}

func (h *hostPinHandle) AsADC() core.ADCHandle {
	if h.fn != core.FuncADC {
		panic("pin not claimed for ADC")
	}
	return h.reg.ADC(h.n)
}

func (h *hostPinHandle) AsLED() core.LEDWriter {
	if h.fn != core.FuncLED {
		panic("pin not claimed for LED")
	}
	return h.reg.LEDs(h.n)
}

type owner struct {
	devID string
	fn    core.PinFunc
}

// HostRegistry is the in-memory registry. Accessors return stable fakes so
// tests can drive inputs and inspect outputs.
type HostRegistry struct {
	mu   sync.Mutex
	plan setups.ResourcePlan

	pinOwners map[int]owner
	busOwners map[core.ResourceID]string

	pins  map[int]*FakePin
	pwms  map[int]*FakePWM
	adcs  map[int]*FakeADC
	leds  map[int]*FakeLEDs
	i2c   map[core.ResourceID]*HostI2C
	uart  map[core.ResourceID]*LoopSerial
	disp  map[core.ResourceID]*FakeDisplay
	spiOK map[core.ResourceID]bool

	closed bool
}

func NewHostRegistry(plan setups.ResourcePlan) *HostRegistry {
	r := &HostRegistry{
		plan:      plan,
		pinOwners: make(map[int]owner),
		busOwners: make(map[core.ResourceID]string),
		pins:      make(map[int]*FakePin),
		pwms:      make(map[int]*FakePWM),
		adcs:      make(map[int]*FakeADC),
		leds:      make(map[int]*FakeLEDs),
		i2c:       make(map[core.ResourceID]*HostI2C),
		uart:      make(map[core.ResourceID]*LoopSerial),
		disp:      make(map[core.ResourceID]*FakeDisplay),
		spiOK:     make(map[core.ResourceID]bool),
	}
	for _, p := range plan.I2C {
		r.i2c[core.ResourceID(p.ID)] = &HostI2C{}
	}
	for _, p := range plan.UART {
		r.uart[core.ResourceID(p.ID)] = NewLoopSerial(p.Baud)
	}
	for _, p := range plan.SPI {
		r.spiOK[core.ResourceID(p.ID)] = true
	}
	return r
}

// Pin returns the fake behind GPIO n, creating it on first use.
func (r *HostRegistry) Pin(n int) *FakePin {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pins[n]
	if !ok {
		p = &FakePin{number: n}
		r.pins[n] = p
	}
	return p
}

func (r *HostRegistry) PWM(n int) *FakePWM {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pwms[n]
	if !ok {
		p = &FakePWM{}
		r.pwms[n] = p
	}
	return p
}

func (r *HostRegistry) ADC(n int) *FakeADC {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.adcs[n]
	if !ok {
		a = &FakeADC{}
		r.adcs[n] = a
	}
	return a
}

func (r *HostRegistry) LEDs(n int) *FakeLEDs {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leds[n]
	if !ok {
		l = &FakeLEDs{}
		r.leds[n] = l
	}
	return l
}

func (r *HostRegistry) I2C(id core.ResourceID) *HostI2C {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.i2c[id]
}

func (r *HostRegistry) Serial(id core.ResourceID) *LoopSerial {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.uart[id]
}

// Display returns the display created by ClaimDisplay on bus, or nil.
func (r *HostRegistry) Display(bus core.ResourceID) *FakeDisplay {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disp[bus]
}

// PinOwner reports which device holds pin n.
func (r *HostRegistry) PinOwner(n int) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.pinOwners[n]
	return o.devID, ok
}

func (r *HostRegistry) inRange(n int) bool {
	return n >= r.plan.GPIOMin && n <= r.plan.GPIOMax
}

// caller holds lock
func (r *HostRegistry) claimPinLocked(devID string, n int, fn core.PinFunc) error {
	if r.closed {
		return errcode.NotReady
	}
	if !r.inRange(n) {
		return errcode.UnknownPin
	}
	if _, inUse := r.pinOwners[n]; inUse {
		return errcode.PinInUse
	}
	r.pinOwners[n] = owner{devID: devID, fn: fn}
	return nil
}

func (r *HostRegistry) ClaimPin(devID string, n int, fn core.PinFunc) (core.PinHandle, error) {
	r.mu.Lock()
	err := r.claimPinLocked(devID, n, fn)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &hostPinHandle{n: n, fn: fn, reg: r}, nil
}

func (r *HostRegistry) ReleasePin(devID string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.pinOwners[n]; ok && o.devID == devID {
		if p := r.pins[n]; p != nil {
			_ = p.ClearIRQ()
		}
		if p := r.pwms[n]; p != nil {
			p.Enable(false)
		}
		delete(r.pinOwners, n)
	}
}

// caller holds lock
func (r *HostRegistry) claimBusLocked(devID string, id core.ResourceID) error {
	if r.closed {
		return errcode.NotReady
	}
	if o, taken := r.busOwners[id]; taken && o != devID {
		return errcode.BusInUse
	}
	r.busOwners[id] = devID
	return nil
}

func (r *HostRegistry) ClaimI2C(devID string, id core.ResourceID) (drivers.I2C, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.i2c[id]
	if b == nil {
		return nil, errcode.UnknownBus
	}
	if err := r.claimBusLocked(devID, id); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *HostRegistry) ClaimSerial(devID string, id core.ResourceID) (core.SerialPort, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.uart[id]
	if s == nil {
		return nil, errcode.UnknownBus
	}
	if err := r.claimBusLocked(devID, id); err != nil {
		return nil, err
	}
	return s, nil
}

// ClaimDisplay claims the SPI bus and the three control pins together; a
// failure leaves nothing claimed.
func (r *HostRegistry) ClaimDisplay(devID string, bus core.ResourceID, pins core.DisplayPins) (core.Display, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.spiOK[bus] {
		return nil, errcode.UnknownBus
	}
	if err := r.claimBusLocked(devID, bus); err != nil {
		return nil, err
	}
	claimed := make([]int, 0, 3)
	for _, n := range []int{pins.DC, pins.CS, pins.RST} {
		if err := r.claimPinLocked(devID, n, core.FuncGPIOOut); err != nil {
			for _, c := range claimed {
				delete(r.pinOwners, c)
			}
			delete(r.busOwners, bus)
			return nil, err
		}
		claimed = append(claimed, n)
	}
	d := r.disp[bus]
	if d == nil {
		d = NewFakeDisplay(320, 240)
		r.disp[bus] = d
	}
	return d, nil
}

func (r *HostRegistry) ReleaseBus(devID string, id core.ResourceID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.busOwners[id]; ok && o == devID {
		delete(r.busOwners, id)
	}
}

// Close drops every claim; later claims fail with not_ready.
func (r *HostRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.pinOwners = make(map[int]owner)
	r.busOwners = make(map[core.ResourceID]string)
}
