package gatts

import (
	"context"
	"sync"

	"devkit-go/errcode"
)

// Operation names recorded by Sim.
const (
	OpEnable        = "enable"
	OpRegisterApp   = "register_app"
	OpCreateService = "create_service"
	OpStartService  = "start_service"
	OpAddChar       = "add_char"
	OpAddDescr      = "add_descr"
	OpAttrValue     = "attr_value"
	OpSendResponse  = "send_response"
	OpConfigAdv     = "config_adv"
	OpStartAdv      = "start_adv"
)

// Handle numbering used by Sim.
const (
	SimIface       Interface     = 3
	SimFirstHandle ServiceHandle = 40
)

// Call is one recorded Stack call with the arguments that matter for it.
type Call struct {
	Op      string
	Name    string
	AppID   uint16
	Iface   Interface
	Service ServiceHandle
	Attr    AttrHandle
	Conn    ConnID
	Trans   TransID
	Status  Status
	Svc     Service
	Char    Characteristic
	Descr   Descriptor
	Adv     AdvertiseData
	Rsp     Response
}

type delivery struct {
	iface Interface
	ev    Event
	done  chan struct{}
}

type simService struct {
	cap  uint16
	next AttrHandle
}

type simResponse struct {
	st    Status
	value []byte
}

// Sim is an in-process Stack. Callbacks are delivered one at a time from
// its own goroutine, after the initiating call has returned.
type Sim struct {
	mu      sync.Mutex
	handler EventHandler
	calls   []Call

	fail   map[string]error
	status map[string]Status
	silent map[string]bool

	enabled     bool
	registered  bool
	advertising bool
	next        ServiceHandle
	services    map[ServiceHandle]*simService
	attrs       map[AttrHandle][]byte
	responses   map[TransID]simResponse
	trans       TransID

	events chan delivery
	quit   chan struct{}
	once   sync.Once
}

func NewSim() *Sim {
	s := &Sim{
		fail:      map[string]error{},
		status:    map[string]Status{},
		silent:    map[string]bool{},
		next:      SimFirstHandle,
		services:  map[ServiceHandle]*simService{},
		attrs:     map[AttrHandle][]byte{},
		responses: map[TransID]simResponse{},
		events:    make(chan delivery, 32),
		quit:      make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *Sim) loop() {
	for {
		select {
		case d := <-s.events:
			s.mu.Lock()
			h := s.handler
			s.mu.Unlock()
			if h != nil {
				h(d.iface, d.ev)
			}
			close(d.done)
		case <-s.quit:
			return
		}
	}
}

// Close stops the callback goroutine.
func (s *Sim) Close() { s.once.Do(func() { close(s.quit) }) }

// Fail makes the next and later calls of op return err.
func (s *Sim) Fail(op string, err error) {
	s.mu.Lock()
	s.fail[op] = err
	s.mu.Unlock()
}

// FailStatus makes the callback of op carry st.
func (s *Sim) FailStatus(op string, st Status) {
	s.mu.Lock()
	s.status[op] = st
	s.mu.Unlock()
}

// Silence drops the callback of op: the call succeeds and nothing follows.
func (s *Sim) Silence(op string) {
	s.mu.Lock()
	s.silent[op] = true
	s.mu.Unlock()
}

// Calls returns a copy of the call log.
func (s *Sim) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Find returns the first recorded call of op.
func (s *Sim) Find(op string) (Call, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.calls {
		if c.Op == op {
			return c, true
		}
	}
	return Call{}, false
}

func (s *Sim) Advertising() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advertising
}

// caller holds lock; records c and returns the callback status, whether a
// callback follows and the injected error.
func (s *Sim) begin(c Call) (Status, bool, error) {
	s.calls = append(s.calls, c)
	if err := s.fail[c.Op]; err != nil {
		return 0, false, err
	}
	return s.status[c.Op], !s.silent[c.Op], nil
}

func (s *Sim) post(iface Interface, ev Event) <-chan struct{} {
	d := delivery{iface: iface, ev: ev, done: make(chan struct{})}
	select {
	case s.events <- d:
	case <-s.quit:
		close(d.done)
	}
	return d.done
}

// ---- Stack ----

func (s *Sim) Enable(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _, err := s.begin(Call{Op: OpEnable, Name: name})
	if err != nil {
		return err
	}
	s.enabled = true
	return nil
}

func (s *Sim) SetEventHandler(h EventHandler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

func (s *Sim) RegisterApp(appID uint16) error {
	s.mu.Lock()
	st, notify, err := s.begin(Call{Op: OpRegisterApp, AppID: appID})
	if err == nil && !s.enabled {
		err = errcode.NotReady
	}
	if err == nil && st == StatusOK {
		s.registered = true
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if notify {
		ev := RegisterEvent{Status: st, AppID: appID}
		if st == StatusOK {
			ev.Iface = SimIface
		}
		s.post(ev.Iface, ev)
	}
	return nil
}

func (s *Sim) CreateService(iface Interface, svc Service) error {
	s.mu.Lock()
	st, notify, err := s.begin(Call{Op: OpCreateService, Iface: iface, Svc: svc})
	if err == nil && (!s.registered || iface != SimIface) {
		err = errcode.InvalidParams
	}
	var h ServiceHandle
	if err == nil && st == StatusOK {
		h = s.next
		s.next += ServiceHandle(svc.NumHandles)
		s.services[h] = &simService{cap: svc.NumHandles, next: AttrHandle(h) + 1}
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if notify {
		s.post(iface, CreateEvent{Status: st, Service: h, UUID: svc.UUID})
	}
	return nil
}

func (s *Sim) StartService(svc ServiceHandle) error {
	s.mu.Lock()
	st, notify, err := s.begin(Call{Op: OpStartService, Service: svc})
	if err == nil && s.services[svc] == nil {
		err = errcode.InvalidParams
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if notify {
		s.post(SimIface, StartEvent{Status: st, Service: svc})
	}
	return nil
}

// caller holds lock; reserves n handles in svc
func (s *Sim) reserve(svc ServiceHandle, n uint16) (AttrHandle, Status) {
	ss := s.services[svc]
	if ss == nil {
		return 0, StatusInvalidHandle
	}
	if uint16(ss.next-AttrHandle(svc))+n > ss.cap {
		return 0, StatusInsufficientRes
	}
	h := ss.next
	ss.next += AttrHandle(n)
	return h, StatusOK
}

func (s *Sim) AddCharacteristic(svc ServiceHandle, c Characteristic) error {
	s.mu.Lock()
	st, notify, err := s.begin(Call{Op: OpAddChar, Service: svc, Char: c})
	var attr AttrHandle
	if err == nil && st == StatusOK {
		var decl AttrHandle
		decl, st = s.reserve(svc, 2)
		if st == StatusOK {
			attr = decl + 1 // value follows the declaration
			v := c.Value
			if c.MaxLen > 0 && len(v) > int(c.MaxLen) {
				v = v[:c.MaxLen]
			}
			s.attrs[attr] = append([]byte(nil), v...)
		}
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if notify {
		s.post(SimIface, AddCharEvent{Status: st, Service: svc, Attr: attr, UUID: c.UUID})
	}
	return nil
}

func (s *Sim) AddDescriptor(svc ServiceHandle, d Descriptor) error {
	s.mu.Lock()
	st, notify, err := s.begin(Call{Op: OpAddDescr, Service: svc, Descr: d})
	var attr AttrHandle
	if err == nil && st == StatusOK {
		attr, st = s.reserve(svc, 1)
		if st == StatusOK {
			s.attrs[attr] = []byte{0, 0}
		}
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if notify {
		s.post(SimIface, AddDescrEvent{Status: st, Service: svc, Attr: attr, UUID: d.UUID})
	}
	return nil
}

func (s *Sim) AttrValue(attr AttrHandle) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, _, err := s.begin(Call{Op: OpAttrValue, Attr: attr}); err != nil {
		return nil, err
	}
	v, ok := s.attrs[attr]
	if !ok {
		return nil, errcode.InvalidParams
	}
	return append([]byte(nil), v...), nil
}

func (s *Sim) SendResponse(iface Interface, conn ConnID, trans TransID, st Status, rsp Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _, err := s.begin(Call{Op: OpSendResponse, Iface: iface, Conn: conn, Trans: trans, Status: st, Rsp: rsp})
	if err != nil {
		return err
	}
	s.responses[trans] = simResponse{st: st, value: append([]byte(nil), rsp.Value...)}
	return nil
}

func (s *Sim) ConfigAdvertising(d AdvertiseData) error {
	s.mu.Lock()
	st, notify, err := s.begin(Call{Op: OpConfigAdv, Adv: d})
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if notify {
		s.post(SimIface, AdvConfigEvent{Status: st, ScanRsp: d.SetScanRsp})
	}
	return nil
}

func (s *Sim) StartAdvertising() error {
	s.mu.Lock()
	st, notify, err := s.begin(Call{Op: OpStartAdv})
	if err == nil && st == StatusOK {
		s.advertising = true
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if notify {
		s.post(SimIface, AdvStartEvent{Status: st})
	}
	return nil
}

// ---- peer side ----

// Connect delivers a connection event and waits until it was handled.
func (s *Sim) Connect(ctx context.Context, conn ConnID, connected bool) error {
	return wait(ctx, s.post(SimIface, ConnectEvent{Conn: conn, Connected: connected}))
}

// PeerRead delivers a read request for attr and returns the response.
func (s *Sim) PeerRead(ctx context.Context, conn ConnID, attr AttrHandle) ([]byte, Status, error) {
	trans := s.nextTrans()
	done := s.post(SimIface, ReadEvent{Conn: conn, Trans: trans, Attr: attr, NeedRsp: true})
	if err := wait(ctx, done); err != nil {
		return nil, 0, err
	}
	rsp, ok := s.takeResponse(trans)
	if !ok {
		return nil, 0, errcode.Timeout
	}
	return rsp.value, rsp.st, nil
}

// PeerWrite delivers a write request. responded reports whether the
// server answered; prep marks a prepared (long) write.
func (s *Sim) PeerWrite(ctx context.Context, conn ConnID, attr AttrHandle, value []byte, needRsp, prep bool) (rsp []byte, st Status, responded bool, err error) {
	trans := s.nextTrans()
	ev := WriteEvent{Conn: conn, Trans: trans, Attr: attr, NeedRsp: needRsp, IsPrep: prep, Value: append([]byte(nil), value...)}
	if err := wait(ctx, s.post(SimIface, ev)); err != nil {
		return nil, 0, false, err
	}
	r, ok := s.takeResponse(trans)
	return r.value, r.st, ok, nil
}

func (s *Sim) nextTrans() TransID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trans++
	return s.trans
}

func (s *Sim) takeResponse(trans TransID) (simResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.responses[trans]
	delete(s.responses, trans)
	return r, ok
}

func wait(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ Stack = (*Sim)(nil)
