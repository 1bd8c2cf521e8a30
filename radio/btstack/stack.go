// Package btstack runs the gatts.Stack contract on tinygo.org/x/bluetooth.
//
// The adapter registers a whole service at once and has no read callback,
// so this backend buffers the incremental calls, commits services when
// advertising starts and treats a zero-length write as a read request. The
// answer to a read is published as the characteristic value, which the peer
// fetches with its next plain read.
package btstack

import (
	"sync"

	"devkit-go/errcode"
	"devkit-go/radio/gatts"
	"devkit-go/x/logx"

	"tinygo.org/x/bluetooth"
)

var log = logx.New("btstack")

// Iface is the single interface id this backend hands out.
const Iface gatts.Interface = 1

const firstHandle = 1

type delivery struct {
	iface gatts.Interface
	ev    gatts.Event
}

type char struct {
	svc    gatts.ServiceHandle
	cfg    gatts.Characteristic
	handle bluetooth.Characteristic
	value  []byte
}

type service struct {
	def       gatts.Service
	chars     []gatts.AttrHandle
	committed bool
}

type Stack struct {
	adapter *bluetooth.Adapter

	mu       sync.Mutex
	handler  gatts.EventHandler
	name     string
	enabled  bool
	appID    uint16
	next     uint16
	services map[gatts.ServiceHandle]*service
	order    []gatts.ServiceHandle
	chars    map[gatts.AttrHandle]*char
	adv      gatts.AdvertiseData
	scan     gatts.AdvertiseData
	conn     gatts.ConnID
	trans    gatts.TransID

	events chan delivery
}

// New wraps adapter; nil selects bluetooth.DefaultAdapter.
func New(adapter *bluetooth.Adapter) *Stack {
	if adapter == nil {
		adapter = bluetooth.DefaultAdapter
	}
	s := &Stack{
		adapter:  adapter,
		next:     firstHandle,
		services: make(map[gatts.ServiceHandle]*service),
		chars:    make(map[gatts.AttrHandle]*char),
		events:   make(chan delivery, 16),
	}
	go s.loop()
	return s
}

// loop delivers events one at a time, off the adapter's callback context.
func (s *Stack) loop() {
	for d := range s.events {
		s.mu.Lock()
		h := s.handler
		s.mu.Unlock()
		if h != nil {
			h(d.iface, d.ev)
		}
	}
}

func (s *Stack) post(ev gatts.Event) {
	select {
	case s.events <- delivery{iface: Iface, ev: ev}:
	default:
		log.Warn("event dropped", "kind", ev.Kind())
	}
}

func (s *Stack) SetEventHandler(h gatts.EventHandler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

func (s *Stack) Enable(name string) error {
	s.adapter.SetConnectHandler(func(_ bluetooth.Device, connected bool) {
		s.mu.Lock()
		if connected {
			s.conn++
		}
		conn := s.conn
		s.mu.Unlock()
		s.post(gatts.ConnectEvent{Conn: conn, Connected: connected})
	})
	if err := s.adapter.Enable(); err != nil {
		return errcode.Wrap("adapter enable", err)
	}
	s.mu.Lock()
	s.name = name
	s.enabled = true
	s.mu.Unlock()
	return nil
}

func (s *Stack) RegisterApp(appID uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return errcode.NotReady
	}
	s.appID = appID
	s.post(gatts.RegisterEvent{Status: gatts.StatusOK, AppID: appID, Iface: Iface})
	return nil
}

func (s *Stack) CreateService(iface gatts.Interface, svc gatts.Service) error {
	if iface != Iface {
		return errcode.InvalidParams
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h := gatts.ServiceHandle(s.next)
	s.next += max(svc.NumHandles, 1)
	s.services[h] = &service{def: svc}
	s.order = append(s.order, h)
	s.post(gatts.CreateEvent{Status: gatts.StatusOK, Service: h, UUID: svc.UUID})
	return nil
}

// StartService only acknowledges; the adapter learns about the service when
// advertising starts.
func (s *Stack) StartService(svc gatts.ServiceHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.services[svc]; !ok {
		return errcode.InvalidParams
	}
	s.post(gatts.StartEvent{Status: gatts.StatusOK, Service: svc})
	return nil
}

func (s *Stack) AddCharacteristic(svc gatts.ServiceHandle, c gatts.Characteristic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sv, ok := s.services[svc]
	if !ok {
		return errcode.InvalidParams
	}
	if sv.committed {
		return errcode.Busy
	}
	// declaration + value, like the vendor stacks
	attr := gatts.AttrHandle(uint16(svc) + 2 + 2*uint16(len(sv.chars)))
	s.chars[attr] = &char{svc: svc, cfg: c, value: append([]byte(nil), c.Value...)}
	sv.chars = append(sv.chars, attr)
	s.post(gatts.AddCharEvent{Status: gatts.StatusOK, Service: svc, Attr: attr, UUID: c.UUID})
	return nil
}

// AddDescriptor acknowledges the descriptor. The adapter creates the client
// configuration descriptor itself for notifying characteristics.
func (s *Stack) AddDescriptor(svc gatts.ServiceHandle, d gatts.Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sv, ok := s.services[svc]
	if !ok {
		return errcode.InvalidParams
	}
	attr := gatts.AttrHandle(uint16(svc) + 1 + 2*uint16(len(sv.chars)))
	s.post(gatts.AddDescrEvent{Status: gatts.StatusOK, Service: svc, Attr: attr, UUID: d.UUID})
	return nil
}

func (s *Stack) AttrValue(attr gatts.AttrHandle) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chars[attr]
	if !ok {
		return nil, errcode.InvalidParams
	}
	return append([]byte(nil), c.value...), nil
}

// SendResponse publishes rsp as the characteristic value.
func (s *Stack) SendResponse(_ gatts.Interface, _ gatts.ConnID, _ gatts.TransID, st gatts.Status, rsp gatts.Response) error {
	s.mu.Lock()
	c, ok := s.chars[rsp.Attr]
	if ok {
		c.value = append([]byte(nil), rsp.Value...)
	}
	s.mu.Unlock()
	if !ok {
		return errcode.InvalidParams
	}
	if st != gatts.StatusOK {
		log.Warn("error response", "attr", rsp.Attr, "status", st)
	}
	if _, err := c.handle.Write(rsp.Value); err != nil {
		return errcode.Wrap("publish value", err)
	}
	return nil
}

func (s *Stack) ConfigAdvertising(d gatts.AdvertiseData) error {
	s.mu.Lock()
	if d.SetScanRsp {
		s.scan = d
	} else {
		s.adv = d
	}
	s.mu.Unlock()
	s.post(gatts.AdvConfigEvent{Status: gatts.StatusOK, ScanRsp: d.SetScanRsp})
	return nil
}

func (s *Stack) StartAdvertising() error {
	if err := s.commit(); err != nil {
		return err
	}
	s.mu.Lock()
	opts := advOptions(s.name, s.adv, s.scan)
	s.mu.Unlock()

	adv := s.adapter.DefaultAdvertisement()
	if err := adv.Configure(opts); err != nil {
		return errcode.Wrap("configure advertisement", err)
	}
	if err := adv.Start(); err != nil {
		return errcode.Wrap("start advertisement", err)
	}
	s.post(gatts.AdvStartEvent{Status: gatts.StatusOK})
	return nil
}

// commit registers every service not yet known to the adapter.
func (s *Stack) commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.order {
		sv := s.services[h]
		if sv.committed {
			continue
		}
		cfgs := make([]bluetooth.CharacteristicConfig, 0, len(sv.chars))
		for _, attr := range sv.chars {
			c := s.chars[attr]
			cfgs = append(cfgs, bluetooth.CharacteristicConfig{
				Handle:     &c.handle,
				UUID:       toUUID(c.cfg.UUID),
				Value:      c.value,
				Flags:      charFlags(c.cfg.Perm, c.cfg.Prop),
				WriteEvent: s.onWrite(attr),
			})
		}
		if err := s.adapter.AddService(&bluetooth.Service{
			UUID:            toUUID(sv.def.UUID),
			Characteristics: cfgs,
		}); err != nil {
			return errcode.Wrap("add service", err)
		}
		sv.committed = true
		log.Info("service committed", "handle", h, "chars", len(cfgs))
	}
	return nil
}

// onWrite turns adapter writes on attr into gatts events. An empty write at
// offset 0 is a read request.
func (s *Stack) onWrite(attr gatts.AttrHandle) func(bluetooth.Connection, int, []byte) {
	return func(_ bluetooth.Connection, offset int, value []byte) {
		s.mu.Lock()
		s.trans++
		trans, conn := s.trans, s.conn
		s.mu.Unlock()

		if len(value) == 0 && offset == 0 {
			s.post(gatts.ReadEvent{Conn: conn, Trans: trans, Attr: attr, NeedRsp: true})
			return
		}
		s.post(gatts.WriteEvent{
			Conn:    conn,
			Trans:   trans,
			Attr:    attr,
			Offset:  uint16(offset),
			NeedRsp: true,
			IsPrep:  offset != 0,
			Value:   append([]byte(nil), value...),
		})
	}
}

var _ gatts.Stack = (*Stack)(nil)
