// Package radio brings up a single-characteristic GATT service and relays
// strings between the application and a connected peer: reads pop queued
// commands, writes go to an observer whose reply is sent back.
package radio

import (
	"context"

	"devkit-go/errcode"
	"devkit-go/radio/gatts"
	"devkit-go/x/guard"
	"devkit-go/x/logx"
	"devkit-go/x/oneshot"
	"devkit-go/x/strx"
)

var log = logx.New("radio")

// Fixed service layout.
const (
	DefaultName  = "DevKit"
	DefaultAppID = 1

	CharUUID     uint16 = 0xff01
	InitialValue        = "Hello World"
	ValueMaxLen         = 12

	serviceHandles = 4 // declaration + characteristic (2) + descriptor
)

// Options tune the bring-up; zero values select the defaults.
type Options struct {
	Name  string
	AppID uint16
}

type Radio struct {
	disp *gatts.Dispatcher
	cfg  *guard.Guarded[Config]

	name    string
	iface   gatts.Interface
	service gatts.ServiceHandle
	attr    gatts.AttrHandle
}

// New performs the whole bring-up on stack. Every acknowledged step waits
// for its callback, so each handle used is the one the previous callback
// produced. Any failure is returned as an *errcode.E naming the step; there
// is no partial radio. ctx bounds the waits.
func New(ctx context.Context, stack gatts.Stack, cfg Config, opts Options) (*Radio, error) {
	r := &Radio{
		cfg:  guard.New(cfg),
		name: strx.Coalesce(opts.Name, DefaultName),
	}
	appID := opts.AppID
	if appID == 0 {
		appID = DefaultAppID
	}

	r.disp = gatts.NewDispatcher(stack)
	r.observeAcks()

	if err := stack.Enable(r.name); err != nil {
		return nil, stepErr("enable", err)
	}

	// 1. application -> interface id
	reg, err := await[gatts.RegisterEvent](ctx, r.disp, "register app", func() error {
		return stack.RegisterApp(appID)
	})
	if err != nil {
		return nil, err
	}
	if reg.Status != gatts.StatusOK {
		return nil, statusErr("register app", reg.Status)
	}
	r.iface = reg.Iface
	log.Info("app registered", "app", appID, "iface", r.iface)

	// 2. connection observer
	r.disp.Observe(gatts.KindConnect, func(_ gatts.Interface, ev gatts.Event) {
		c := ev.(gatts.ConnectEvent)
		log.Info("connect event", "conn", c.Conn, "connected", c.Connected)
	})

	// 3. service -> service handle
	svc := gatts.Service{
		UUID:       gatts.UUID16(gatts.ServiceBattery),
		Primary:    true,
		NumHandles: serviceHandles,
		InstID:     1,
	}
	created, err := await[gatts.CreateEvent](ctx, r.disp, "create service", func() error {
		return stack.CreateService(r.iface, svc)
	})
	if err != nil {
		return nil, err
	}
	if created.Status != gatts.StatusOK {
		return nil, statusErr("create service", created.Status)
	}
	r.service = created.Service
	log.Info("service created", "iface", r.iface, "handle", r.service)

	// 4. start, acknowledged only in the log
	if err := stack.StartService(r.service); err != nil {
		return nil, stepErr("start service", err)
	}

	// 5. characteristic -> attribute handle
	char := gatts.Characteristic{
		UUID:    gatts.UUID16(CharUUID),
		Perm:    gatts.PermRead | gatts.PermWrite,
		Prop:    gatts.PropRead | gatts.PropWrite,
		Value:   []byte(InitialValue),
		MaxLen:  ValueMaxLen,
		AutoRsp: gatts.RspByApp,
	}
	added, err := await[gatts.AddCharEvent](ctx, r.disp, "add characteristic", func() error {
		return stack.AddCharacteristic(r.service, char)
	})
	if err != nil {
		return nil, err
	}
	if added.Status != gatts.StatusOK {
		return nil, statusErr("add characteristic", added.Status)
	}
	r.attr = added.Attr
	log.Info("attr added", "handle", r.attr)

	// 6. read back, logged only
	v, err := stack.AttrValue(r.attr)
	if err != nil {
		return nil, stepErr("read characteristic", err)
	}
	log.Info("characteristic value", "value", v)

	// 7. client configuration descriptor
	if err := stack.AddDescriptor(r.service, gatts.Descriptor{
		UUID: gatts.UUID16(gatts.DescrClientConfig),
		Perm: gatts.PermRead,
	}); err != nil {
		return nil, stepErr("add descriptor", err)
	}

	// 8, 9. request handlers
	r.disp.HandleRead(r.attr, commandReader{cfg: r.cfg})
	r.disp.HandleWrite(r.attr, messageWriter{cfg: r.cfg})

	// 10, 11. payloads
	if err := stack.ConfigAdvertising(AdvertisingPayload()); err != nil {
		return nil, stepErr("configure advertising", err)
	}
	if err := stack.ConfigAdvertising(ScanResponsePayload()); err != nil {
		return nil, stepErr("configure scan response", err)
	}
	return r, nil
}

// Start begins advertising.
func (r *Radio) Start() error {
	return stepErr("start advertising", r.disp.Stack().StartAdvertising())
}

// Send queues cmd for the next peer read. It fails with errcode.Busy, and
// the command is dropped, when the config is held by a callback.
func (r *Radio) Send(cmd string) error {
	if !r.cfg.TryDo(func(c *Config) { c.send(cmd) }) {
		return errcode.Busy
	}
	return nil
}

// NextCommand pops what a peer read would get, without the fallback.
func (r *Radio) NextCommand() (string, bool) {
	var cmd string
	var ok bool
	r.cfg.TryDo(func(c *Config) { cmd, ok = c.nextCommand() })
	return cmd, ok
}

func (r *Radio) Name() string                 { return r.name }
func (r *Radio) Iface() gatts.Interface       { return r.iface }
func (r *Radio) Service() gatts.ServiceHandle { return r.service }
func (r *Radio) Attr() gatts.AttrHandle       { return r.attr }

func (r *Radio) observeAcks() {
	r.disp.Observe(gatts.KindStart, func(_ gatts.Interface, ev gatts.Event) {
		e := ev.(gatts.StartEvent)
		if e.Status != gatts.StatusOK {
			log.Warn("service start failed", "handle", e.Service, "status", e.Status)
			return
		}
		log.Info("service started", "handle", e.Service)
	})
	r.disp.Observe(gatts.KindAddDescr, func(_ gatts.Interface, ev gatts.Event) {
		e := ev.(gatts.AddDescrEvent)
		log.Info("descriptor added", "handle", e.Attr, "status", e.Status)
	})
	r.disp.Observe(gatts.KindAdvConfig, func(_ gatts.Interface, ev gatts.Event) {
		e := ev.(gatts.AdvConfigEvent)
		log.Info("advertising configured", "scan_rsp", e.ScanRsp, "status", e.Status)
	})
	r.disp.Observe(gatts.KindAdvStart, func(_ gatts.Interface, ev gatts.Event) {
		log.Info("advertising started", "status", ev.(gatts.AdvStartEvent).Status)
	})
}

// await arms a fresh rendezvous for the next event of type E, issues call
// and blocks until the callback delivers or ctx is done.
func await[E gatts.Event](ctx context.Context, d *gatts.Dispatcher, step string, call func() error) (E, error) {
	var zero E
	rv := oneshot.New[E]()
	d.Once(zero.Kind(), func(_ gatts.Interface, ev gatts.Event) {
		if e, ok := ev.(E); ok {
			rv.Set(e)
		}
	})
	if err := call(); err != nil {
		return zero, stepErr(step, err)
	}
	e, err := rv.Wait(ctx)
	if err != nil {
		return zero, &errcode.E{C: errcode.Timeout, Op: step, Err: err}
	}
	return e, nil
}

func stepErr(step string, err error) error {
	if err == nil {
		return nil
	}
	return &errcode.E{C: errcode.Error, Op: step, Err: err}
}

func statusErr(step string, st gatts.Status) error {
	return &errcode.E{C: errcode.Error, Op: step, Msg: "status " + st.String()}
}
