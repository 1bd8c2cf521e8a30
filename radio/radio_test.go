package radio

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"devkit-go/errcode"
	"devkit-go/radio/gatts"
	"devkit-go/x/logx"
)

func reverse(b []byte) (string, bool) {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return string(out), true
}

func ctxT(t *testing.T, d time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	t.Cleanup(cancel)
	return ctx
}

func newRadio(t *testing.T, cfg Config) (*Radio, *gatts.Sim) {
	t.Helper()
	sim := gatts.NewSim()
	t.Cleanup(sim.Close)
	r, err := New(ctxT(t, time.Second), sim, cfg, Options{Name: "kit"})
	if err != nil {
		t.Fatalf("bring-up: %v", err)
	}
	return r, sim
}

// captureLogs collects log lines until the test ends.
func captureLogs(t *testing.T) func() []string {
	var mu sync.Mutex
	var lines []string
	prev := logx.Output
	logx.Output = func(s string) {
		mu.Lock()
		lines = append(lines, s)
		mu.Unlock()
	}
	t.Cleanup(func() { logx.Output = prev })
	return func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), lines...)
	}
}

func TestBringUpSequence(t *testing.T) {
	r, sim := newRadio(t, NewConfig())

	var ops []string
	for _, c := range sim.Calls() {
		ops = append(ops, c.Op)
	}
	want := []string{
		gatts.OpEnable, gatts.OpRegisterApp, gatts.OpCreateService, gatts.OpStartService,
		gatts.OpAddChar, gatts.OpAttrValue, gatts.OpAddDescr, gatts.OpConfigAdv, gatts.OpConfigAdv,
	}
	if strings.Join(ops, ",") != strings.Join(want, ",") {
		t.Fatalf("ops\n got %v\nwant %v", ops, want)
	}

	enable, _ := sim.Find(gatts.OpEnable)
	if enable.Name != "kit" {
		t.Fatalf("device name %q", enable.Name)
	}
	reg, _ := sim.Find(gatts.OpRegisterApp)
	if reg.AppID != DefaultAppID {
		t.Fatalf("app id %d", reg.AppID)
	}
	if r.Iface() != gatts.SimIface || r.Service() != gatts.SimFirstHandle || r.Attr() != gatts.AttrHandle(gatts.SimFirstHandle)+2 {
		t.Fatalf("handles iface=%d svc=%d attr=%d", r.Iface(), r.Service(), r.Attr())
	}
}

// Every handle a step consumes is exactly what the previous callback gave.
func TestBringUpHandlesChain(t *testing.T) {
	r, sim := newRadio(t, NewConfig())

	create, _ := sim.Find(gatts.OpCreateService)
	if create.Iface != r.Iface() {
		t.Fatalf("create used iface %d, register gave %d", create.Iface, r.Iface())
	}
	svc := create.Svc
	if !svc.Primary || svc.NumHandles != 4 || !svc.UUID.Equal(gatts.UUID16(gatts.ServiceBattery)) {
		t.Fatalf("service %+v", svc)
	}
	for _, op := range []string{gatts.OpStartService, gatts.OpAddChar, gatts.OpAddDescr} {
		c, _ := sim.Find(op)
		if c.Service != r.Service() {
			t.Fatalf("%s used service %d, create gave %d", op, c.Service, r.Service())
		}
	}
	read, _ := sim.Find(gatts.OpAttrValue)
	if read.Attr != r.Attr() {
		t.Fatalf("read back attr %d, add gave %d", read.Attr, r.Attr())
	}

	add, _ := sim.Find(gatts.OpAddChar)
	ch := add.Char
	if ch.UUID.Short() != 0xff01 || string(ch.Value) != "Hello World" || len(ch.Value) != 11 {
		t.Fatalf("characteristic %+v", ch)
	}
	if ch.Perm != gatts.PermRead|gatts.PermWrite || ch.Prop != gatts.PropRead|gatts.PropWrite || ch.AutoRsp != gatts.RspByApp {
		t.Fatalf("characteristic access %+v", ch)
	}
	descr, _ := sim.Find(gatts.OpAddDescr)
	if descr.Descr.UUID.Short() != gatts.DescrClientConfig || descr.Descr.Perm != gatts.PermRead {
		t.Fatalf("descriptor %+v", descr.Descr)
	}
}

// Without the registration callback no service is ever created.
func TestBringUpWaitsForCallback(t *testing.T) {
	sim := gatts.NewSim()
	defer sim.Close()
	sim.Silence(gatts.OpRegisterApp)

	_, err := New(ctxT(t, 50*time.Millisecond), sim, NewConfig(), Options{})
	if errcode.Of(err) != errcode.Timeout {
		t.Fatalf("want timeout, got %v", err)
	}
	if _, called := sim.Find(gatts.OpCreateService); called {
		t.Fatal("service created before an interface id was delivered")
	}
}

func TestBringUpFailureNamesStep(t *testing.T) {
	steps := map[string]string{
		gatts.OpEnable:        "enable",
		gatts.OpRegisterApp:   "register app",
		gatts.OpCreateService: "create service",
		gatts.OpStartService:  "start service",
		gatts.OpAddChar:       "add characteristic",
		gatts.OpAttrValue:     "read characteristic",
		gatts.OpAddDescr:      "add descriptor",
		gatts.OpConfigAdv:     "configure advertising",
	}
	boom := errors.New("boom")
	for op, step := range steps {
		sim := gatts.NewSim()
		sim.Fail(op, boom)
		r, err := New(ctxT(t, time.Second), sim, NewConfig(), Options{})
		sim.Close()
		if r != nil {
			t.Fatalf("%s: partial radio returned", op)
		}
		var e *errcode.E
		if !errors.As(err, &e) || e.Op != step || !errors.Is(err, boom) {
			t.Fatalf("%s: want *errcode.E for %q, got %v", op, step, err)
		}
	}
}

func TestBringUpStatusFailure(t *testing.T) {
	for op, step := range map[string]string{
		gatts.OpRegisterApp:   "register app",
		gatts.OpCreateService: "create service",
		gatts.OpAddChar:       "add characteristic",
	} {
		sim := gatts.NewSim()
		sim.FailStatus(op, gatts.StatusError)
		_, err := New(ctxT(t, time.Second), sim, NewConfig(), Options{})
		sim.Close()
		var e *errcode.E
		if !errors.As(err, &e) || e.Op != step || !strings.Contains(e.Msg, "error") {
			t.Fatalf("%s: got %v", op, err)
		}
	}
}

func TestCommandQueueLIFO(t *testing.T) {
	r, _ := newRadio(t, NewConfig())
	_ = r.Send("a")
	_ = r.Send("b")
	for _, want := range []string{"b", "a"} {
		if got, ok := r.NextCommand(); !ok || got != want {
			t.Fatalf("got %q %v, want %q", got, ok, want)
		}
	}
	if _, ok := r.NextCommand(); ok {
		t.Fatal("queue should be empty")
	}
}

func TestReadPopsOrFallsBack(t *testing.T) {
	r, sim := newRadio(t, NewConfig())
	_ = r.Send("a")
	_ = r.Send("b")
	for _, want := range []string{"b", "a", Fallback} {
		v, st, err := sim.PeerRead(ctxT(t, time.Second), 1, r.Attr())
		if err != nil || st != gatts.StatusOK || string(v) != want {
			t.Fatalf("read %q %v %v, want %q", v, st, err, want)
		}
	}
}

func TestWriteObserverReply(t *testing.T) {
	r, sim := newRadio(t, NewConfig().OnReceive(reverse))
	rsp, st, responded, err := sim.PeerWrite(ctxT(t, time.Second), 1, r.Attr(), []byte("abc"), true, false)
	if err != nil || !responded || st != gatts.StatusOK || string(rsp) != "cba" {
		t.Fatalf("reply %q %v %v %v", rsp, st, responded, err)
	}
}

func TestWriteWithoutObserverRepliesEmpty(t *testing.T) {
	r, sim := newRadio(t, NewConfig())
	rsp, _, responded, err := sim.PeerWrite(ctxT(t, time.Second), 1, r.Attr(), []byte("abc"), true, false)
	if err != nil || !responded || len(rsp) != 0 {
		t.Fatalf("reply %q %v %v", rsp, responded, err)
	}
}

func TestWriteWithoutResponseStillObserved(t *testing.T) {
	got := make(chan string, 1)
	cfg := NewConfig().OnReceive(func(b []byte) (string, bool) {
		got <- string(b)
		return "", false
	})
	r, sim := newRadio(t, cfg)
	_, _, responded, _ := sim.PeerWrite(ctxT(t, time.Second), 1, r.Attr(), []byte("hi"), false, false)
	if responded {
		t.Fatal("no response requested")
	}
	if s := <-got; s != "hi" {
		t.Fatalf("observer saw %q", s)
	}
}

func TestPreparedWriteRejected(t *testing.T) {
	logs := captureLogs(t)
	called := false
	r, sim := newRadio(t, NewConfig().OnReceive(func([]byte) (string, bool) { called = true; return "x", true }))
	_, _, responded, err := sim.PeerWrite(ctxT(t, time.Second), 1, r.Attr(), []byte("long"), true, true)
	if err != nil || responded || called {
		t.Fatalf("prepared write: responded=%v called=%v err=%v", responded, called, err)
	}
	found := false
	for _, l := range logs() {
		if strings.HasPrefix(l, "[radio] WARN unsupported write") {
			found = true
		}
	}
	if !found {
		t.Fatalf("no warning in %v", logs())
	}
}

// A read arriving while the application holds the config completes with
// the fallback instead of blocking.
func TestReadWhileConfigHeld(t *testing.T) {
	r, sim := newRadio(t, NewConfig())
	held := r.cfg.TryDo(func(c *Config) {
		c.send("queued")
		v, _, err := sim.PeerRead(ctxT(t, time.Second), 1, r.Attr())
		if err != nil || string(v) != Fallback {
			t.Errorf("read under lock: %q %v", v, err)
		}
		if err := r.Send("dropped"); !errors.Is(err, errcode.Busy) {
			t.Errorf("send under lock: want busy, got %v", err)
		}
	})
	if !held {
		t.Fatal("config lock was not free")
	}
	v, _, _ := sim.PeerRead(ctxT(t, time.Second), 1, r.Attr())
	if string(v) != "queued" {
		t.Fatalf("after release got %q", v)
	}
}

func TestWriteWhileConfigHeldRepliesEmpty(t *testing.T) {
	r, sim := newRadio(t, NewConfig().OnReceive(reverse))
	held := r.cfg.TryDo(func(*Config) {
		rsp, _, responded, err := sim.PeerWrite(ctxT(t, time.Second), 1, r.Attr(), []byte("abc"), true, false)
		if err != nil || !responded || len(rsp) != 0 {
			t.Errorf("write under lock: %q %v %v", rsp, responded, err)
		}
	})
	if !held {
		t.Fatal("config lock was not free")
	}
}

func TestAdvertisingPayloads(t *testing.T) {
	_, sim := newRadio(t, NewConfig())
	var adv []gatts.AdvertiseData
	for _, c := range sim.Calls() {
		if c.Op == gatts.OpConfigAdv {
			adv = append(adv, c.Adv)
		}
	}
	if len(adv) != 2 {
		t.Fatalf("want 2 payloads, got %d", len(adv))
	}
	marker := [16]byte{0xfb, 0x34, 0x9b, 0x5f, 0x80, 0x00, 0x00, 0x80, 0x00, 0x10, 0x00, 0x00, 0xff, 0x00, 0x00, 0x00}

	a := adv[0]
	if a.SetScanRsp || !a.IncludeName || a.IncludeTxPower || a.MinInterval != 6 || a.MaxInterval != 16 {
		t.Fatalf("advertising %+v", a)
	}
	if a.Flags != gatts.FlagGenDisc|gatts.FlagBREDRNotSupport {
		t.Fatalf("flags %#x", a.Flags)
	}
	if a.ServiceUUID == nil || a.ServiceUUID.LittleEndian() != marker {
		t.Fatalf("advertising uuid %v", a.ServiceUUID)
	}

	s := adv[1]
	if !s.SetScanRsp || s.IncludeName || !s.IncludeTxPower {
		t.Fatalf("scan response %+v", s)
	}
	if s.ServiceUUID == nil || s.ServiceUUID.LittleEndian() != marker {
		t.Fatalf("scan response uuid %v", s.ServiceUUID)
	}
}

func TestStart(t *testing.T) {
	r, sim := newRadio(t, NewConfig())
	if sim.Advertising() {
		t.Fatal("advertising before Start")
	}
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	if !sim.Advertising() {
		t.Fatal("Start did not advertise")
	}

	r2, sim2 := newRadio(t, NewConfig())
	sim2.Fail(gatts.OpStartAdv, errcode.Busy)
	if err := r2.Start(); errcode.Of(err) != errcode.Error || !errors.Is(err, errcode.Busy) {
		t.Fatalf("want wrapped failure, got %v", err)
	}
}

func TestDefaults(t *testing.T) {
	sim := gatts.NewSim()
	defer sim.Close()
	r, err := New(ctxT(t, time.Second), sim, NewConfig(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if r.Name() != DefaultName {
		t.Fatalf("name %q", r.Name())
	}
}
