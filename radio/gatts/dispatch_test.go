package gatts

import (
	"context"
	"testing"
	"time"
)

func ctxT(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestOnceFiresOnlyOnce(t *testing.T) {
	sim := NewSim()
	defer sim.Close()
	d := NewDispatcher(sim)

	got := make(chan RegisterEvent, 2)
	d.Once(KindRegister, func(_ Interface, ev Event) { got <- ev.(RegisterEvent) })

	_ = sim.Enable("t")
	_ = sim.RegisterApp(1)
	_ = sim.RegisterApp(1)

	select {
	case ev := <-got:
		if ev.Iface != SimIface || ev.AppID != 1 {
			t.Fatalf("unexpected %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no register event")
	}
	select {
	case ev := <-got:
		t.Fatalf("once fired twice: %+v", ev)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestReadWriteRouting(t *testing.T) {
	sim := NewSim()
	defer sim.Close()
	d := NewDispatcher(sim)

	d.HandleRead(42, ReadFunc(func(ReadEvent) []byte { return []byte("value") }))
	d.HandleWrite(42, WriteFunc(func(ev WriteEvent) ([]byte, bool) {
		return append([]byte("got "), ev.Value...), ev.NeedRsp
	}))

	v, st, err := sim.PeerRead(ctxT(t), 1, 42)
	if err != nil || st != StatusOK || string(v) != "value" {
		t.Fatalf("read %q %v %v", v, st, err)
	}

	rsp, st, responded, err := sim.PeerWrite(ctxT(t), 1, 42, []byte("x"), true, false)
	if err != nil || !responded || st != StatusOK || string(rsp) != "got x" {
		t.Fatalf("write %q %v %v %v", rsp, st, responded, err)
	}

	_, _, responded, _ = sim.PeerWrite(ctxT(t), 1, 42, []byte("y"), false, false)
	if responded {
		t.Fatal("no response was requested")
	}
}

func TestUnknownAttribute(t *testing.T) {
	sim := NewSim()
	defer sim.Close()
	NewDispatcher(sim)

	_, st, err := sim.PeerRead(ctxT(t), 1, 99)
	if err != nil || st != StatusInvalidHandle {
		t.Fatalf("want invalid handle, got %v %v", st, err)
	}
}

func TestObserverSeesConnect(t *testing.T) {
	sim := NewSim()
	defer sim.Close()
	d := NewDispatcher(sim)

	var seen []ConnectEvent
	d.Observe(KindConnect, func(_ Interface, ev Event) { seen = append(seen, ev.(ConnectEvent)) })
	_ = sim.Connect(ctxT(t), 7, true)
	_ = sim.Connect(ctxT(t), 7, false)
	if len(seen) != 2 || !seen[0].Connected || seen[1].Connected || seen[0].Conn != 7 {
		t.Fatalf("seen %+v", seen)
	}
}

func TestSimHandleBudget(t *testing.T) {
	sim := NewSim()
	defer sim.Close()
	d := NewDispatcher(sim)

	created := make(chan CreateEvent, 1)
	added := make(chan AddCharEvent, 2)
	d.Observe(KindCreate, func(_ Interface, ev Event) { created <- ev.(CreateEvent) })
	d.Observe(KindAddChar, func(_ Interface, ev Event) { added <- ev.(AddCharEvent) })

	_ = sim.Enable("t")
	_ = sim.RegisterApp(1)
	_ = sim.CreateService(SimIface, Service{UUID: UUID16(ServiceBattery), Primary: true, NumHandles: 4})
	svc := (<-created).Service
	if svc != SimFirstHandle {
		t.Fatalf("service handle %d", svc)
	}
	_ = sim.AddCharacteristic(svc, Characteristic{UUID: UUID16(0xff01), Value: []byte("hi")})
	_ = sim.AddCharacteristic(svc, Characteristic{UUID: UUID16(0xff02)})
	first, second := <-added, <-added
	if first.Status != StatusOK || first.Attr != AttrHandle(svc)+2 {
		t.Fatalf("first %+v", first)
	}
	if second.Status != StatusInsufficientRes {
		t.Fatalf("second should overflow the service, got %+v", second)
	}
}
