package speaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"devkit-go/errcode"
	"devkit-go/internal/provider"
)

func TestOctaveDividesByPowerOfTwo(t *testing.T) {
	for _, n := range Scale {
		if n.Octave(8) != uint32(n) {
			t.Fatalf("%v: octave 8 must equal the base frequency", n)
		}
		for o := uint8(1); o <= 8; o++ {
			want := uint32(n) / (1 << (8 - o))
			if got := n.Octave(o); got != want {
				t.Fatalf("%v octave %d: got %d want %d", n, o, got, want)
			}
		}
	}
	if A.Octave(4) != 440 {
		t.Fatalf("A4 = %d", A.Octave(4))
	}
}

func newSpeaker() (*Speaker, *provider.FakePWM, *[]time.Duration) {
	pwm := &provider.FakePWM{}
	s := New(pwm, 0)
	var slept []time.Duration
	s.sleep = func(d time.Duration) { slept = append(slept, d) }
	return s, pwm, &slept
}

func TestDoSoundReconfiguresEveryCall(t *testing.T) {
	s, pwm, slept := newSpeaker()
	if err := s.PlayNote(A, 4, 100*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if err := s.PlayNote(C, 5, 50*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	tones, levels := pwm.Snapshot()
	if len(tones) != 2 || tones[0].FreqHz != 440 || tones[1].FreqHz != 523 {
		t.Fatalf("tones %+v", tones)
	}
	if len(levels) != 2 || levels[0] != 1 {
		t.Fatalf("default duty should be 1, levels %v", levels)
	}
	if pwm.Enabled() {
		t.Fatal("channel left enabled")
	}
	if len(*slept) != 2 || (*slept)[0] != 100*time.Millisecond {
		t.Fatalf("slept %v", *slept)
	}
}

func TestRestOnlyWaits(t *testing.T) {
	s, pwm, slept := newSpeaker()
	if err := s.PlayNote(None, 4, 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if tones, _ := pwm.Snapshot(); len(tones) != 0 {
		t.Fatalf("rest touched the timer: %+v", tones)
	}
	if len(*slept) != 1 {
		t.Fatal("rest must still wait")
	}
}

func TestPlayMelodyStops(t *testing.T) {
	s, pwm, slept := newSpeaker()
	calls := 0
	stop := func() bool { calls++; return calls > 3 }
	if err := s.PlayMelody(context.Background(), OdeToJoy, 500*time.Millisecond, stop); err != nil {
		t.Fatal(err)
	}
	if tones, _ := pwm.Snapshot(); len(tones) != 3 {
		t.Fatalf("want 3 notes before stop, got %d", len(tones))
	}
	if (*slept)[0] != 500*time.Millisecond {
		t.Fatalf("one beat should be 500ms, got %v", (*slept)[0])
	}
}

func TestPlayMelodyContext(t *testing.T) {
	s, _, _ := newSpeaker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.PlayMelody(ctx, OdeToJoy, time.Millisecond, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("want canceled, got %v", err)
	}
}

func TestPlayMelodyDurations(t *testing.T) {
	s, _, slept := newSpeaker()
	m := Melody{{Notes: []Note{E}, Halves: 3, Octave: 4}, {Notes: []Note{D}, Halves: 1, Octave: 4}}
	if err := s.PlayMelody(context.Background(), m, 200*time.Millisecond, nil); err != nil {
		t.Fatal(err)
	}
	if (*slept)[0] != 300*time.Millisecond || (*slept)[1] != 100*time.Millisecond {
		t.Fatalf("durations %v", *slept)
	}
	if m.Halves() != 4 {
		t.Fatalf("halves %d", m.Halves())
	}
}

type badPWM struct{ provider.FakePWM }

func (*badPWM) Configure(uint64, uint16) error { return errcode.Busy }

func TestConfigureFailure(t *testing.T) {
	s := New(&badPWM{}, 1)
	s.sleep = func(time.Duration) {}
	err := s.PlayNote(A, 4, time.Millisecond)
	if errcode.Of(err) != errcode.Busy {
		t.Fatalf("want busy, got %v", err)
	}
}
