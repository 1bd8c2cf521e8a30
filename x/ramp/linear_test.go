package ramp

import (
	"testing"
	"time"
)

func TestStartLinearReachesTarget(t *testing.T) {
	var levels []uint16
	var waited time.Duration
	StartLinear(0, 100, 255, 100, 4, func(d time.Duration) bool {
		waited += d
		return true
	}, func(l uint16) { levels = append(levels, l) })

	if len(levels) == 0 || levels[len(levels)-1] != 100 {
		t.Fatalf("levels %v", levels)
	}
	for i := 1; i < len(levels); i++ {
		if levels[i] < levels[i-1] {
			t.Fatalf("not monotonic: %v", levels)
		}
	}
	if waited != 75*time.Millisecond {
		t.Fatalf("waited %v", waited)
	}
}

func TestStartLinearDown(t *testing.T) {
	var last uint16 = 999
	StartLinear(200, 10, 255, 50, 5, func(time.Duration) bool { return true }, func(l uint16) { last = l })
	if last != 10 {
		t.Fatalf("last %d", last)
	}
}

func TestStartLinearSnapAndClamp(t *testing.T) {
	var got []uint16
	StartLinear(0, 300, 255, 0, 8, nil, func(l uint16) { got = append(got, l) })
	if len(got) != 1 || got[0] != 255 {
		t.Fatalf("got %v", got)
	}
}

func TestStartLinearCancelled(t *testing.T) {
	var got []uint16
	StartLinear(0, 100, 255, 100, 10, func(time.Duration) bool { return false }, func(l uint16) { got = append(got, l) })
	if len(got) != 0 {
		t.Fatalf("cancelled ramp set %v", got)
	}
}
