package logx

import (
	"errors"
	"testing"
)

func capture(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	prev := Output
	Output = func(s string) { lines = append(lines, s) }
	t.Cleanup(func() { Output = prev; SetLevel(LevelInfo) })
	return &lines
}

func TestLineFormat(t *testing.T) {
	lines := capture(t)
	New("radio").Info("service created", "handle", uint16(40), "name", "kit")
	New("leds").Error("write failed", "err", errors.New("bus"))
	if len(*lines) != 2 {
		t.Fatalf("got %d lines", len(*lines))
	}
	if (*lines)[0] != `[radio] service created handle=40 name="kit"` {
		t.Fatalf("line 0: %q", (*lines)[0])
	}
	if (*lines)[1] != `[leds] ERROR write failed err=bus` {
		t.Fatalf("line 1: %q", (*lines)[1])
	}
}

func TestLevelFilter(t *testing.T) {
	lines := capture(t)
	l := New("x")
	l.Debug("hidden")
	SetLevel(LevelWarn)
	l.Info("hidden too")
	l.Warn("shown")
	if len(*lines) != 1 || (*lines)[0] != "[x] WARN shown" {
		t.Fatalf("unexpected lines %q", *lines)
	}
}
