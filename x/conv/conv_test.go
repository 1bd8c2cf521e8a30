package conv

import "testing"

func TestAppendInt(t *testing.T) {
	for _, c := range []struct {
		n    int64
		want string
	}{{0, "0"}, {7, "7"}, {-42, "-42"}, {-9223372036854775808, "-9223372036854775808"}} {
		if got := string(AppendInt(nil, c.n)); got != c.want {
			t.Errorf("AppendInt(%d) = %q", c.n, got)
		}
	}
}

func TestAppendUintKeepsPrefix(t *testing.T) {
	got := AppendUint([]byte("i"), 18446744073709551615)
	if string(got) != "i18446744073709551615" {
		t.Fatalf("got %q", got)
	}
}
