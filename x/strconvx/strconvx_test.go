package strconvx

import "testing"

// These cases hold for both builds: the host delegates to strconv and the
// firmware build follows the same base and range rules.

func TestFormat(t *testing.T) {
	for _, c := range []struct {
		got, want string
	}{
		{Itoa(0), "0"},
		{Itoa(-4095), "-4095"},
		{FormatInt(-9223372036854775808, 10), "-9223372036854775808"},
		{FormatUint(18446744073709551615, 16), "ffffffffffffffff"},
		{FormatUint(5, 2), "101"},
		{FormatUint(35, 36), "z"},
	} {
		if c.got != c.want {
			t.Errorf("got %q, want %q", c.got, c.want)
		}
	}
}

func TestParseUintPrefixes(t *testing.T) {
	for _, c := range []struct {
		in   string
		base int
		want uint64
	}{
		{"0", 0, 0},
		{"42", 0, 42},
		{"075", 0, 61},
		{"0o75", 0, 61},
		{"0B101", 0, 5},
		{"0xFf", 0, 255},
		{"ff", 16, 255},
		{"075", 10, 75},
	} {
		got, err := ParseUint(c.in, c.base, 64)
		if err != nil || got != c.want {
			t.Errorf("ParseUint(%q, %d) = %d, %v; want %d", c.in, c.base, got, err, c.want)
		}
	}
}

func TestParseUintRejects(t *testing.T) {
	for _, c := range []struct {
		in            string
		base, bitSize int
	}{
		{"", 10, 64},
		{"0x", 0, 64},
		{"08", 0, 64},
		{"12a", 10, 64},
		{"-1", 10, 64},
		{"256", 10, 8},
		{"100000000", 16, 32},
		{"18446744073709551616", 10, 64},
	} {
		if v, err := ParseUint(c.in, c.base, c.bitSize); err == nil {
			t.Errorf("ParseUint(%q, %d, %d) = %d, want error", c.in, c.base, c.bitSize, v)
		}
	}
}

func TestParseIntBounds(t *testing.T) {
	if v, err := ParseInt("-0x80", 0, 8); err != nil || v != -128 {
		t.Fatalf("min int8: %d %v", v, err)
	}
	if _, err := ParseInt("128", 10, 8); err == nil {
		t.Fatal("128 fits int8")
	}
	if v, err := ParseInt("+127", 10, 8); err != nil || v != 127 {
		t.Fatalf("max int8: %d %v", v, err)
	}
	if _, err := ParseInt("9223372036854775808", 10, 64); err == nil {
		t.Fatal("2^63 fits int64")
	}
}

func TestAtoi(t *testing.T) {
	if v, err := Atoi("-17"); err != nil || v != -17 {
		t.Fatalf("Atoi(-17) = %d, %v", v, err)
	}
	if _, err := Atoi("1.5"); err == nil {
		t.Fatal("Atoi accepted 1.5")
	}
}
