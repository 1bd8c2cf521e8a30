//go:build rp2040 || rp2350

package strconvx

// Integer conversions with strconv's signatures and base rules, kept
// local so the firmware does not link strconv. Digit separators ('_')
// are not accepted.

const digits = "0123456789abcdefghijklmnopqrstuvwxyz"

const intSize = 32 << (^uint(0) >> 63)

const (
	errSyntax  = "invalid syntax"
	errRange   = "value out of range"
	errBase    = "invalid base"
	errBitSize = "invalid bit size"
)

type numError struct{ fn, num, msg string }

func (e *numError) Error() string {
	return "strconvx." + e.fn + ": parsing \"" + e.num + "\": " + e.msg
}

func Itoa(i int) string { return FormatInt(int64(i), 10) }

func Atoi(s string) (int, error) {
	v, err := ParseInt(s, 10, 0)
	if err != nil {
		err.(*numError).fn = "Atoi"
	}
	return int(v), err
}

func FormatInt(i int64, base int) string {
	if i < 0 {
		return "-" + FormatUint(uint64(-i), base)
	}
	return FormatUint(uint64(i), base)
}

func FormatUint(u uint64, base int) string {
	if base < 2 || base > len(digits) {
		panic("strconvx: illegal base")
	}
	var buf [64]byte
	i := len(buf)
	b := uint64(base)
	for {
		i--
		buf[i] = digits[u%b]
		u /= b
		if u == 0 {
			return string(buf[i:])
		}
	}
}

func ParseUint(s string, base, bitSize int) (uint64, error) {
	n, msg := parseUint(s, base, bitSize)
	if msg != "" {
		return n, &numError{"ParseUint", s, msg}
	}
	return n, nil
}

func ParseInt(s string, base, bitSize int) (int64, error) {
	if bitSize == 0 {
		bitSize = intSize
	}
	body := s
	neg := false
	if body != "" && (body[0] == '+' || body[0] == '-') {
		neg = body[0] == '-'
		body = body[1:]
	}
	un, msg := parseUint(body, base, bitSize)
	if msg != "" && msg != errRange {
		return 0, &numError{"ParseInt", s, msg}
	}
	cutoff := uint64(1) << uint(bitSize-1)
	switch {
	case !neg && (msg == errRange || un >= cutoff):
		return int64(cutoff - 1), &numError{"ParseInt", s, errRange}
	case neg && (msg == errRange || un > cutoff):
		return -int64(cutoff), &numError{"ParseInt", s, errRange}
	case neg:
		return -int64(un), nil
	}
	return int64(un), nil
}

// parseUint returns the value and, on failure, one of the err* messages.
// An overflow yields the largest value for bitSize.
func parseUint(s string, base, bitSize int) (uint64, string) {
	if s == "" {
		return 0, errSyntax
	}
	if base == 0 {
		base, s = prefixBase(s)
	}
	if base < 2 || base > len(digits) {
		return 0, errBase
	}
	if bitSize == 0 {
		bitSize = intSize
	}
	if bitSize < 0 || bitSize > 64 {
		return 0, errBitSize
	}
	max := uint64(1)<<uint(bitSize) - 1
	b := uint64(base)

	var n uint64
	for i := 0; i < len(s); i++ {
		d := digitVal(s[i])
		if d >= b {
			return 0, errSyntax
		}
		if n > (max-d)/b {
			return max, errRange
		}
		n = n*b + d
	}
	return n, ""
}

// prefixBase applies Go literal prefixes: 0x, 0o and 0b, with a bare
// leading 0 meaning octal.
func prefixBase(s string) (int, string) {
	if s[0] != '0' {
		return 10, s
	}
	if len(s) >= 3 {
		switch s[1] | 0x20 {
		case 'x':
			return 16, s[2:]
		case 'o':
			return 8, s[2:]
		case 'b':
			return 2, s[2:]
		}
	}
	if len(s) == 1 {
		return 10, s
	}
	return 8, s[1:]
}

func digitVal(c byte) uint64 {
	switch {
	case '0' <= c && c <= '9':
		return uint64(c - '0')
	case 'a' <= c|0x20 && c|0x20 <= 'z':
		return uint64(c|0x20-'a') + 10
	}
	return 255
}
