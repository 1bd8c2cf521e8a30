package mathx

// RoundDiv returns floor((a + b/2)/b), classic rounding for positives.
func RoundDiv[T ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64](a, b T) T {
	if b == 0 {
		return 0
	}
	return (a + b/2) / b
}

// ScaleU8 returns v*num/255 with integer division (brightness scaling).
func ScaleU8(v, num uint8) uint8 {
	return uint8(uint16(v) * uint16(num) / 255)
}
