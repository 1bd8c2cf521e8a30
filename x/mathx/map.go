package mathx

// MapU16 rescales x from [inLo,inHi] onto [outLo,outHi], truncating.
// Inputs outside the source range pin to the nearest output bound.
func MapU16(x, inLo, inHi, outLo, outHi uint16) uint16 {
	if inHi <= inLo {
		return outLo
	}
	x = Clamp(x, inLo, inHi)
	span := uint32(x-inLo) * uint32(outHi-outLo)
	return outLo + uint16(span/uint32(inHi-inLo))
}
