package speaker

// Note is a pitch; its value is the frequency in Hz at octave 8.
type Note uint32

const (
	None Note = 0
	C    Note = 4186
	Cs   Note = 4435
	D    Note = 4699
	Eb   Note = 4978
	E    Note = 5274
	F    Note = 5588
	Fs   Note = 5920
	G    Note = 6272
	Gs   Note = 6645
	A    Note = 7040
	Bb   Note = 7459
	B    Note = 7902
)

// Scale lists the twelve pitches in ascending order.
var Scale = [12]Note{C, Cs, D, Eb, E, F, Fs, G, Gs, A, Bb, B}

// Octave returns the frequency in octave o (1..8): base / 2^(8-o).
// Octaves outside the range are clamped.
func (n Note) Octave(o uint8) uint32 {
	switch {
	case o < 1:
		o = 1
	case o > 8:
		o = 8
	}
	return uint32(n) / (1 << (8 - o))
}

func (n Note) String() string {
	switch n {
	case None:
		return "rest"
	case C:
		return "C"
	case Cs:
		return "C#"
	case D:
		return "D"
	case Eb:
		return "Eb"
	case E:
		return "E"
	case F:
		return "F"
	case Fs:
		return "F#"
	case G:
		return "G"
	case Gs:
		return "G#"
	case A:
		return "A"
	case Bb:
		return "Bb"
	case B:
		return "B"
	}
	return "?"
}
