// Package strx holds small helpers for option defaults.
package strx

// Coalesce returns the first value that is not the zero value, or the
// zero value when there is none.
func Coalesce[T comparable](vals ...T) T {
	var zero T
	for _, v := range vals {
		if v != zero {
			return v
		}
	}
	return zero
}
