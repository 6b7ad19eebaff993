// Package align provides overflow-aware power-of-two alignment and
// clamping arithmetic for generation sizing.
//
// All functions take the alignment as a plain uint64 and require it to
// be a power of two. Up deliberately wraps to zero on overflow instead
// of saturating: the sizing code treats a wrapped result as the signal
// to fall back to Down (best-effort expansion), and that fallback must
// stay an explicit, testable branch.
package align

// IsPowerOfTwo reports whether v is a non-zero power of two.
func IsPowerOfTwo(v uint64) bool {
	return v != 0 && v&(v-1) == 0
}

// Up rounds v up to the next multiple of alignment. On overflow the
// result wraps to zero; callers that care must check for that and fall
// back to Down.
func Up(v, alignment uint64) uint64 {
	return (v + alignment - 1) &^ (alignment - 1)
}

// Down rounds v down to the previous multiple of alignment.
func Down(v, alignment uint64) uint64 {
	return v &^ (alignment - 1)
}

// IsAligned reports whether v is a multiple of alignment.
func IsAligned(v, alignment uint64) bool {
	return v&(alignment-1) == 0
}

// Clamp bounds v to [lo, hi]. It requires lo <= hi.
func Clamp(v, lo, hi uint64) uint64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AddOverflows returns a+b and whether the addition wrapped.
func AddOverflows(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum < a
}
