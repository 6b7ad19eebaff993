// Package region defines the shared address and range types used across
// the generation, its spaces, and its coverage side-structures.
//
// Addresses are byte offsets from the low boundary of the generation's
// reserved mapping rather than raw pointers. All address arithmetic in
// the sizing, pretouch, and iteration code happens on these offsets;
// the only code that converts an Addr into real memory lives in
// internal/vspace.
package region

// WordSize is the size of one heap word in bytes. All object sizes are
// expressed in words, and all addresses handed to the coverage
// structures are word-aligned.
const WordSize = 8

// Addr is a byte offset from the reserved region's low boundary.
type Addr uint64

// Region is a half-open address range [Start, End).
type Region struct {
	Start Addr
	End   Addr
}

// New returns the region [start, end). It panics if end precedes start;
// a backwards range always indicates broken resize arithmetic upstream.
func New(start, end Addr) Region {
	if end < start {
		panic("region: end precedes start")
	}
	return Region{Start: start, End: end}
}

// ByteSize returns the length of the region in bytes.
func (r Region) ByteSize() uint64 {
	return uint64(r.End - r.Start)
}

// WordCount returns the length of the region in heap words.
func (r Region) WordCount() uint64 {
	return r.ByteSize() / WordSize
}

// IsEmpty reports whether the region contains no addresses.
func (r Region) IsEmpty() bool {
	return r.Start == r.End
}

// Contains reports whether a lies within the region.
func (r Region) Contains(a Addr) bool {
	return a >= r.Start && a < r.End
}

// ContainsRegion reports whether other lies entirely within r.
func (r Region) ContainsRegion(other Region) bool {
	return other.Start >= r.Start && other.End <= r.End
}

// Equals reports whether two regions cover the identical range.
func (r Region) Equals(other Region) bool {
	return r.Start == other.Start && r.End == other.End
}
