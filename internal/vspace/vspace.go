// Package vspace implements the virtual-memory reservation backing a
// generation: a fixed address range reserved up front, with a committed
// frontier that grows and shrinks from the low boundary.
//
// On Unix the reservation is an anonymous PROT_NONE mapping; committing
// flips page protections to read/write and uncommitting flips them back
// after advising the kernel to drop the pages, so re-committed memory
// always reads as zero and stray touches past the committed frontier
// fault immediately. Other platforms fall back to a plain byte slice
// with the same zero-on-recommit contract.
//
// Addresses handed to this package are region.Addr byte offsets from
// the low boundary. This is the only package that turns an offset into
// real memory.
package vspace

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/joshuapare/heapkit/internal/align"
	"github.com/joshuapare/heapkit/pkg/region"
)

// Space is a reserved address range with a committed low-addressed
// prefix. The committed frontier is atomic: it moves only under the
// generation's resize lock, but allocators read it lock-free through
// the word accessors while a concurrent expansion advances it.
type Space struct {
	data      []byte        // the whole reservation
	committed atomic.Uint64 // bytes committed from the low boundary
	alignment uint64        // commit/uncommit granularity
}

// Reserve maps a new reservation of the given size. Size and alignment
// must be non-zero multiples of the system page size, and alignment
// must be a power of two. Nothing is committed yet.
func Reserve(size, alignment uint64) (*Space, error) {
	page := uint64(pageSize())
	if !align.IsPowerOfTwo(alignment) || !align.IsAligned(alignment, page) {
		return nil, fmt.Errorf("%w: alignment %d (page size %d)", ErrBadAlignment, alignment, page)
	}
	if size == 0 || !align.IsAligned(size, alignment) {
		return nil, fmt.Errorf("%w: size %d not a multiple of alignment %d", ErrBadAlignment, size, alignment)
	}
	data, err := reserve(size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReserveFailed, err)
	}
	return &Space{data: data, alignment: alignment}, nil
}

// Alignment returns the commit/uncommit granularity in bytes.
func (s *Space) Alignment() uint64 { return s.alignment }

// ReservedSize returns the total reservation size in bytes.
func (s *Space) ReservedSize() uint64 { return uint64(len(s.data)) }

// CommittedSize returns the committed prefix size in bytes.
func (s *Space) CommittedSize() uint64 { return s.committed.Load() }

// UncommittedSize returns the bytes still available to commit.
func (s *Space) UncommittedSize() uint64 { return uint64(len(s.data)) - s.committed.Load() }

// LowBoundary returns the lowest reservable address (always zero).
func (s *Space) LowBoundary() region.Addr { return 0 }

// HighBoundary returns the end of the reservation.
func (s *Space) HighBoundary() region.Addr { return region.Addr(len(s.data)) }

// Low returns the start of the committed range (always zero).
func (s *Space) Low() region.Addr { return 0 }

// High returns the end of the committed range.
func (s *Space) High() region.Addr { return region.Addr(s.committed.Load()) }

// CommittedRegion returns [Low, High).
func (s *Space) CommittedRegion() region.Region {
	return region.New(s.Low(), s.High())
}

// ExpandBy commits bytes more memory at the top of the committed
// range. The amount must be a multiple of the alignment. Returns false
// if the reservation has no room or the commit fails; a false return
// leaves the committed frontier unchanged.
func (s *Space) ExpandBy(bytes uint64) bool {
	if bytes == 0 || !align.IsAligned(bytes, s.alignment) {
		return false
	}
	committed := s.committed.Load()
	if bytes > uint64(len(s.data))-committed {
		return false
	}
	if err := commit(s.data[committed : committed+bytes]); err != nil {
		return false
	}
	s.committed.Store(committed + bytes)
	return true
}

// ShrinkBy uncommits bytes from the top of the committed range. The
// amount must be a multiple of the alignment and no larger than the
// committed size; violating either is a caller bug.
func (s *Space) ShrinkBy(bytes uint64) {
	if !align.IsAligned(bytes, s.alignment) {
		panic("vspace: shrink amount not aligned")
	}
	committed := s.committed.Load()
	if bytes > committed {
		panic("vspace: shrink below zero committed")
	}
	if bytes == 0 {
		return
	}
	// The frontier must retreat before the pages go away: a lock-free
	// reader that loads the old frontier after the uncommit would walk
	// into unmapped memory.
	s.committed.Store(committed - bytes)
	if err := uncommit(s.data[committed-bytes : committed]); err != nil {
		// Uncommitting anonymous memory cannot meaningfully fail; if it
		// does, the mapping is in an unknown state and continuing would
		// hand out pages with stale contents.
		panic(fmt.Sprintf("vspace: uncommit failed: %v", err))
	}
}

// Release unmaps the reservation. The Space must not be used after.
func (s *Space) Release() error {
	if s.data == nil {
		return nil
	}
	err := release(s.data)
	s.data = nil
	s.committed.Store(0)
	return err
}

// wordPtr converts a word-aligned committed offset into a pointer.
// Reads the frontier atomically so allocators can touch words while a
// concurrent expansion advances it.
func (s *Space) wordPtr(a region.Addr) *uint64 {
	if uint64(a)&(region.WordSize-1) != 0 {
		panic("vspace: misaligned word access")
	}
	if uint64(a)+region.WordSize > s.committed.Load() {
		panic("vspace: word access beyond committed frontier")
	}
	return (*uint64)(unsafe.Pointer(&s.data[a]))
}

// WordAt atomically reads the word at offset a.
func (s *Space) WordAt(a region.Addr) uint64 {
	return atomic.LoadUint64(s.wordPtr(a))
}

// SetWordAt atomically writes the word at offset a.
func (s *Space) SetWordAt(a region.Addr, v uint64) {
	atomic.StoreUint64(s.wordPtr(a), v)
}

// TouchWord forces the page containing offset a resident with a
// side-effect-free atomic read-modify-write. Safe to race with a
// concurrent allocator writing into the same page.
func (s *Space) TouchWord(a region.Addr) {
	atomic.AddUint64(s.wordPtr(a), 0)
}

// Fill writes word across the committed range r. Used for mangling
// freshly committed space when zap diagnostics are enabled.
func (s *Space) Fill(r region.Region, word uint64) {
	for a := r.Start; a < r.End; a += region.WordSize {
		atomic.StoreUint64(s.wordPtr(a), word)
	}
}

// Clear zeroes the committed range r.
func (s *Space) Clear(r region.Region) {
	s.Fill(r, 0)
}
