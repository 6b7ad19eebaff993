// Package startarr implements the object-start array: the coverage
// index that maps any address in the generation to the start of the
// object containing it.
//
// The array keeps one entry per 512-byte block of the reserved region.
// Each entry records how many words back from the block's base the
// object covering that base begins; a sentinel marks blocks no object
// has reached. Because objects are allocated contiguously from the
// bottom of the space, every block base below the allocation frontier
// is covered by exactly one object, and lookups resolve by one table
// read plus a short forward walk over self-sizing objects.
//
// Mutation happens on the allocation path (AllocateBlock) and the
// resize path (SetCoveredRegion, under the generation's resize lock);
// queries are lock-free reads and are safe whenever no resize or
// allocation runs concurrently, which block iteration guarantees by
// running at a global synchronization point.
package startarr

import (
	"fmt"
	"sync/atomic"

	"github.com/joshuapare/heapkit/internal/align"
	"github.com/joshuapare/heapkit/pkg/region"
)

const (
	// BlockBytes is the coverage granularity. It matches the card size
	// so a block never spans cards.
	BlockBytes = 512

	// BlockWords is the coverage granularity in heap words.
	BlockWords = BlockBytes / region.WordSize
)

// noObject marks a block whose base no allocated object covers.
const noObject = ^uint64(0)

// Sizer reports the size in words of the object starting at addr.
// Objects are self-sizing; the generation supplies the header read.
type Sizer func(region.Addr) uint64

// Array is the object-start index over a generation's reserved region.
// The covered end is atomic because allocating threads consult it
// while a concurrent expansion re-declares it; the resize ordering
// guarantees coverage grows before the new end becomes allocatable.
type Array struct {
	reserved   region.Region
	coveredEnd atomic.Uint64
	backSkip   []uint64
	sizeOf     Sizer
}

// New builds an array able to cover all of reserved. The covered
// region starts empty; the generation sets it after the initial
// commit and after every resize.
func New(reserved region.Region, sizeOf Sizer) *Array {
	if !align.IsAligned(uint64(reserved.Start), BlockBytes) || !align.IsAligned(uint64(reserved.End), BlockBytes) {
		panic("startarr: reserved region not block aligned")
	}
	if sizeOf == nil {
		panic("startarr: nil sizer")
	}
	blocks := reserved.ByteSize() / BlockBytes
	a := &Array{
		reserved: reserved,
		backSkip: make([]uint64, blocks),
		sizeOf:   sizeOf,
	}
	a.coveredEnd.Store(uint64(reserved.Start))
	for i := range a.backSkip {
		a.backSkip[i] = noObject
	}
	return a
}

// CoveredRegion returns the range the array currently declares covered.
func (a *Array) CoveredRegion() region.Region {
	return region.New(a.reserved.Start, region.Addr(a.coveredEnd.Load()))
}

// SetCoveredRegion re-declares the covered range after a resize. The
// region must lie within the reserved limit and start at the reserved
// bottom. Entries for blocks dropped by a shrink are invalidated so a
// later expand starts from a clean table.
func (a *Array) SetCoveredRegion(r region.Region) {
	if !a.reserved.ContainsRegion(r) || r.Start != a.reserved.Start {
		panic("startarr: covered region outside reserved limit")
	}
	if !align.IsAligned(uint64(r.End), BlockBytes) {
		panic("startarr: covered region not block aligned")
	}
	for b := a.blockIndex(r.End); b < uint64(len(a.backSkip)); b++ {
		a.backSkip[b] = noObject
	}
	a.coveredEnd.Store(uint64(r.End))
}

// AllocateBlock records a newly allocated object at start spanning
// words. Every block whose base the object covers gets a back-skip
// entry pointing at the object's start.
func (a *Array) AllocateBlock(start region.Addr, words uint64) {
	if words == 0 {
		panic("startarr: zero-sized object")
	}
	end := start + region.Addr(words*region.WordSize)
	if covered := a.CoveredRegion(); !covered.Contains(start) || end > covered.End {
		panic(fmt.Sprintf("startarr: object [%#x, %#x) outside covered region", start, end))
	}
	b := a.blockIndex(start)
	if a.blockBase(b) == start {
		a.backSkip[b] = 0
	}
	for i := b + 1; a.blockBase(i) < end; i++ {
		a.backSkip[i] = uint64(a.blockBase(i)-start) / region.WordSize
	}
}

// IsBlockAllocated reports whether some object covers the base of the
// block containing addr.
func (a *Array) IsBlockAllocated(addr region.Addr) bool {
	if !a.CoveredRegion().Contains(addr) {
		return false
	}
	return a.backSkip[a.blockIndex(addr)] != noObject
}

// ObjectStart returns the start address of the object containing or
// preceding addr. The block containing addr must be allocated; asking
// about virgin memory indicates a broken caller.
func (a *Array) ObjectStart(addr region.Addr) region.Addr {
	b := a.blockIndex(addr)
	skip := a.backSkip[b]
	if skip == noObject {
		panic(fmt.Sprintf("startarr: no object covers %#x", addr))
	}
	q := a.blockBase(b) - region.Addr(skip*region.WordSize)
	for {
		next := q + region.Addr(a.sizeOf(q)*region.WordSize)
		if next > addr {
			return q
		}
		q = next
	}
}

// ObjectStartsInRange reports whether any object starts within
// [begin, end). An object merely straddling into the range from below
// does not count.
func (a *Array) ObjectStartsInRange(begin, end region.Addr) bool {
	if end <= begin {
		return false
	}
	last := end - region.WordSize
	if !a.IsBlockAllocated(last) {
		return false
	}
	// Objects are contiguous: if the object covering the last word
	// starts below begin, it spans the whole range and nothing else
	// can start inside it.
	return a.ObjectStart(last) >= begin
}

// Reset invalidates every entry, returning the array to its
// post-construction state for the current covered region.
func (a *Array) Reset() {
	for b := range a.backSkip {
		a.backSkip[b] = noObject
	}
}

func (a *Array) blockIndex(addr region.Addr) uint64 {
	return uint64(addr-a.reserved.Start) / BlockBytes
}

func (a *Array) blockBase(index uint64) region.Addr {
	return a.reserved.Start + region.Addr(index*BlockBytes)
}
