// Package space implements the generation's object space: the
// [bottom, top, end) bump-allocation range whose end tracks the
// committed high boundary.
//
// top and end are atomics. top moves under compare-and-swap by
// concurrent allocators; end is written only by Initialize, which the
// resize path calls as the final, publishing step of a resize. Nothing
// in this package takes a lock.
package space

import (
	"sync/atomic"

	"github.com/joshuapare/heapkit/internal/align"
	"github.com/joshuapare/heapkit/internal/workers"
	"github.com/joshuapare/heapkit/pkg/region"
)

// MangleWord is the junk pattern written over unallocated memory when
// zap diagnostics are enabled. A stale read of mangled memory fails
// loudly instead of looking like a zeroed object.
const MangleWord uint64 = 0xBAADBABEBAADBABE

// Memory provides the raw page operations Initialize needs: filling,
// clearing, and touching words of the committed mapping.
type Memory interface {
	Fill(r region.Region, word uint64)
	Clear(r region.Region)
	TouchWord(a region.Addr)
}

// SetupOptions controls what Initialize does to the memory it is
// covering, mirroring the clear/mangle/setup-pages decorator flags.
type SetupOptions struct {
	// Clear resets top to the region start and zeroes [bottom, end).
	// Used at construction; resizes preserve the allocation frontier.
	Clear bool

	// Mangle fills the unallocated tail [top, end) with MangleWord.
	Mangle bool

	// Pretouch faults in the newly covered pages before the new end is
	// published, using the gang when one is present.
	Pretouch bool

	// PageBytes is the touch stride for Pretouch. Must be a power of
	// two when Pretouch is set.
	PageBytes uint64

	// Gang, when non-nil, parallelizes clearing and pretouching.
	Gang *workers.Gang

	// Mem performs the actual page operations. Required whenever
	// Clear, Mangle, or Pretouch is set.
	Mem Memory
}

// Space is a mutable bump-allocation space.
type Space struct {
	bottom    region.Addr
	top       atomic.Uint64
	end       atomic.Uint64
	alignment uint64
}

// New returns an empty space with the given boundary alignment.
func New(alignment uint64) *Space {
	return &Space{alignment: alignment}
}

// Initialize (re)positions the space over mr, performing the requested
// page setup first and publishing the new end as the very last store.
// Once the end is visible, concurrent allocators may immediately claim
// the newly covered range, so every side effect that must precede
// allocation happens before that store.
func (s *Space) Initialize(mr region.Region, opts SetupOptions) {
	if !align.IsAligned(uint64(mr.Start), s.alignment) || !align.IsAligned(uint64(mr.End), s.alignment) {
		panic("space: region boundaries not aligned")
	}
	oldEnd := region.Addr(s.end.Load())

	s.bottom = mr.Start
	if opts.Clear {
		s.top.Store(uint64(mr.Start))
	}
	top := region.Addr(s.top.Load())
	if top < mr.Start || top > mr.End {
		panic("space: allocation frontier outside new region")
	}

	// Mangling supersedes zeroing; the fill below covers the region.
	if opts.Clear && !opts.Mangle && opts.Mem != nil && !mr.IsEmpty() {
		clearParallel(mr, opts)
	}
	if opts.Mangle && opts.Mem != nil && top < mr.End {
		opts.Mem.Fill(region.New(top, mr.End), MangleWord)
	}
	if opts.Pretouch && opts.Mem != nil {
		// Only the part not previously covered needs faulting in.
		from := oldEnd
		if from < mr.Start {
			from = mr.Start
		}
		if from < mr.End {
			touchParallel(region.New(from, mr.End), opts)
		}
	}

	// Publishing the end makes the region visible to allocators; this
	// must remain the final store of the resize sequence.
	s.end.Store(uint64(mr.End))
}

func clearParallel(mr region.Region, opts SetupOptions) {
	if opts.Gang == nil {
		opts.Mem.Clear(mr)
		return
	}
	n := uint64(opts.Gang.Workers())
	chunk := align.Up(mr.ByteSize()/n, region.WordSize)
	if chunk == 0 {
		chunk = region.WordSize
	}
	opts.Gang.Run(func(worker int) {
		start := mr.Start + region.Addr(uint64(worker)*chunk)
		end := start + region.Addr(chunk)
		if start >= mr.End {
			return
		}
		if end > mr.End {
			end = mr.End
		}
		opts.Mem.Clear(region.New(start, end))
	})
}

func touchParallel(r region.Region, opts SetupOptions) {
	stride := opts.PageBytes
	if stride == 0 {
		return
	}
	first := region.Addr(align.Down(uint64(r.Start), stride))
	if first < r.Start {
		first = r.Start
	}
	touchOne := func(a region.Addr) {
		if a < r.End {
			opts.Mem.TouchWord(a)
		}
	}
	if opts.Gang == nil {
		for a := first; a < r.End; a += region.Addr(stride) {
			touchOne(a)
		}
		return
	}
	n := uint64(opts.Gang.Workers())
	opts.Gang.Run(func(worker int) {
		for a := first + region.Addr(uint64(worker)*stride); a < r.End; a += region.Addr(n * stride) {
			touchOne(a)
		}
	})
}

// Bottom returns the low boundary of the space.
func (s *Space) Bottom() region.Addr { return s.bottom }

// Top returns the current allocation frontier.
func (s *Space) Top() region.Addr { return region.Addr(s.top.Load()) }

// End returns the current high boundary. Safe to read concurrently
// with a resize; the value only ever moves monotonically within one
// pretouch decision window.
func (s *Space) End() region.Addr { return region.Addr(s.end.Load()) }

// UsedRegion returns [bottom, top).
func (s *Space) UsedRegion() region.Region {
	return region.New(s.bottom, s.Top())
}

// UsedBytes returns the allocated byte count.
func (s *Space) UsedBytes() uint64 {
	return uint64(s.Top() - s.bottom)
}

// CapacityBytes returns the size of [bottom, end).
func (s *Space) CapacityBytes() uint64 {
	return uint64(s.End() - s.bottom)
}

// FreeWords returns the unallocated words between top and end.
func (s *Space) FreeWords() uint64 {
	top := s.top.Load()
	end := s.end.Load()
	if top >= end {
		return 0
	}
	return (end - top) / region.WordSize
}

// CASAllocate claims words of space by advancing top, retrying on
// contention. Returns the start of the claimed range, or false when
// the space between top and end is too small.
func (s *Space) CASAllocate(words uint64) (region.Addr, bool) {
	bytes := words * region.WordSize
	for {
		top := s.top.Load()
		end := s.end.Load()
		if top+bytes > end {
			return 0, false
		}
		if s.top.CompareAndSwap(top, top+bytes) {
			return region.Addr(top), true
		}
	}
}

// SetTop rewinds or advances the allocation frontier. Only for use in
// stop-the-world contexts (tests, whole-space reset).
func (s *Space) SetTop(a region.Addr) {
	if a < s.bottom || a > s.End() {
		panic("space: top outside [bottom, end)")
	}
	s.top.Store(uint64(a))
}
