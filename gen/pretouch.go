package gen

import (
	"fmt"

	"github.com/joshuapare/heapkit/internal/align"
	"github.com/joshuapare/heapkit/pkg/region"
)

// initializeAllocationPretouch derives the pretouch stride and limit.
// The stride is one page in words; the limit bounds how many pages
// ahead of the allocation frontier the wave is allowed to run.
func (g *Generation) initializeAllocationPretouch() error {
	page := g.cfg.PageSize
	if g.cfg.UseLargePages {
		page = g.cfg.LargePageSize
	}
	if !align.IsPowerOfTwo(page) {
		return fmt.Errorf("%w: %d", ErrBadPageSize, page)
	}
	g.pretouchStrideWords = page / region.WordSize
	g.pretouchLimitWords = g.pretouchStrideWords * uint64(g.cfg.Workers)
	return nil
}

func (g *Generation) pretouchStrideBytes() uint64 {
	return g.pretouchStrideWords * region.WordSize
}

// PretouchCursor returns the next address the pretouch wave has not
// yet guaranteed resident. Monotonically non-decreasing between
// resizes.
func (g *Generation) PretouchCursor() region.Addr {
	return region.Addr(g.pretouchNext.Load())
}

// PretouchDuringAllocation drives the cooperative pretouch wave on
// behalf of the thread that just allocated [alloc, alloc+allocWords).
// As each thread allocates a chunk it tries to push the wave forward;
// when the page size is large relative to typical chunks, many threads
// would otherwise pile up waiting for the same page to be mapped in.
//
// The protocol is a single compare-and-swap attempt, never a retry
// loop: a lost race means another thread advanced the cursor, and a
// future allocation makes up any shortfall. Both the cursor and the
// space's end may change concurrently; the decision below is robust
// against that because both only increase during the window it cares
// about.
func (g *Generation) PretouchDuringAllocation(alloc region.Addr, allocWords uint64) {
	// Chunks at least a page long already fault their own pages as
	// they are written; the wave adds nothing for them.
	if g.pretouchStrideWords <= allocWords {
		return
	}
	touch := region.Addr(g.pretouchNext.Load())
	allocEnd := g.object.End()
	if touch >= allocEnd {
		// Pretouch has reached the end of the allocatable range.
		return
	}
	oldTouch := uint64(touch)
	strideBytes := g.pretouchStrideBytes()
	newAlloc := alloc + region.Addr(allocWords*region.WordSize)
	lastPage := region.Addr(align.Down(uint64(allocEnd)-1, strideBytes))

	if newAlloc > touch {
		// Our own chunk has outrun the wave; leave already-allocated
		// pages to the threads using them and move past our chunk.
		if newAlloc > lastPage {
			// Into the last page of the range, so pretouching is done.
			// Try to move the cursor to the end so future calls bail
			// out earlier; losing the race is fine.
			g.pretouchNext.CompareAndSwap(oldTouch, uint64(allocEnd))
			return
		}
		touch = region.Addr(align.Up(uint64(newAlloc), strideBytes))
	} else if uint64(touch-newAlloc)/region.WordSize > g.pretouchLimitWords {
		// The wave is far enough ahead; better to do useful work than
		// touch pages nobody may need soon, or ever.
		return
	}

	if touch > lastPage || !align.IsAligned(uint64(touch), strideBytes) {
		panic("gen: pretouch cursor invariant violated")
	}

	// Next cursor is touch plus one stride, clamped to the end.
	next := touch + region.Addr(strideBytes)
	if uint64(allocEnd-touch) < strideBytes {
		next = allocEnd
	}

	// A successful swap claims responsibility for touching this page.
	// On failure another thread advanced the cursor, though not
	// necessarily as far as we would have; a later pretouch step makes
	// up for it.
	if g.pretouchNext.CompareAndSwap(oldTouch, uint64(next)) {
		g.vs.TouchWord(touch)
		g.counters.pretouchTouches.Add(1)
	}
}
