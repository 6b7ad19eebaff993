package gen

import (
	"time"

	"github.com/joshuapare/heapkit/gen/space"
	"github.com/joshuapare/heapkit/internal/align"
	"github.com/joshuapare/heapkit/internal/workers"
	"github.com/joshuapare/heapkit/pkg/region"
)

// resizePermit is the capability token proving the holder owns the
// resize lock. The lower-level grow and shrink paths require one as a
// parameter, so lock discipline is enforced by the type system rather
// than by runtime assertions.
type resizePermit struct{}

// resizeContext tells postResize who is driving the resize.
type resizeContext int

const (
	// resizeSynchronous: sizing policy at a global synchronization
	// point; the worker gang is available and the pretouch cursor is
	// maintained here.
	resizeSynchronous resizeContext = iota

	// resizeConcurrent: an allocating thread expanding on its own
	// behalf. The cursor is left alone; the cooperative pretouch wave
	// catches up with the new end by itself.
	resizeConcurrent
)

func (g *Generation) withResizeLock(fn func(resizePermit)) {
	g.expandLock.Lock()
	defer g.expandLock.Unlock()
	fn(resizePermit{})
}

// PlanSize returns the committed size a resize targeting desiredFree
// bytes of free space resolves to: used plus desired free, with the
// addition overflow mapping to maxSize, clamped to [minSize, maxSize]
// and aligned up. minSize and maxSize must themselves be aligned.
func PlanSize(used, desiredFree, minSize, maxSize, alignment uint64) uint64 {
	newSize, overflow := align.AddOverflows(used, desiredFree)
	if overflow {
		newSize = maxSize
	}
	newSize = align.Clamp(newSize, minSize, maxSize)
	return align.Up(newSize, alignment)
}

// Resize translates a desired-free-space target from sizing policy
// into a concrete expand or shrink. This is the only entry that
// acquires the resize lock itself. Expected to run at a global
// synchronization point.
func (g *Generation) Resize(desiredFreeBytes uint64) {
	used := g.UsedBytes()
	newSize := PlanSize(used, desiredFreeBytes, g.minGenSize, g.maxGenSize, g.vs.Alignment())
	current := g.CapacityBytes()

	g.log.Debug("old generation resize",
		"name", g.name,
		"desired_free", desiredFreeBytes,
		"used", used,
		"new_size", newSize,
		"current_size", current,
		"min", g.minGenSize,
		"max", g.maxGenSize)

	switch {
	case newSize == current:
		return
	case newSize > current:
		g.withResizeLock(func(p resizePermit) {
			g.expand(p, resizeSynchronous, newSize-current)
		})
	default:
		g.withResizeLock(func(p resizePermit) {
			g.shrink(p, resizeSynchronous, current-newSize)
		})
	}
}

// ExpandForAllocate guarantees at least words of free space on a true
// return. It rechecks available space under the resize lock first:
// another thread may have expanded between our failed allocation and
// here, and skipping the redundant expand avoids expand storms.
func (g *Generation) ExpandForAllocate(words uint64) bool {
	ok := g.expandForAllocate(words)
	if d := g.cfg.ExpandDelay; d > 0 {
		time.Sleep(d)
	}
	return ok
}

func (g *Generation) expandForAllocate(words uint64) bool {
	if words == 0 {
		panic("gen: expanding for zero words")
	}
	ok := false
	g.withResizeLock(func(p resizePermit) {
		if words <= g.object.FreeWords() {
			ok = true
			return
		}
		ok = g.expand(p, resizeConcurrent, words*region.WordSize)
	})
	return ok
}

// expand grows the committed region by at least bytes, best effort.
// Tries, in order: the larger of the minimum-increment floor and the
// request, the exact aligned request, and finally whatever remains to
// the reserved ceiling. Returns true on the first success.
func (g *Generation) expand(p resizePermit, ctx resizeContext, bytes uint64) bool {
	if bytes == 0 {
		panic("gen: expanding by zero bytes")
	}
	alignment := g.vs.Alignment()
	alignedBytes := align.Up(bytes, alignment)
	alignedExpandBytes := align.Up(g.cfg.MinHeapDelta, alignment)
	if n := g.cfg.NUMANodeCount; n > 1 {
		// Round-robin page placement wants at least one alignment unit
		// per NUMA group from each expansion.
		if m := alignment * uint64(n); m > alignedExpandBytes {
			alignedExpandBytes = m
		}
	}
	if alignedBytes == 0 {
		// Aligning up wrapped the request to zero. Expand promises a
		// best effort toward bytes, not a guarantee, so fall back to
		// aligning down; that is likely the most the generation could
		// grow anyway.
		alignedBytes = align.Down(bytes, alignment)
	}

	ok := false
	if alignedExpandBytes > alignedBytes {
		ok = g.expandBy(p, ctx, alignedExpandBytes)
	}
	if !ok {
		ok = g.expandBy(p, ctx, alignedBytes)
	}
	if !ok {
		ok = g.expandToReserved(p, ctx)
	}
	if !ok {
		g.counters.expandFailures.Add(1)
	}
	return ok
}

// expandBy commits exactly bytes more memory and runs the resize
// synchronization. Requires the resize permit.
func (g *Generation) expandBy(p resizePermit, ctx resizeContext, bytes uint64) bool {
	if bytes == 0 {
		return false
	}
	oldSize := g.vs.CommittedSize()
	if !g.vs.ExpandBy(bytes) {
		return false
	}
	if g.cfg.ZapUnused {
		// Mangle before postResize publishes the new end; afterwards
		// the range is available for concurrent allocation.
		g.vs.Fill(region.New(g.object.End(), g.vs.High()), space.MangleWord)
	}
	g.postResize(p, ctx)
	g.counters.expansions.Add(1)

	g.log.Debug("expanding old generation",
		"name", g.name,
		"old_kb", oldSize/1024,
		"by_kb", bytes/1024,
		"new_kb", g.vs.CommittedSize()/1024)
	return true
}

// expandToReserved commits everything left in the reservation. Already
// being at the ceiling counts as having nothing to do, not success.
func (g *Generation) expandToReserved(p resizePermit, ctx resizeContext) bool {
	remaining := g.vs.UncommittedSize()
	if remaining == 0 {
		return false
	}
	return g.expandBy(p, ctx, remaining)
}

// shrink uncommits bytes (rounded down to the alignment) from the top
// of the committed region. A request that rounds to zero is a silent
// no-op; shrinking itself cannot fail.
func (g *Generation) shrink(p resizePermit, ctx resizeContext, bytes uint64) {
	size := align.Down(bytes, g.vs.Alignment())
	if size == 0 {
		return
	}
	oldSize := g.vs.CommittedSize()
	g.vs.ShrinkBy(size)
	g.postResize(p, ctx)
	g.counters.shrinks.Add(1)

	g.log.Debug("shrinking old generation",
		"name", g.name,
		"old_kb", oldSize/1024,
		"by_kb", size/1024,
		"new_kb", g.vs.CommittedSize()/1024)
}

// postResize re-synchronizes every observer of the generation's shape
// after a committed-boundary change. Multiple allocators may be active
// while the generation grows on their behalf; if the new boundary
// became visible before the coverage structures were re-declared, a
// racing thread could allocate into memory the start array and card
// table do not cover. The order below is load-bearing:
//
//  1. re-declare the start array's covered region,
//  2. re-declare the card table's covered region,
//  3. publish the new end via the object space (the last store inside
//     Initialize) — from here on allocators may claim the new range,
//  4. adjust the pretouch cursor, synchronous contexts only.
func (g *Generation) postResize(p resizePermit, ctx resizeContext) {
	mr := g.vs.CommittedRegion()

	g.starts.SetCoveredRegion(mr)
	g.cards.ResizeCoveredRegion(mr)

	var gang *workers.Gang
	if ctx == resizeSynchronous {
		gang = g.gang
	}
	g.object.Initialize(mr, space.SetupOptions{
		Clear:     false,
		Mangle:    false,
		Pretouch:  g.cfg.AlwaysPretouch && gang != nil,
		PageBytes: g.pretouchStrideBytes(),
		Gang:      gang,
		Mem:       g.vs,
	})

	if g.object.End() < g.object.Top() {
		panic("gen: resize published an end below the allocation frontier")
	}

	if ctx == resizeSynchronous {
		// With AlwaysPretouch the space setup above already faulted in
		// everything up to the new end. Otherwise keep the cursor,
		// clamping it when the region shrank. Concurrent expansion
		// leaves the cursor alone; the pretouch wave catches up.
		next := uint64(mr.End)
		if !g.cfg.AlwaysPretouch {
			if cur := g.pretouchNext.Load(); cur < next {
				next = cur
			}
		}
		g.pretouchNext.Store(next)
	}
}
