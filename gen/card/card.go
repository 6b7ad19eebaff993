// Package card implements the generation's card table: a byte map
// recording coarse-grained dirty regions of the committed range so
// incremental scans can visit only recently written memory.
//
// The table is sized for the whole reserved region up front; only the
// declared covered region may be marked or queried. The covered region
// is re-declared by the resize path (under the generation's resize
// lock) before the new committed boundary is published, so a card
// always exists for every allocatable address.
package card

import (
	"fmt"
	"sync/atomic"

	"github.com/joshuapare/heapkit/internal/align"
	"github.com/joshuapare/heapkit/pkg/region"
)

// Size is the bytes of heap each card summarizes.
const Size = 512

const (
	cleanCard uint32 = 0
	dirtyCard uint32 = 1
)

// Table is a card table over a generation's reserved region. The
// covered end is atomic: mutators may consult it while a concurrent
// expansion re-declares coverage, relying on the resize ordering that
// grows coverage before publishing the new allocatable end. Card marks
// are atomic too, so any number of mutator threads may dirty cards
// concurrently; clearing and coverage changes stay confined to the
// resize path and synchronization points.
type Table struct {
	reserved   region.Region
	coveredEnd atomic.Uint64
	cards      []atomic.Uint32
}

// New builds a table able to cover all of reserved. Both boundaries
// must be card-aligned; a card spanning past the generation would
// corrupt commit/uncommit and card clearing at the edges.
func New(reserved region.Region) *Table {
	if !align.IsAligned(uint64(reserved.Start), Size) || !align.IsAligned(uint64(reserved.End), Size) {
		panic("card: reserved region not card aligned")
	}
	t := &Table{
		reserved: reserved,
		cards:    make([]atomic.Uint32, reserved.ByteSize()/Size),
	}
	t.coveredEnd.Store(uint64(reserved.Start))
	return t
}

// CoveredRegion returns the range the table currently declares covered.
func (t *Table) CoveredRegion() region.Region {
	return region.New(t.reserved.Start, region.Addr(t.coveredEnd.Load()))
}

// ResizeCoveredRegion re-declares the covered range after a resize.
// Cards entering coverage are cleared; cards leaving it are cleared
// too, so stale dirty marks can never survive an uncommit/recommit
// cycle.
func (t *Table) ResizeCoveredRegion(r region.Region) {
	if !t.reserved.ContainsRegion(r) || r.Start != t.reserved.Start {
		panic("card: covered region outside reserved limit")
	}
	if !align.IsAligned(uint64(r.End), Size) {
		panic("card: covered region not card aligned")
	}
	old := t.CoveredRegion()
	if r.End > old.End {
		t.clearCards(old.End, r.End)
	} else if r.End < old.End {
		t.clearCards(r.End, old.End)
	}
	t.coveredEnd.Store(uint64(r.End))
}

// IsCardAligned reports whether addr sits on a card boundary.
func (t *Table) IsCardAligned(addr region.Addr) bool {
	return align.IsAligned(uint64(addr), Size)
}

// MarkDirty dirties every card overlapping r. The range must lie
// within the covered region.
func (t *Table) MarkDirty(r region.Region) {
	if r.IsEmpty() {
		return
	}
	if !t.CoveredRegion().ContainsRegion(r) {
		panic(fmt.Sprintf("card: dirty range [%#x, %#x) outside covered region", r.Start, r.End))
	}
	for c := t.index(r.Start); c <= t.index(r.End - 1); c++ {
		t.cards[c].Store(dirtyCard)
	}
}

// IsDirty reports whether the card containing addr is dirty.
func (t *Table) IsDirty(addr region.Addr) bool {
	if !t.CoveredRegion().Contains(addr) {
		return false
	}
	return t.cards[t.index(addr)].Load() == dirtyCard
}

// ClearRange cleans every card fully or partially inside r.
func (t *Table) ClearRange(r region.Region) {
	if r.IsEmpty() {
		return
	}
	if !t.CoveredRegion().ContainsRegion(r) {
		panic("card: clear range outside covered region")
	}
	start := region.Addr(align.Down(uint64(r.Start), Size))
	end := region.Addr(align.Up(uint64(r.End), Size))
	t.clearCards(start, end)
}

// DirtyRanges returns the dirty portion of the covered region as
// card-aligned, sorted, coalesced ranges.
func (t *Table) DirtyRanges() []region.Region {
	var ranges []region.Region
	covered := t.CoveredRegion()
	lo := t.index(covered.Start)
	hi := lo
	if !covered.IsEmpty() {
		hi = t.index(covered.End-1) + 1
	}
	for c := lo; c < hi; {
		if t.cards[c].Load() != dirtyCard {
			c++
			continue
		}
		start := c
		for c < hi && t.cards[c].Load() == dirtyCard {
			c++
		}
		ranges = append(ranges, region.New(t.base(start), t.base(c)))
	}
	return ranges
}

func (t *Table) clearCards(from, to region.Addr) {
	for c := t.index(from); c < t.index(to-1)+1; c++ {
		t.cards[c].Store(cleanCard)
	}
}

func (t *Table) index(addr region.Addr) uint64 {
	return uint64(addr-t.reserved.Start) / Size
}

func (t *Table) base(index uint64) region.Addr {
	return t.reserved.Start + region.Addr(index*Size)
}
