package gen

import (
	"fmt"

	"github.com/joshuapare/heapkit/pkg/region"
)

// Verify runs the generation's structural self-checks: space ordering,
// committed-size bounds and alignment, and coverage of both
// side-structures exactly matching the live region. Intended for tests
// and stop-the-world diagnostics.
func (g *Generation) Verify() error {
	bottom, top, end := g.object.Bottom(), g.object.Top(), g.object.End()
	if !(bottom <= top && top <= end) {
		return fmt.Errorf("%w: space ordering [%#x, %#x, %#x)", ErrVerify, bottom, top, end)
	}
	if end != g.vs.High() {
		return fmt.Errorf("%w: published end %#x != committed high %#x", ErrVerify, end, g.vs.High())
	}
	committed := g.vs.CommittedSize()
	if committed < g.minGenSize || committed > g.maxGenSize {
		return fmt.Errorf("%w: committed size %d outside [%d, %d]", ErrVerify, committed, g.minGenSize, g.maxGenSize)
	}
	if committed%g.vs.Alignment() != 0 {
		return fmt.Errorf("%w: committed size %d not aligned to %d", ErrVerify, committed, g.vs.Alignment())
	}
	live := region.New(bottom, end)
	if !g.starts.CoveredRegion().Equals(live) {
		return fmt.Errorf("%w: start array covers [%#x, %#x), live region is [%#x, %#x)",
			ErrVerify, g.starts.CoveredRegion().Start, g.starts.CoveredRegion().End, live.Start, live.End)
	}
	if !g.cards.CoveredRegion().Equals(live) {
		return fmt.Errorf("%w: card table covers [%#x, %#x), live region is [%#x, %#x)",
			ErrVerify, g.cards.CoveredRegion().Start, g.cards.CoveredRegion().End, live.Start, live.End)
	}
	if cursor := g.PretouchCursor(); cursor > end {
		return fmt.Errorf("%w: pretouch cursor %#x beyond end %#x", ErrVerify, cursor, end)
	}

	// The object walk must tile [bottom, top) exactly.
	next := bottom
	var walkErr error
	g.IterateObjects(func(o Object) {
		if walkErr != nil {
			return
		}
		if o.Start != next {
			walkErr = fmt.Errorf("%w: object at %#x, expected %#x", ErrVerify, o.Start, next)
			return
		}
		next = o.Start + region.Addr(o.Words*region.WordSize)
	})
	if walkErr != nil {
		return walkErr
	}
	if next != top {
		return fmt.Errorf("%w: object walk ends at %#x, top is %#x", ErrVerify, next, top)
	}
	return nil
}

// VerifyObjectStartArray cross-checks every live object against the
// start array: an interior address must resolve to the object's start,
// and the object's first block must be marked allocated.
func (g *Generation) VerifyObjectStartArray() error {
	var err error
	g.IterateObjects(func(o Object) {
		if err != nil {
			return
		}
		probe := o.Start + region.WordSize
		if got := g.starts.ObjectStart(probe); got != o.Start {
			err = fmt.Errorf("%w: start array resolves %#x to %#x, object starts at %#x",
				ErrVerify, probe, got, o.Start)
			return
		}
		if !g.starts.IsBlockAllocated(o.Start) {
			err = fmt.Errorf("%w: start array missing block allocation at %#x", ErrVerify, o.Start)
		}
	})
	return err
}
