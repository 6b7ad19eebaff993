package gen

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/joshuapare/heapkit/gen/card"
	"github.com/joshuapare/heapkit/gen/space"
	"github.com/joshuapare/heapkit/gen/startarr"
	"github.com/joshuapare/heapkit/internal/align"
	"github.com/joshuapare/heapkit/internal/vspace"
	"github.com/joshuapare/heapkit/internal/workers"
	"github.com/joshuapare/heapkit/pkg/region"
)

// MinObjectWords is the smallest allocatable object: one size header
// word plus at least one payload word. The start-array verification
// probes one word past each object start, which requires every object
// to span at least two words.
const MinObjectWords = 2

// Generation is the old (tenured) generation: a reserved address
// range, its committed object space, and the coverage side-structures
// that must track the space's boundaries across every resize.
type Generation struct {
	name string
	cfg  Config
	log  *slog.Logger

	vs     *vspace.Space
	object *space.Space
	starts *startarr.Array
	cards  *card.Table
	gang   *workers.Gang

	minGenSize uint64
	maxGenSize uint64

	// expandLock serializes all resize activity. The lower-level grow
	// and shrink paths take a resizePermit minted while it is held.
	expandLock sync.Mutex

	pretouchNext        atomic.Uint64
	pretouchStrideWords uint64
	pretouchLimitWords  uint64

	counters counters
}

// New constructs a generation reserving max bytes of address space and
// committing initial bytes up front. All three sizes must be multiples
// of alignment, with min <= initial <= max; alignment must be a
// power-of-two multiple of the system page size. A failed initial
// commit is fatal to construction.
func New(name string, initial, min, max, alignment uint64, cfg Config) (*Generation, error) {
	cfg = cfg.withDefaults()
	if !align.IsPowerOfTwo(alignment) {
		return nil, fmt.Errorf("%w: alignment %d", ErrUnalignedSize, alignment)
	}
	for _, v := range [...]uint64{initial, min, max} {
		if !align.IsAligned(v, alignment) {
			return nil, fmt.Errorf("%w: size %d (alignment %d)", ErrUnalignedSize, v, alignment)
		}
	}
	if max == 0 || min > max || initial < min || initial > max {
		return nil, fmt.Errorf("%w: min %d initial %d max %d", ErrInvalidBounds, min, initial, max)
	}

	g := &Generation{
		name:       name,
		cfg:        cfg,
		log:        cfg.Logger,
		minGenSize: min,
		maxGenSize: max,
		gang:       workers.NewGang(cfg.Workers),
	}
	if err := g.initializeAllocationPretouch(); err != nil {
		return nil, err
	}
	// The pretouch cursor only ever lands on stride boundaries or the
	// committed end; that holds only if resize moves the end in whole
	// strides.
	if !align.IsAligned(alignment, g.pretouchStrideBytes()) {
		return nil, fmt.Errorf("%w: alignment %d not a multiple of pretouch stride %d",
			ErrUnalignedSize, alignment, g.pretouchStrideBytes())
	}
	if err := g.initializeVirtualSpace(initial, max, alignment); err != nil {
		return nil, err
	}
	g.initializeWork()
	return g, nil
}

func (g *Generation) initializeVirtualSpace(initial, max, alignment uint64) error {
	vs, err := vspace.Reserve(max, alignment)
	if err != nil {
		return err
	}
	if !vs.ExpandBy(initial) {
		_ = vs.Release()
		return fmt.Errorf("%w: %d bytes", ErrInitialCommit, initial)
	}
	g.vs = vs
	return nil
}

// initializeWork wires the coverage structures and the object space
// over the freshly committed range. The start array and the card
// table span the reserved limit so later expansion never reallocates
// them; both declare only the committed range covered.
func (g *Generation) initializeWork() {
	limit := region.New(g.vs.LowBoundary(), g.vs.HighBoundary())
	committed := g.vs.CommittedRegion()

	g.starts = startarr.New(limit, g.objectSizeAt)
	g.starts.SetCoveredRegion(committed)

	g.cards = card.New(limit)
	g.cards.ResizeCoveredRegion(committed)

	// Same order as postResize: coverage first, then the object space
	// publishing the end.
	g.object = space.New(g.vs.Alignment())
	g.object.Initialize(committed, space.SetupOptions{
		Clear:     true,
		Mangle:    g.cfg.ZapUnused,
		Pretouch:  g.cfg.AlwaysPretouch,
		PageBytes: g.pretouchStrideBytes(),
		Gang:      g.gang,
		Mem:       g.vs,
	})

	if g.cfg.AlwaysPretouch {
		// The space setup already faulted everything in.
		g.pretouchNext.Store(uint64(committed.End))
	}
}

// objectSizeAt reads an object's self-reported size header.
func (g *Generation) objectSizeAt(a region.Addr) uint64 {
	words := g.vs.WordAt(a)
	if words < MinObjectWords || words > g.maxGenSize/region.WordSize {
		panic(fmt.Sprintf("gen: corrupt object header at %#x: %d words", a, words))
	}
	return words
}

// AllocateWords claims words of space at the allocation frontier,
// writes the object's size header, records it in the start array, and
// drives the cooperative pretouch wave. Returns false when the space
// between top and end is too small; the caller decides whether to
// expand (see Allocate) or fail.
func (g *Generation) AllocateWords(words uint64) (region.Addr, bool) {
	if words < MinObjectWords {
		panic("gen: allocation below minimum object size")
	}
	addr, ok := g.object.CASAllocate(words)
	if !ok {
		return 0, false
	}
	g.vs.SetWordAt(addr, words)
	g.starts.AllocateBlock(addr, words)
	g.PretouchDuringAllocation(addr, words)
	return addr, true
}

// Allocate claims words of space, growing the generation as needed.
// Returns false only when the generation cannot expand far enough.
func (g *Generation) Allocate(words uint64) (region.Addr, bool) {
	for {
		if addr, ok := g.AllocateWords(words); ok {
			return addr, true
		}
		if !g.ExpandForAllocate(words) {
			return 0, false
		}
		// Expansion succeeded or another thread expanded for us;
		// either way the frontier may have room now.
	}
}

// IsAllocated reports whether the generation holds a live reservation.
func (g *Generation) IsAllocated() bool {
	return g.vs != nil && g.vs.ReservedSize() != 0
}

// Release unmaps the generation's reservation. Only valid once no
// other operation can run; part of whole-heap teardown.
func (g *Generation) Release() error {
	if g.vs == nil {
		return nil
	}
	err := g.vs.Release()
	g.vs = nil
	return err
}

// Name returns the generation's diagnostic name.
func (g *Generation) Name() string { return g.name }

// MinSize returns the smallest committed size the generation may take.
func (g *Generation) MinSize() uint64 { return g.minGenSize }

// MaxSize returns the largest committed size the generation may take.
func (g *Generation) MaxSize() uint64 { return g.maxGenSize }

// ReservedBytes returns the size of the reserved address range.
func (g *Generation) ReservedBytes() uint64 { return g.vs.ReservedSize() }

// CapacityBytes returns the committed size.
func (g *Generation) CapacityBytes() uint64 { return g.vs.CommittedSize() }

// UsedBytes returns the allocated byte count.
func (g *Generation) UsedBytes() uint64 { return g.object.UsedBytes() }

// FreeBytes returns the unallocated committed byte count.
func (g *Generation) FreeBytes() uint64 {
	return g.object.FreeWords() * region.WordSize
}

// Bottom returns the low boundary of the object space.
func (g *Generation) Bottom() region.Addr { return g.object.Bottom() }

// Top returns the allocation frontier.
func (g *Generation) Top() region.Addr { return g.object.Top() }

// End returns the committed high boundary visible to allocators.
func (g *Generation) End() region.Addr { return g.object.End() }

// CardTable exposes the generation's card table.
func (g *Generation) CardTable() *card.Table { return g.cards }

// StartArray exposes the generation's object-start array.
func (g *Generation) StartArray() *startarr.Array { return g.starts }
