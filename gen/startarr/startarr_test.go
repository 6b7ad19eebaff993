package startarr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/pkg/region"
)

// testHeap lays out self-sizing objects in a map so the array can be
// exercised without real memory behind it.
type testHeap struct {
	sizes map[region.Addr]uint64 // object start -> size in words
}

func newTestHeap() *testHeap {
	return &testHeap{sizes: map[region.Addr]uint64{}}
}

func (h *testHeap) sizer() Sizer {
	return func(a region.Addr) uint64 {
		words, ok := h.sizes[a]
		if !ok {
			panic("test heap: size read at a non-start address")
		}
		return words
	}
}

// place records an object and registers it with the array.
func (h *testHeap) place(a *Array, start region.Addr, words uint64) {
	h.sizes[start] = words
	a.AllocateBlock(start, words)
}

func newTestArray(t *testing.T, h *testHeap, coveredBytes uint64) *Array {
	t.Helper()
	a := New(region.New(0, 1<<20), h.sizer())
	a.SetCoveredRegion(region.New(0, region.Addr(coveredBytes)))
	return a
}

// TestObjectStartExactAndInterior tests lookups at starts and interior
// addresses of small objects.
func TestObjectStartExactAndInterior(t *testing.T) {
	h := newTestHeap()
	a := newTestArray(t, h, 64<<10)

	// Three adjacent objects from the bottom: 10, 100, 20 words.
	h.place(a, 0, 10)
	h.place(a, 10*region.WordSize, 100)
	h.place(a, 110*region.WordSize, 20)

	assert.Equal(t, region.Addr(0), a.ObjectStart(0))
	assert.Equal(t, region.Addr(0), a.ObjectStart(9*region.WordSize))
	assert.Equal(t, region.Addr(10*region.WordSize), a.ObjectStart(10*region.WordSize))
	assert.Equal(t, region.Addr(10*region.WordSize), a.ObjectStart(109*region.WordSize))
	assert.Equal(t, region.Addr(110*region.WordSize), a.ObjectStart(129*region.WordSize))
}

// TestObjectStartAcrossBlocks tests an object spanning several
// 512-byte blocks resolving from every covered block.
func TestObjectStartAcrossBlocks(t *testing.T) {
	h := newTestHeap()
	a := newTestArray(t, h, 64<<10)

	// One 300-word (2400-byte) object covering blocks 0..4, then a
	// small one behind it.
	h.place(a, 0, 300)
	h.place(a, 300*region.WordSize, 4)

	for _, addr := range []region.Addr{0, 512, 1024, 2048, 2399 &^ 7} {
		assert.Equal(t, region.Addr(0), a.ObjectStart(addr), "addr %#x", addr)
	}
	assert.Equal(t, region.Addr(300*region.WordSize), a.ObjectStart(300*region.WordSize))
}

// TestIsBlockAllocated tests the allocated-block predicate.
func TestIsBlockAllocated(t *testing.T) {
	h := newTestHeap()
	a := newTestArray(t, h, 64<<10)

	assert.False(t, a.IsBlockAllocated(0), "virgin block is unallocated")
	h.place(a, 0, 64) // exactly one block
	assert.True(t, a.IsBlockAllocated(0))
	assert.True(t, a.IsBlockAllocated(511))
	assert.False(t, a.IsBlockAllocated(512), "next block untouched")
	assert.False(t, a.IsBlockAllocated(1<<20), "outside covered region")
}

// TestObjectStartsInRange tests start detection including the
// straddling-object case.
func TestObjectStartsInRange(t *testing.T) {
	h := newTestHeap()
	a := newTestArray(t, h, 64<<10)

	h.place(a, 0, 200)                    // [0, 1600)
	h.place(a, 200*region.WordSize, 1000) // [1600, 9600)

	assert.True(t, a.ObjectStartsInRange(0, 512))
	assert.True(t, a.ObjectStartsInRange(1024, 2048), "second object starts at 1600")
	assert.False(t, a.ObjectStartsInRange(2048, 4096), "only the straddler covers this range")
	assert.False(t, a.ObjectStartsInRange(512, 512), "empty range")
}

// TestSetCoveredRegionShrinkInvalidates tests that shrinking coverage
// drops entries so a later expand starts clean.
func TestSetCoveredRegionShrinkInvalidates(t *testing.T) {
	h := newTestHeap()
	a := newTestArray(t, h, 64<<10)

	h.place(a, 0, 64)
	h.place(a, region.Addr(32<<10), 64)
	require.True(t, a.IsBlockAllocated(32<<10))

	a.SetCoveredRegion(region.New(0, 16<<10))
	assert.False(t, a.IsBlockAllocated(32<<10), "entry beyond the shrunk coverage must be dropped")

	a.SetCoveredRegion(region.New(0, 64<<10))
	assert.False(t, a.IsBlockAllocated(32<<10), "re-expanded coverage starts unallocated")
	assert.True(t, a.IsBlockAllocated(0), "entries below the shrink point survive")
}

// TestAllocateBlockOutsideCoveragePanics tests the coverage invariant.
func TestAllocateBlockOutsideCoveragePanics(t *testing.T) {
	h := newTestHeap()
	a := newTestArray(t, h, 4<<10)

	assert.Panics(t, func() { a.AllocateBlock(region.Addr(8<<10), 8) })
	assert.Panics(t, func() { a.AllocateBlock(region.Addr(4<<10-64), 64) }, "object running past coverage")
}

// TestObjectStartOnVirginBlockPanics tests that probing unreached
// memory is treated as a caller bug.
func TestObjectStartOnVirginBlockPanics(t *testing.T) {
	h := newTestHeap()
	a := newTestArray(t, h, 4<<10)
	assert.Panics(t, func() { a.ObjectStart(1024) })
}
