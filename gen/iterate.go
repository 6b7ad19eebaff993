package gen

import (
	"fmt"

	"github.com/joshuapare/heapkit/gen/startarr"
	"github.com/joshuapare/heapkit/pkg/region"
)

// IterateBlockBytes is the partition size for parallel object
// iteration. Each block is scanned independently; an object straddling
// a block boundary is visited only from the block holding its start.
const IterateBlockBytes = 1 << 20

// Object is a live object yielded by iteration.
type Object struct {
	Start region.Addr
	Words uint64
}

// ObjectVisitor receives each live object exactly once per scan.
type ObjectVisitor func(Object)

// NumIterableBlocks returns how many blocks cover the used part of the
// generation. Valid block indexes for IterateBlock are [0, n).
func (g *Generation) NumIterableBlocks() uint64 {
	return (g.UsedBytes() + IterateBlockBytes - 1) / IterateBlockBytes
}

// IterateBlock visits every object whose start lies within block
// index. Safe to call from parallel workers on distinct indexes, but
// not concurrently with allocation or resize; whole-generation scans
// run at a global synchronization point.
func (g *Generation) IterateBlock(visit ObjectVisitor, index uint64) {
	if IterateBlockBytes%startarr.BlockBytes != 0 {
		panic("gen: iterate block size not a multiple of the start-array block")
	}

	begin := g.object.Bottom() + region.Addr(index*IterateBlockBytes)
	end := begin + IterateBlockBytes
	if top := g.object.Top(); top < end {
		end = top
	}
	if end <= begin {
		return
	}

	if !g.starts.ObjectStartsInRange(begin, end) {
		return
	}

	// Get the object starting at or reaching into this block; a
	// straddler from the previous block is skipped, its own block
	// already visits it.
	start := g.starts.ObjectStart(begin)
	if start < begin {
		start += region.Addr(g.objectSizeAt(start) * region.WordSize)
	}
	if start < begin {
		panic(fmt.Sprintf("gen: object start %#x below block begin %#x after adjustment", start, begin))
	}

	for p := start; p < end; {
		words := g.objectSizeAt(p)
		visit(Object{Start: p, Words: words})
		p += region.Addr(words * region.WordSize)
	}
}

// IterateObjects visits every live object in the generation once, in
// address order, by walking all iterable blocks.
func (g *Generation) IterateObjects(visit ObjectVisitor) {
	for i := uint64(0); i < g.NumIterableBlocks(); i++ {
		g.IterateBlock(visit, i)
	}
}
