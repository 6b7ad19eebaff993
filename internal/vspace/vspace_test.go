package vspace

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/pkg/region"
)

const testAlign = 1 << 20 // 1 MiB, a multiple of every sane page size

func reserveForTest(t *testing.T, size uint64) *Space {
	t.Helper()
	s, err := Reserve(size, testAlign)
	require.NoError(t, err, "Reserve should succeed")
	t.Cleanup(func() { _ = s.Release() })
	return s
}

// TestReserveValidation tests rejection of bad sizes and alignments.
func TestReserveValidation(t *testing.T) {
	_, err := Reserve(8<<20, 3<<20) // not a power of two
	assert.ErrorIs(t, err, ErrBadAlignment)

	_, err = Reserve(0, testAlign)
	assert.ErrorIs(t, err, ErrBadAlignment)

	_, err = Reserve(testAlign+4096, testAlign) // size not aligned
	assert.ErrorIs(t, err, ErrBadAlignment)
}

// TestExpandAndShrink tests the committed frontier bookkeeping.
func TestExpandAndShrink(t *testing.T) {
	s := reserveForTest(t, 16<<20)
	assert.Equal(t, uint64(0), s.CommittedSize())
	assert.Equal(t, uint64(16<<20), s.UncommittedSize())

	require.True(t, s.ExpandBy(4<<20), "ExpandBy within the reservation should succeed")
	assert.Equal(t, uint64(4<<20), s.CommittedSize())
	assert.Equal(t, uint64(12<<20), s.UncommittedSize())
	assert.Equal(t, region.Addr(4<<20), s.High())

	s.ShrinkBy(2 << 20)
	assert.Equal(t, uint64(2<<20), s.CommittedSize())

	// Beyond the reservation must fail without moving the frontier.
	assert.False(t, s.ExpandBy(15<<20))
	assert.Equal(t, uint64(2<<20), s.CommittedSize())

	// Unaligned amounts are rejected.
	assert.False(t, s.ExpandBy(4096))
}

// TestWordAccessors tests atomic word reads and writes on committed memory.
func TestWordAccessors(t *testing.T) {
	s := reserveForTest(t, 4<<20)
	require.True(t, s.ExpandBy(1<<20))

	s.SetWordAt(0, 42)
	s.SetWordAt(8, 0xBAADBABEBAADBABE)
	assert.Equal(t, uint64(42), s.WordAt(0))
	assert.Equal(t, uint64(0xBAADBABEBAADBABE), s.WordAt(8))

	// Touch must not change contents.
	s.TouchWord(8)
	assert.Equal(t, uint64(0xBAADBABEBAADBABE), s.WordAt(8))
}

// TestRecommitReadsZero tests that memory uncommitted and committed
// again comes back zero-filled.
func TestRecommitReadsZero(t *testing.T) {
	s := reserveForTest(t, 4<<20)
	require.True(t, s.ExpandBy(2<<20))

	addr := region.Addr(1<<20 + 64)
	s.SetWordAt(addr, 7)
	s.ShrinkBy(1 << 20)
	require.True(t, s.ExpandBy(1<<20))
	assert.Equal(t, uint64(0), s.WordAt(addr), "recommitted memory must read as zero")
}

// TestFillAndClear tests the mangle/clear helpers.
func TestFillAndClear(t *testing.T) {
	s := reserveForTest(t, 2<<20)
	require.True(t, s.ExpandBy(1<<20))

	r := region.New(0, 256)
	s.Fill(r, 0xDEADDEADDEADDEAD)
	for a := r.Start; a < r.End; a += region.WordSize {
		require.Equal(t, uint64(0xDEADDEADDEADDEAD), s.WordAt(a))
	}
	s.Clear(r)
	for a := r.Start; a < r.End; a += region.WordSize {
		require.Equal(t, uint64(0), s.WordAt(a))
	}
}

// TestWordAccessDuringExpand tests that the word accessors stay safe
// while the committed frontier advances under them, the window opened
// by expand-on-allocate.
func TestWordAccessDuringExpand(t *testing.T) {
	s := reserveForTest(t, 16<<20)
	require.True(t, s.ExpandBy(1<<20))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := region.Addr(0); ; i = (i + region.WordSize) % (1 << 20) {
			select {
			case <-stop:
				return
			default:
			}
			s.SetWordAt(i, uint64(i))
			s.TouchWord(i)
			_ = s.WordAt(i)
		}
	}()

	for s.UncommittedSize() > 0 {
		require.True(t, s.ExpandBy(1<<20))
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, uint64(16<<20), s.CommittedSize())
}

// TestAccessBeyondCommittedPanics tests that the word accessors refuse
// to reach past the committed frontier.
func TestAccessBeyondCommittedPanics(t *testing.T) {
	s := reserveForTest(t, 2<<20)
	require.True(t, s.ExpandBy(1<<20))

	assert.Panics(t, func() { s.WordAt(region.Addr(1 << 20)) })
	assert.Panics(t, func() { s.WordAt(3) }, "misaligned access should panic")
}
