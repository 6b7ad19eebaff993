package space

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/internal/workers"
	"github.com/joshuapare/heapkit/pkg/region"
)

const testAlign = 1 << 20

// fakeMemory records page operations against an in-memory word map so
// the space can be tested without a real mapping.
type fakeMemory struct {
	mu      sync.Mutex
	words   map[region.Addr]uint64
	touched map[region.Addr]bool
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{words: map[region.Addr]uint64{}, touched: map[region.Addr]bool{}}
}

func (m *fakeMemory) Fill(r region.Region, word uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for a := r.Start; a < r.End; a += region.WordSize {
		m.words[a] = word
	}
}

func (m *fakeMemory) Clear(r region.Region) { m.Fill(r, 0) }

func (m *fakeMemory) TouchWord(a region.Addr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched[a] = true
}

// TestInitializeClear tests that a clearing initialize resets the
// frontier and publishes the end.
func TestInitializeClear(t *testing.T) {
	s := New(testAlign)
	mr := region.New(0, 4<<20)
	s.Initialize(mr, SetupOptions{Clear: true, Mem: newFakeMemory()})

	assert.Equal(t, region.Addr(0), s.Bottom())
	assert.Equal(t, region.Addr(0), s.Top())
	assert.Equal(t, region.Addr(4<<20), s.End())
	assert.Equal(t, uint64(4<<20), s.CapacityBytes())
	assert.Equal(t, uint64(0), s.UsedBytes())
}

// TestInitializePreservesTopOnResize tests that a non-clearing
// initialize keeps the allocation frontier while moving end.
func TestInitializePreservesTopOnResize(t *testing.T) {
	s := New(testAlign)
	s.Initialize(region.New(0, 4<<20), SetupOptions{Clear: true})

	_, ok := s.CASAllocate(1024)
	require.True(t, ok)
	top := s.Top()

	s.Initialize(region.New(0, 8<<20), SetupOptions{})
	assert.Equal(t, top, s.Top(), "resize must not move top")
	assert.Equal(t, region.Addr(8<<20), s.End())
}

// TestInitializeMangle tests the mangled tail after setup.
func TestInitializeMangle(t *testing.T) {
	mem := newFakeMemory()
	s := New(testAlign)
	s.Initialize(region.New(0, 1<<20), SetupOptions{Clear: true, Mangle: true, Mem: mem})

	assert.Equal(t, MangleWord, mem.words[region.Addr(0)])
	assert.Equal(t, MangleWord, mem.words[region.Addr(1<<20-region.WordSize)])
}

// TestInitializePretouchTouchesNewPages tests that pretouch covers the
// newly added range at page stride.
func TestInitializePretouchTouchesNewPages(t *testing.T) {
	mem := newFakeMemory()
	s := New(testAlign)
	s.Initialize(region.New(0, 1<<20), SetupOptions{Clear: true, Mem: mem})

	s.Initialize(region.New(0, 2<<20), SetupOptions{
		Pretouch:  true,
		PageBytes: 4096,
		Gang:      workers.NewGang(4),
		Mem:       mem,
	})

	// Every page boundary in the new [1 MiB, 2 MiB) range gets touched.
	for a := region.Addr(1 << 20); a < 2<<20; a += 4096 {
		assert.True(t, mem.touched[a], "page at %#x should be pretouched", a)
	}
	// Pages below the old end are left to allocating threads.
	assert.False(t, mem.touched[region.Addr(0)])
}

// TestCASAllocate tests bump allocation limits and concurrency.
func TestCASAllocate(t *testing.T) {
	s := New(testAlign)
	s.Initialize(region.New(0, 1<<20), SetupOptions{Clear: true})

	a1, ok := s.CASAllocate(64)
	require.True(t, ok)
	a2, ok := s.CASAllocate(64)
	require.True(t, ok)
	assert.Equal(t, a1+64*region.WordSize, a2, "allocations should be adjacent")
	assert.Equal(t, uint64(128*region.WordSize), s.UsedBytes())

	// Larger than the remaining space must fail without moving top.
	_, ok = s.CASAllocate(1 << 20)
	assert.False(t, ok)
	assert.Equal(t, uint64(128*region.WordSize), s.UsedBytes())
}

// TestCASAllocateConcurrent tests that parallel allocators never hand
// out overlapping ranges.
func TestCASAllocateConcurrent(t *testing.T) {
	s := New(testAlign)
	s.Initialize(region.New(0, 8<<20), SetupOptions{Clear: true})

	const (
		goroutines = 8
		perG       = 1000
		words      = 16
	)
	results := make([][]region.Addr, goroutines)
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perG; i++ {
				a, ok := s.CASAllocate(words)
				if ok {
					results[g] = append(results[g], a)
				}
			}
		}(g)
	}
	wg.Wait()

	seen := map[region.Addr]bool{}
	total := 0
	for _, rs := range results {
		for _, a := range rs {
			require.False(t, seen[a], "allocation at %#x handed out twice", a)
			seen[a] = true
			total++
		}
	}
	assert.Equal(t, goroutines*perG, total, "8 MiB fits all requested allocations")
	assert.Equal(t, uint64(total*words*region.WordSize), s.UsedBytes())
}

// TestFreeWords tests the free-space accounting used by the
// expand-storm recheck.
func TestFreeWords(t *testing.T) {
	s := New(testAlign)
	s.Initialize(region.New(0, 1<<20), SetupOptions{Clear: true})
	assert.Equal(t, uint64(1<<20/region.WordSize), s.FreeWords())

	_, ok := s.CASAllocate(100)
	require.True(t, ok)
	assert.Equal(t, uint64(1<<20/region.WordSize-100), s.FreeWords())
}
