package region

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestRegionSizes checks byte and word lengths of half-open ranges.
func TestRegionSizes(t *testing.T) {
	r := New(64, 192)
	assert.Equal(t, uint64(128), r.ByteSize())
	assert.Equal(t, uint64(16), r.WordCount())
	assert.False(t, r.IsEmpty())
	assert.True(t, New(64, 64).IsEmpty())
}

// TestRegionContains checks half-open membership at the boundaries.
func TestRegionContains(t *testing.T) {
	r := New(100, 200)
	assert.True(t, r.Contains(100))
	assert.True(t, r.Contains(199))
	assert.False(t, r.Contains(200))
	assert.False(t, r.Contains(99))

	assert.True(t, r.ContainsRegion(New(100, 200)))
	assert.True(t, r.ContainsRegion(New(150, 160)))
	assert.False(t, r.ContainsRegion(New(90, 160)))
	assert.False(t, r.ContainsRegion(New(150, 210)))
}

// TestRegionEquals compares ranges by both boundaries.
func TestRegionEquals(t *testing.T) {
	assert.True(t, New(1, 2).Equals(New(1, 2)))
	assert.False(t, New(1, 2).Equals(New(1, 3)))
}

// TestNewPanicsOnBackwardsRange rejects end before start.
func TestNewPanicsOnBackwardsRange(t *testing.T) {
	assert.Panics(t, func() { New(2, 1) })
}
