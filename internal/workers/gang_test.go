package workers

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGangRunsEveryWorker tests that Run invokes the task once per worker.
func TestGangRunsEveryWorker(t *testing.T) {
	g := NewGang(4)
	require.Equal(t, 4, g.Workers())

	var seen [4]atomic.Uint64
	g.Run(func(worker int) {
		seen[worker].Add(1)
	})

	for w := range seen {
		assert.Equal(t, uint64(1), seen[w].Load(), "worker %d should run exactly once", w)
	}
}

// TestGangClampsWorkerCount tests that non-positive sizes become one worker.
func TestGangClampsWorkerCount(t *testing.T) {
	assert.Equal(t, 1, NewGang(0).Workers())
	assert.Equal(t, 1, NewGang(-3).Workers())
}

// TestGangRunWaits tests that Run blocks until all workers complete.
func TestGangRunWaits(t *testing.T) {
	g := NewGang(8)
	var done atomic.Uint64
	g.Run(func(int) {
		done.Add(1)
	})
	assert.Equal(t, uint64(8), done.Load(), "Run returned before all workers finished")
}
