package gen

import (
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"
)

// Config carries the tunables fixed at generation construction.
// The zero value is usable; withDefaults fills in the blanks.
type Config struct {
	// PageSize is the pretouch stride in bytes. Defaults to the system
	// page size. Must be a power of two.
	PageSize uint64

	// UseLargePages switches the pretouch stride to LargePageSize.
	UseLargePages bool

	// LargePageSize is the stride used with UseLargePages.
	// Defaults to 2 MiB.
	LargePageSize uint64

	// Workers is the parallel worker-thread count. It sizes the page
	// setup gang and bounds how far the pretouch wave runs ahead of
	// the allocation frontier. Defaults to GOMAXPROCS.
	Workers int

	// NUMANodeCount widens the minimum expansion so every NUMA group
	// receives at least one alignment unit per expand. Zero or one
	// disables the widening.
	NUMANodeCount int

	// MinHeapDelta is the smallest expansion the generation will
	// attempt, before alignment. Defaults to 128 KiB.
	MinHeapDelta uint64

	// AlwaysPretouch faults in all committed pages during resize
	// instead of leaving them to the cooperative pretouch wave.
	AlwaysPretouch bool

	// ZapUnused fills unallocated memory with a junk pattern so stale
	// reads fail loudly. Diagnostic; off by default.
	ZapUnused bool

	// ExpandDelay, when non-zero, sleeps after every
	// ExpandForAllocate. Diagnostic hook for exercising races between
	// expansion and allocation; not part of correctness.
	ExpandDelay time.Duration

	// Logger receives debug-level sizing activity. Defaults to a
	// discard logger.
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.PageSize == 0 {
		c.PageSize = uint64(os.Getpagesize())
	}
	if c.LargePageSize == 0 {
		c.LargePageSize = 2 << 20
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.MinHeapDelta == 0 {
		c.MinHeapDelta = 128 << 10
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}
