package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joshuapare/heapkit/gen"
	"github.com/spf13/cobra"
)

const mib = 1 << 20

var (
	// Generation geometry, shared by the commands that build a heap.
	initialMiB uint64
	minMiB     uint64
	maxMiB     uint64
	alignMiB   uint64
	workerN    int
	pretouch   bool
	zapUnused  bool

	expandDelay time.Duration
)

func addGeometryFlags(cmd *cobra.Command) {
	cmd.Flags().Uint64Var(&initialMiB, "initial", 16, "Initial committed size in MiB")
	cmd.Flags().Uint64Var(&minMiB, "min", 8, "Minimum committed size in MiB")
	cmd.Flags().Uint64Var(&maxMiB, "max", 64, "Maximum (reserved) size in MiB")
	cmd.Flags().Uint64Var(&alignMiB, "align", 1, "Commit alignment in MiB")
	cmd.Flags().IntVar(&workerN, "workers", 0, "Parallel workers (0 = GOMAXPROCS)")
	cmd.Flags().BoolVar(&pretouch, "pretouch", false, "Fault in all committed pages on resize")
	cmd.Flags().BoolVar(&zapUnused, "zap", false, "Fill unallocated memory with a junk pattern")
}

// buildGeneration constructs a heap from the geometry flags.
func buildGeneration(name string) (*gen.Generation, error) {
	cfg := gen.Config{
		Workers:        workerN,
		AlwaysPretouch: pretouch,
		ZapUnused:      zapUnused,
		ExpandDelay:    expandDelay,
	}
	if verbose {
		cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	printVerbose("Building %s: initial %d MiB, min %d MiB, max %d MiB, align %d MiB\n",
		name, initialMiB, minMiB, maxMiB, alignMiB)
	g, err := gen.New(name, initialMiB*mib, minMiB*mib, maxMiB*mib, alignMiB*mib, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build generation: %w", err)
	}
	return g, nil
}
