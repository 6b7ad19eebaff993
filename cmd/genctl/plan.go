package main

import (
	"fmt"
	"strconv"

	"github.com/joshuapare/heapkit/gen"
	"github.com/spf13/cobra"
)

var (
	planUsedMiB uint64
)

func init() {
	cmd := newPlanCmd()
	cmd.Flags().Uint64Var(&planUsedMiB, "used", 0, "Currently used size in MiB")
	cmd.Flags().Uint64Var(&minMiB, "min", 8, "Minimum committed size in MiB")
	cmd.Flags().Uint64Var(&maxMiB, "max", 64, "Maximum committed size in MiB")
	cmd.Flags().Uint64Var(&alignMiB, "align", 1, "Commit alignment in MiB")
	rootCmd.AddCommand(cmd)
}

func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan <desired-free-mib>",
		Short: "Compute the committed size a resize would target",
		Long: `The plan command runs the sizing arithmetic without building a heap:
given used space and a desired free space, it reports the committed
size a resize would settle on after clamping and alignment.

Example:
  genctl plan 30
  genctl plan 30 --used 12 --min 8 --max 64`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(args)
		},
	}
}

type planResult struct {
	UsedBytes        uint64 `json:"used_bytes"`
	DesiredFreeBytes uint64 `json:"desired_free_bytes"`
	MinBytes         uint64 `json:"min_bytes"`
	MaxBytes         uint64 `json:"max_bytes"`
	AlignmentBytes   uint64 `json:"alignment_bytes"`
	PlannedBytes     uint64 `json:"planned_bytes"`
}

func runPlan(args []string) error {
	desiredMiB, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid desired free size %q: %w", args[0], err)
	}

	r := planResult{
		UsedBytes:        planUsedMiB * mib,
		DesiredFreeBytes: desiredMiB * mib,
		MinBytes:         minMiB * mib,
		MaxBytes:         maxMiB * mib,
		AlignmentBytes:   alignMiB * mib,
	}
	r.PlannedBytes = gen.PlanSize(r.UsedBytes, r.DesiredFreeBytes, r.MinBytes, r.MaxBytes, r.AlignmentBytes)

	if jsonOut {
		return printJSON(r)
	}
	printInfo("used %d MiB + desired free %d MiB -> commit %d MiB (min %d, max %d, align %d)\n",
		planUsedMiB, desiredMiB, r.PlannedBytes/mib, minMiB, maxMiB, alignMiB)
	return nil
}
