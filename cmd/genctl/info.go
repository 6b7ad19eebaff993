package main

import (
	"os"

	"github.com/spf13/cobra"
)

func init() {
	cmd := newInfoCmd()
	addGeometryFlags(cmd)
	rootCmd.AddCommand(cmd)
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show a generation's derived parameters",
		Long: `The info command builds a generation from the geometry flags and
reports its derived parameters: reserved and committed sizes and the
boundary addresses.

Example:
  genctl info
  genctl info --initial 32 --max 128 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo()
		},
	}
}

func runInfo() error {
	g, err := buildGeneration("old")
	if err != nil {
		return err
	}
	defer g.Release()

	if jsonOut {
		return printJSON(g.Stats())
	}
	g.PrintOn(os.Stdout)
	return nil
}
