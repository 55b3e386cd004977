package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var batchFlags struct {
	maxSubscribers int
	concurrency    int
	rate           float64
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Resolve LinkedIn URLs for all pending subscribers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("batch"); err != nil {
			return err
		}
		if batchFlags.concurrency > 0 {
			cfg.Batch.MaxConcurrent = batchFlags.concurrency
		}
		if batchFlags.rate > 0 {
			cfg.Batch.RatePerSecond = batchFlags.rate
		}

		env := &appEnv{}
		if err := env.initLookup(cmd.Context()); err != nil {
			return err
		}
		defer env.Close()

		summary, err := env.newBatchProcessor(batchFlags.maxSubscribers).Run(cmd.Context())
		if summary != nil {
			out, merr := json.MarshalIndent(summary, "", "  ")
			if merr == nil {
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
			}
		}
		return err
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchFlags.maxSubscribers, "limit", 0, "stop after this many subscribers (0 = drain the queue)")
	batchCmd.Flags().IntVar(&batchFlags.concurrency, "concurrency", 0, "override batch.max_concurrent")
	batchCmd.Flags().Float64Var(&batchFlags.rate, "rate", 0, "override batch.rate_per_second")
	rootCmd.AddCommand(batchCmd)
}
