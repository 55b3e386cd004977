package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/ratelimit"
)

var poolsCmd = &cobra.Command{
	Use:   "pools",
	Short: "Show daily cookie pool usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env := &appEnv{}
		if err := env.initScraper(cmd.Context()); err != nil {
			return err
		}
		defer env.Close()

		stats, err := env.tracker.Stats(cmd.Context())
		if err != nil {
			return err
		}

		names := make([]string, 0, len(stats))
		for name := range stats {
			names = append(names, name)
		}
		sort.Strings(names)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "POOL\tUSED\tLIMIT\tREMAINING\tUSED%")
		for _, name := range names {
			s := stats[name]
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.1f%%\n",
				name, s.Used, s.Limit, s.Remaining, s.UsedPercent)
		}
		fmt.Fprintf(w, "\nUsage resets at %s\n", ratelimit.ResetTime)
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(poolsCmd)
}
