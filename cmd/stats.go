package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show subscriber LinkedIn-URL coverage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env := &appEnv{}
		if err := env.initStore(cmd.Context()); err != nil {
			return err
		}
		defer env.Close()

		stats, err := env.store.SubscriberStats(cmd.Context())
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env := &appEnv{}
		if err := env.initStore(cmd.Context()); err != nil {
			return err
		}
		defer env.Close()
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(migrateCmd)
}
