package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/model"
)

var lookupFlags struct {
	firstName string
	lastName  string
	city      string
	state     string
	country   string
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <email>",
	Short: "Resolve an email to a LinkedIn profile URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env := &appEnv{}
		if err := env.initLookup(cmd.Context()); err != nil {
			return err
		}
		defer env.Close()

		res := env.orchestrator.Lookup(cmd.Context(), model.LookupRequest{
			Email:     args[0],
			FirstName: lookupFlags.firstName,
			LastName:  lookupFlags.lastName,
			City:      lookupFlags.city,
			State:     lookupFlags.state,
			Country:   lookupFlags.country,
		})

		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	lookupCmd.Flags().StringVar(&lookupFlags.firstName, "first-name", "", "first name hint")
	lookupCmd.Flags().StringVar(&lookupFlags.lastName, "last-name", "", "last name hint")
	lookupCmd.Flags().StringVar(&lookupFlags.city, "city", "", "city hint")
	lookupCmd.Flags().StringVar(&lookupFlags.state, "state", "", "state hint")
	lookupCmd.Flags().StringVar(&lookupFlags.country, "country", "", "country hint")
	rootCmd.AddCommand(lookupCmd)
}
