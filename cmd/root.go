package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "nbo-linkedin-api",
	Short: "LinkedIn profile resolution for newsletter subscribers",
	Long:  "Resolves subscriber emails to LinkedIn profile URLs via search and RocketReach, and scrapes profiles through a cookie-pool rate-limited Apify actor.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
