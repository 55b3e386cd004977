package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/ratelimit"
)

var (
	scrapePool string
	scrapeFile string
)

// readURLFile reads one URL per line, skipping blanks and # comments.
func readURLFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var urls []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, nil
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [linkedin-url...]",
	Short: "Scrape LinkedIn profiles through the actor",
	Long:  "Scrapes one profile, or runs a bulk scrape when more than one URL is given (as arguments or via --file). Usage is charged against the selected cookie pool.",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && scrapeFile == "" {
			return fmt.Errorf("requires at least one URL or --file")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		urls := args
		if scrapeFile != "" {
			fromFile, err := readURLFile(scrapeFile)
			if err != nil {
				return err
			}
			urls = append(urls, fromFile...)
		}
		if len(urls) == 0 {
			return fmt.Errorf("no URLs to scrape")
		}

		env := &appEnv{}
		if err := env.initScraper(cmd.Context()); err != nil {
			return err
		}
		defer env.Close()

		var result any
		if len(urls) == 1 {
			result = env.scraper.Scrape(cmd.Context(), urls[0], scrapePool)
		} else {
			result = env.scraper.ScrapeBulk(cmd.Context(), urls, scrapePool)
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapePool, "pool", ratelimit.DefaultPools[0], "cookie pool to charge")
	scrapeCmd.Flags().StringVar(&scrapeFile, "file", "", "file with one LinkedIn URL per line")
	rootCmd.AddCommand(scrapeCmd)
}
