package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the lookup and scraper HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env := &appEnv{}
		if err := env.initLookup(ctx); err != nil {
			return err
		}
		if err := env.initScraper(ctx); err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := server.New(server.Config{
			Port:   port,
			APIKey: cfg.Server.APIKey,
		}, server.Deps{
			Lookup:  env.orchestrator,
			Scraper: env.scraper,
			Usage:   env.tracker,
			Stats:   env.store,
		})

		go func() {
			<-ctx.Done()
			srv.Shutdown(context.Background())
		}()

		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
