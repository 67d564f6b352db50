package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/terraconstructs/classgrid/internal/app"
)

var autoMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the session service",
	Long: `Starts the session reconciler and serves the current session, login/logout
and a server-sent session stream over HTTP, plus role-gated scheduling routes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := []app.Option{app.WithTelemetry()}
		if autoMigrate {
			opts = append(opts, app.WithAutoMigrate())
		}
		a, err := app.New(cmd.Context(), cfg, opts...)
		if err != nil {
			return err
		}
		defer a.Close()

		srv := &http.Server{
			Addr:        cfg.ServerAddr,
			Handler:     a.Handler(),
			ReadTimeout: 15 * time.Second,
			// No write timeout: /session/events streams for the life of the client.
			IdleTimeout: 60 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			log.Printf("Starting server on %s", cfg.ServerAddr)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)
		case sig := <-shutdown:
			log.Printf("Received signal %v, shutting down gracefully", sig)

			// Closing the reconciler first ends open session streams.
			if err := a.Reconciler.Close(); err != nil {
				log.Printf("Warning: reconciler close: %v", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}

			log.Printf("Server stopped")
			return nil
		}
	},
}

func init() {
	serveCmd.Flags().BoolVar(&autoMigrate, "migrate", false, "Apply pending database migrations on start")
	rootCmd.AddCommand(serveCmd)
}
