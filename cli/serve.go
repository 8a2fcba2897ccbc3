package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/xiaoyuanzhu-com/hound/api"
	"github.com/xiaoyuanzhu-com/hound/config"
	"github.com/xiaoyuanzhu-com/hound/log"
	"github.com/xiaoyuanzhu-com/hound/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Run the HTTP API: agent chat, proposals, settings, webhooks and the
notification stream. Background workers process webhook messages until the
process receives SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := server.NewConfig(config.Get())
		if servePort > 0 {
			cfg.Port = servePort
		}

		srv, err := server.New(cfg, server.Options{Version: appVersion})
		if err != nil {
			return fmt.Errorf("initializing server: %w", err)
		}

		// Setup API routes
		api.SetupRoutes(srv.Router(), api.NewHandlers(srv))

		errCh := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		// Graceful shutdown
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		var serveErr error
		select {
		case <-quit:
		case serveErr = <-errCh:
			if serveErr != nil {
				log.Error().Err(serveErr).Msg("server error")
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return err
		}
		return serveErr
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}
