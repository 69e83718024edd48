package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guiyumin/streamdl/internal/core/config"
	"github.com/guiyumin/streamdl/internal/core/downloader"
	"github.com/guiyumin/streamdl/internal/core/logging"
	"github.com/guiyumin/streamdl/internal/server"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on")
	config.BindFlag("server.port", serveCmd.Flags().Lookup("port"))
	serveCmd.Flags().String("api-key", "", "Protect /api/* with this key")
	config.BindFlag("server.api_key", serveCmd.Flags().Lookup("api-key"))
	serveCmd.Flags().Bool("stream", false, "Stream media through the server instead of redirecting")
	config.BindFlag("stream", serveCmd.Flags().Lookup("stream"))
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web front-end",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	log := logging.Component("serve")
	srv := server.NewServer(cfg, downloader.New(cfg.Downloader))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Start()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
