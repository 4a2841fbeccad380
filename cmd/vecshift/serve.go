package main

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
	"go.uber.org/zap"

	chiTransport "github.com/kailas-cloud/vecshift/internal/transport/chi"
	"github.com/kailas-cloud/vecshift/internal/version"
)

func newServeCmd(opts *globalOpts) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API. Migrations submitted over HTTP run in the background;
on shutdown in-flight runs are cancelled and rolled back before exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, logger, err := opts.bootstrap(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			cfg := a.Config
			if cmd.Flags().Changed("port") {
				cfg.HTTP.Port = port
			}

			logger.Info("Starting vecshift API server",
				zap.String("version", version.Version),
				zap.String("commit", version.Commit),
				zap.String("env", opts.env),
				zap.Int("http_port", cfg.HTTP.Port),
				zap.String("audit_driver", cfg.Audit.Driver),
				zap.Strings("cluster_addrs", cfg.Cluster.Addrs),
			)

			server := chiTransport.NewServer(a.Migrations, a.Health, logger)
			addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
			srv := &http.Server{
				Addr:              addr,
				Handler:           chiTransport.NewRouter(server, cfg.Auth.APIKeys, logger),
				ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
				ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
				WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Starting HTTP server", zap.String("addr", addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			var serveErr error
			select {
			case <-ctx.Done():
				logger.Info("Received shutdown signal")
			case serveErr = <-errCh:
				logger.Error("HTTP server error", zap.Error(serveErr))
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Error during shutdown", zap.Error(err))
			}
			if err := a.Close(shutdownCtx); err != nil {
				logger.Error("Error stopping migrations", zap.Error(err))
			}

			logger.Info("Server stopped gracefully")
			return serveErr
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides http.port)")
	return cmd
}
