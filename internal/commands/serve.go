package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/fpa/internal/config"
	"github.com/cleared-dev/fpa/internal/insights"
	"github.com/cleared-dev/fpa/internal/logging"
	"github.com/cleared-dev/fpa/internal/metrics"
	"github.com/cleared-dev/fpa/internal/web"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web app",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, nil)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")

	return cmd
}

// runServe blocks until ctx is done, then shuts the server down gracefully.
// When ready is non-nil it receives the bound address once listening.
func runServe(ctx context.Context, cfg *config.Config, ready chan<- string) error {
	logger := logging.New(cfg.Logging, os.Stderr)

	key, source, err := resolveAPIKey(cfg)
	if err != nil {
		return err
	}
	logger.Info("credential resolved", slog.String("key", cfg.AI.KeyName), slog.String("source", source))

	m := metrics.New()
	analyst := insights.NewAnalyst(insights.NewClient(cfg.AI, key), logger, m)
	srv := web.New(web.Options{
		Config:   cfg,
		Insights: analyst,
		Metrics:  m,
		Logger:   logger,
	}).HTTPServer()

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Server.Addr, err)
	}
	logger.Info("server started",
		slog.String("addr", ln.Addr().String()),
		slog.String("model", cfg.AI.Model),
		slog.Int64("max_upload_bytes", cfg.Upload.MaxBytes))
	if ready != nil {
		ready <- ln.Addr().String()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", slog.Duration("timeout", cfg.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
