package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/upb/fetchguard/app"
	"github.com/upb/fetchguard/config"
	"github.com/upb/fetchguard/internal/observability"
	"github.com/upb/fetchguard/routes"
	"go.uber.org/zap"
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the isolation gateway in front of UPSTREAM_URL",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	level := cfg.Observability.LogLevel
	if logLevelOverride != "" {
		level = logLevelOverride
	}
	logger, err := observability.NewLogger(level, cfg.Observability.LogFormat)
	if err != nil {
		return err
	}

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", zap.Error(err))
		return err
	}
	deps.Start(ctx)

	handler, err := routes.SetupRoutes(deps)
	if err != nil {
		_ = deps.Close(context.Background())
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ErrorLog:          zap.NewStdLog(logger),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("fetchguard listening",
			zap.String("addr", srv.Addr),
			zap.String("upstream", cfg.Upstream.URL),
			zap.Bool("tls", cfg.Server.TLS.Enabled),
			zap.String("environment", cfg.Environment))

		var err error
		if cfg.Server.TLS.Enabled {
			err = srv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case serveErr = <-errCh:
		if serveErr != nil {
			logger.Error("server error", zap.Error(serveErr))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := deps.Close(shutdownCtx); err != nil {
		logger.Error("failed to close dependencies", zap.Error(err))
	}

	return serveErr
}
