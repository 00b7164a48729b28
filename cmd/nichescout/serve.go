package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/FranksOps/nichescout/internal/config"
	"github.com/FranksOps/nichescout/internal/metrics"
	"github.com/FranksOps/nichescout/internal/web"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web interface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), v)
		},
	}
	cmd.Flags().Int("port", 0, "HTTP listen port (default 3111)")
	cmd.Flags().String("store", "", "saved-search store: postgres, sqlite")
	bindFlag(v, config.KeyPort, cmd.Flags().Lookup("port"))
	bindFlag(v, config.KeyStoreDriver, cmd.Flags().Lookup("store"))
	return cmd
}

func runServe(parent context.Context, v *viper.Viper) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := loadConfig(v)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	p, closeRenderer, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeRenderer(); err != nil {
			logger.Warn("closing renderer failed", "err", err)
		}
	}()

	if cfg.MetricsPort > 0 {
		ms := metrics.Start(cfg.MetricsPort)
		defer ms.Stop(context.Background())
		logger.Info("metrics listening", "port", cfg.MetricsPort)
	}

	s, err := web.New(p, store, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("up", "port", cfg.Port, "store", cfg.StoreDriver, "renderer", cfg.Renderer)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
