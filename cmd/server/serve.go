package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"amdash/internal/api"
	"amdash/internal/source"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, err := source.Open(cfg.Source, logger)
	if err != nil {
		return err
	}
	defer src.Close()

	// 1. Handler starts empty: the API is live immediately and answers 503
	// until each dataset loads.
	h := api.NewHandler(src, logger)
	defer h.Close()
	e := api.NewServer(cfg, h, logger)

	// 2. Load every dataset in the background
	go func() {
		logger.Info("preloading datasets", zap.String("source", src.Backend()))
		t0 := time.Now()
		if err := h.Preload(ctx); err != nil {
			logger.Warn("preload incomplete", zap.Error(err), zap.Duration("took", time.Since(t0)))
			return
		}
		logger.Info("preload complete", zap.Duration("took", time.Since(t0)))
	}()

	// 3. Periodic reload
	if cfg.RefreshInterval > 0 {
		go func() {
			tick := time.NewTicker(cfg.RefreshInterval)
			defer tick.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-tick.C:
					h.RefreshAll()
				}
			}
		}()
	}

	// 4. Serve until interrupted
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Addr))
		errCh <- e.Start(cfg.Addr)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
