package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/andresfredes/pdf2ppt/internal/api"
	"github.com/andresfredes/pdf2ppt/internal/history"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP conversion API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	logger := newLogger(false)

	builder, err := newBuilder(logger)
	if err != nil {
		return err
	}

	store, err := openHistory(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		// job status is still served, but only for this process
		store, err = history.Open(ctx, ":memory:")
		if err != nil {
			return fmt.Errorf("open in-memory history: %w", err)
		}
	}
	defer store.Close()

	conversions := api.NewConversionHandler(logger, builder, store, cfg.Conversion)
	router := api.NewRouter(logger, api.RouterConfig{RequestTimeout: cfg.Server.ReadTimeout}, conversions)

	addr := cfg.Addr()
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info().
		Str("addr", addr).
		Str("template", cfg.Template.Path).
		Bool("history", cfg.History.Enabled).
		Msg("Starting pdf2ppt API")

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	var serveErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Server error")
			serveErr = err
		}
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	if conversions.Busy() {
		logger.Info().Msg("Waiting for the running conversion to finish")
	}
	if err := conversions.Wait(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Conversion still running at shutdown")
	}

	logger.Info().Msg("Server stopped")
	return serveErr
}
