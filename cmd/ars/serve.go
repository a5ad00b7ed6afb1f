package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cartridge/ars/internal/config"
	httpServer "github.com/cartridge/ars/internal/http"
	"github.com/cartridge/ars/internal/metrics"
	"github.com/cartridge/ars/internal/service"
	"github.com/cartridge/ars/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the policy HTTP server",
	RunE:  runServe,
}

func init() {
	d := config.Default()
	serveCmd.Flags().String("http-addr", d.HTTPAddr, "HTTP listen address")
	serveCmd.Flags().String("store", d.Store, "Checkpoint store (memory, sqlite)")
	serveCmd.Flags().String("sqlite-path", d.SQLitePath, "SQLite database file for the sqlite store")
	serveCmd.Flags().Duration("shutdown-timeout", d.ShutdownTimeout, "Graceful shutdown timeout")

	bindFlag(serveCmd, "http_addr", "http-addr")
	bindFlag(serveCmd, "store", "store")
	bindFlag(serveCmd, "sqlite_path", "sqlite-path")
	bindFlag(serveCmd, "shutdown_timeout", "shutdown-timeout")
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	if cfg.Store == config.StoreSQLite {
		return storage.NewSQLiteBackend(ctx, cfg.SQLitePath)
	}
	return storage.NewMemoryBackend(), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg, &logger)
	policies := service.NewPolicyService(store, collector, &logger)

	h := httpServer.NewServer(policies, collector, reg, &logger)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: cfg.ReadTimeout / 3,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.HTTPAddr).
			Str("store", cfg.Store).
			Msg("ars HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	return shutdown(srv, cfg, logger)
}

func shutdown(srv *http.Server, cfg *config.Config, logger zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}
	logger.Info().Msg("ars stopped")
	return nil
}
