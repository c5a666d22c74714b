package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"neuropipe/internal/config"
	"neuropipe/internal/infrastructure"
	transporthttp "neuropipe/internal/transport/http"
)

func newServeCmd(c *cli) *cobra.Command {
	var (
		port  int
		debug bool
	)
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"server"},
		Short:   "Start the HTTP API and the background job workers",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != 0 {
				c.cfg.Server.Port = port
			}
			return serve(cmd.Context(), c.cfg, debug)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides config)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Include internal error details in problem responses")
	return cmd
}

func serve(parent context.Context, cfg *config.Config, debug bool) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()

	tel, err := infrastructure.InitializeTelemetry(cfg.Telemetry, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	env, err := openEnvironment(cfg, logger, tel)
	if err != nil {
		return err
	}
	defer env.Close()

	// jobs keep running through shutdown until the queue drains
	if err := env.coord.Start(infrastructure.DetachedContext(ctx)); err != nil {
		return fmt.Errorf("failed to start coordinator: %w", err)
	}

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: transporthttp.NewRouter(transporthttp.Deps{
			Service:   env.coord,
			Telemetry: tel,
			Logger:    logger,
			Server:    cfg.Server,
			Version:   config.AppVersion,
			Debug:     debug,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server_listening",
			slog.String("addr", srv.Addr),
			slog.String("data_dir", env.paths.DataDir),
			slog.String("registry_db", env.paths.RegistryDB))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("server_shutting_down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
		if err := env.coord.Shutdown(shutdownCtx, cfg.Server.ShutdownTimeout); err != nil {
			errs = append(errs, fmt.Errorf("coordinator shutdown: %w", err))
		}
		if err := tel.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
		}
		logger.Info("server_stopped")
		return errors.Join(errs...)
	})

	return g.Wait()
}
