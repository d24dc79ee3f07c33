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

	"github.com/sabiqazhar/frappe-env-setup/internal/orchestrator"
)

var serverBootstrap bool

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Serve health, readiness and bootstrap endpoints over HTTP",
	Long: `Start the frappe-env HTTP server on the configured port (default :8090).

The server exposes liveness, deep health, readiness, run history and
Prometheus metrics, and accepts POST /api/v1/bootstrap to start a run in
the background. It shuts down cleanly on SIGTERM or SIGINT; an in-flight
bootstrap is cancelled with it.`,
	RunE: runServer,
}

func init() {
	serverCmd.Flags().BoolVar(&serverBootstrap, "bootstrap", false, "start a bootstrap run as soon as the server is up")
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	router, err := app.router(ctx)
	if err != nil {
		return fmt.Errorf("building router: %w", err)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("frappe-env server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	startup := make(chan struct{})
	if serverBootstrap || cfg.Server.BootstrapOnStart {
		go func() {
			defer close(startup)
			if _, err := app.orchestrator.Run(ctx); err != nil && !errors.Is(err, orchestrator.ErrRunInProgress) {
				slog.ErrorContext(ctx, "startup bootstrap failed", "error", err)
			}
		}()
	} else {
		close(startup)
	}

	// Runs must return before app.close shuts the history store.
	defer func() {
		stop()
		<-startup
		router.Wait()
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped cleanly")
	return nil
}
