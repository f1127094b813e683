package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SAP-F-2025/assessment-runner/internal/events"
	"github.com/SAP-F-2025/assessment-runner/internal/handlers"
	"github.com/SAP-F-2025/assessment-runner/internal/services"
	"github.com/SAP-F-2025/assessment-runner/internal/utils"
	"github.com/urfave/cli/v3"
)

const (
	reapInterval    = time.Minute
	shutdownTimeout = 15 * time.Second
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Serve the runner HTTP API",
		Action: serve,
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := utils.NewLogger(cfg.Environment)
	slogger := utils.ToSlogLogger(logger)

	b, err := newBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	publisher, err := cfg.Events.CreateEventPublisher(slogger)
	if err != nil {
		logger.Error("Failed to create event publisher", "error", err)
		publisher = events.NewMockEventPublisher(slogger)
	}

	sinkCtx, stopSink := context.WithCancel(ctx)
	defer stopSink()
	if gc, ok := publisher.(*events.GoChannelEventPublisher); ok {
		messages, err := gc.Subscribe(sinkCtx)
		if err != nil {
			logger.Warn("Runner event log sink disabled", "error", err)
		} else {
			go events.RunLogSink(sinkCtx, messages, slogger)
		}
	}

	sessions := services.NewSessionService(b.intake, publisher, services.SessionConfig{
		TTL:                cfg.SessionTTL,
		TimeWarningSeconds: cfg.TimeWarningSeconds,
		ResultsBaseURL:     cfg.ResultsBaseURL,
	}, logger)

	reaperCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	go sessions.RunReaper(reaperCtx, reapInterval)

	router := handlers.NewRouter(cfg.Environment, cfg.CORSOrigins, logger)
	handlers.NewHandlerManager(b.intake, sessions, logger).SetupRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdownChan)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "backend", cfg.BackendURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-shutdownChan:
		logger.Info("Shutting down server")
	case <-ctx.Done():
		logger.Info("Shutting down server", "reason", ctx.Err())
	case runErr = <-serveErr:
		if runErr != nil {
			logger.Error("HTTP server failed", "error", runErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down HTTP server", "error", err)
	}

	stopReaper()
	sessions.Shutdown()

	if err := publisher.Close(); err != nil {
		logger.Error("Failed to close event publisher", "error", err)
	}

	logger.Info("Server shutdown complete")
	return runErr
}
