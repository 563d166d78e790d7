package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"CryptoDash/internal/domain/models"
	"CryptoDash/internal/handler/api"
	mid "CryptoDash/internal/middleware"
	"CryptoDash/internal/usecase/dashboard"
	"CryptoDash/internal/usecase/feeds"
	"CryptoDash/internal/usecase/scalper"
	"CryptoDash/pkg/config"
	xhttp "CryptoDash/pkg/http"
	applogger "CryptoDash/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	poller     *feeds.Poller
	scalper    *scalper.Controller
	orch       *dashboard.Orchestrator
	pipeline   *mid.EventPipeline
	stream     *api.StreamHub
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	poller *feeds.Poller,
	ctrl *scalper.Controller,
	orch *dashboard.Orchestrator,
	pipeline *mid.EventPipeline,
	stream *api.StreamHub,
	httpServer *xhttp.Server,
) *App {
	if log == nil {
		log = applogger.Nop()
	}
	return &App{
		cfg:        cfg,
		log:        log,
		poller:     poller,
		scalper:    ctrl,
		orch:       orch,
		pipeline:   pipeline,
		stream:     stream,
		httpServer: httpServer,
	}
}

// Run starts the application and blocks until ctx is cancelled, SIGINT or
// SIGTERM arrives, or the HTTP listener fails.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The pipeline outlives ctx so events raised during shutdown still drain.
	a.pipeline.Start(context.Background())
	a.orch.Start(ctx)

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		_ = a.shutdown()
		return err
	}

	a.log.Info("cryptodash started",
		applogger.String("env", a.cfg.Environment),
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("backend", a.cfg.Backend.BaseURL),
		applogger.String("selection", a.orch.Selection().String()),
	)

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case err := <-a.httpServer.Errors():
		runErr = fmt.Errorf("http server: %w", err)
	}

	if err := a.shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// shutdown stops components in dependency order: an active scalper session
// first, so the bot is not left trading unattended, then the producers of
// events, then their consumers. Infrastructure is released by the injector's
// cleanup once Run returns.
func (a *App) shutdown() error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a.log.Info("shutting down...")
	var errs []error

	if a.scalper.Snapshot().State == models.SessionRunning {
		if _, err := a.scalper.Stop(ctx); err != nil {
			a.log.Error("scalper stop on shutdown failed", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	a.scalper.Close()

	a.stream.Close()
	a.orch.Close()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}

	a.pipeline.Stop(ctx)
	a.poller.Close()

	// Flush aggregated logs while the producer is still open.
	a.log.RemoveCollector()

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
