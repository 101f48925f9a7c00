package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/medivoice/medivoice-core/internal/bus"
	"github.com/medivoice/medivoice-core/internal/config"
	"github.com/medivoice/medivoice-core/internal/natsserver"
	"github.com/medivoice/medivoice-core/internal/server"
	"github.com/medivoice/medivoice-core/internal/turn"
)

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	if err := os.MkdirAll(r.cfg.Artifacts.Dir, 0o755); err != nil {
		return fmt.Errorf("create artifacts dir: %w", err)
	}

	// The bus carries turn lifecycle events for observers. The pipeline
	// itself never depends on it, so a bus failure only costs events.
	var notifier turn.Notifier
	var busClient *bus.Client
	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		r.logger.Warn("embedded bus failed to start, continuing without it", slog.String("error", err.Error()))
	}
	defer embedded.Shutdown()
	if r.cfg.Bus.Enabled {
		busClient, err = bus.Connect(ctx, r.cfg.Bus, r.logger)
		if err != nil {
			r.logger.Warn("bus connection failed, continuing without turn events", slog.String("error", err.Error()))
		} else {
			notifier = turn.NewBusNotifier(busClient, r.logger)
		}
	}
	defer busClient.Close()

	orch := BuildOrchestrator(r.cfg, notifier, r.logger)
	srv := server.New(orch, r.cfg.Artifacts.Dir, metricsHandler, r.logger)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	srv.SetReady(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}
