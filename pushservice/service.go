// --- File: pushservice/service.go ---
// Package pushservice assembles the wake-up push service: the HTTP API for
// device registration and synchronous pushes, and the queue pipeline that
// fans wake-up requests out to every registered device.
package pushservice

import (
	"context"
	"log/slog"
	"net/http"

	"cloud.google.com/go/pubsub/v2"

	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-push-service/internal/api"
	"github.com/tinywideclouds/go-push-service/internal/dispatch"
	"github.com/tinywideclouds/go-push-service/internal/pipeline"
	"github.com/tinywideclouds/go-push-service/pkg/push"
	"github.com/tinywideclouds/go-push-service/pushservice/config"
)

type Wrapper struct {
	*microservice.BaseServer
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
}

// New assembles the service around its injected dependencies: the router
// with whatever backends survived startup, the (possibly cache-decorated)
// token store, and the cooldown tracker.
func New(
	cfg *config.Config,
	subscriber *pubsub.Subscriber,
	router *dispatch.Router,
	tokenStore push.TokenStore,
	cooldowns pipeline.CooldownStore,
	authMiddleware func(http.Handler) http.Handler,
	logger *slog.Logger,
) *Wrapper {

	// 1. Base Server
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	// 2. Pipeline (queue -> processor -> backends)
	processor := pipeline.NewProcessor(router, tokenStore, cooldowns, logger)
	pipe := pipeline.NewPipeline(subscriber, processor, cfg.NumPipelineWorkers, logger)

	// 3. API
	deviceAPI := api.NewDeviceAPI(tokenStore, logger)
	pushAPI := api.NewPushAPI(router, logger)

	// Register Routes
	mux := baseServer.Mux()
	corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig, logger)

	// Helper for clean route definition
	handle := func(pattern string, handlerFunc http.HandlerFunc) {
		mux.Handle(pattern, corsMiddleware(authMiddleware(handlerFunc)))
	}

	// 1. Device registration (end users, via their clients)
	handle("POST /api/v1/devices", deviceAPI.Register)
	handle("DELETE /api/v1/devices", deviceAPI.Unregister)

	// 2. Synchronous push (other services that already hold a token)
	handle("POST /api/v1/push", pushAPI.Send)

	// 3. Global OPTIONS for the API namespace (CORS preflight)
	mux.Handle("OPTIONS /api/v1/", corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Just returns 200 OK with CORS headers handled by middleware
	})))

	return &Wrapper{
		BaseServer: baseServer,
		pipeline:   pipe,
		logger:     logger,
	}
}

func (w *Wrapper) Start(ctx context.Context) error {
	w.logger.Info("Core processing pipeline starting...")
	if err := w.pipeline.Start(ctx); err != nil {
		return err
	}
	w.SetReady(true)
	w.logger.Info("Service is now ready.")
	return w.BaseServer.Start()
}

func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	var finalErr error
	if err := w.pipeline.Stop(ctx); err != nil {
		w.logger.Error("Processing pipeline shutdown failed.", "err", err)
		finalErr = err
	}
	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = err
	}
	w.logger.Info("Service shutdown complete.")
	return finalErr
}
