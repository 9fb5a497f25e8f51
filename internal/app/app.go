// Package app wires configuration, stores and HTTP handlers into the API
// server.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/rebate-engine/internal/domain/product"
	"github.com/xenking/rebate-engine/internal/domain/rebate"
	"github.com/xenking/rebate-engine/internal/events"
	"github.com/xenking/rebate-engine/internal/handler"
	"github.com/xenking/rebate-engine/internal/storage/cache"
	"github.com/xenking/rebate-engine/pkg/health"
	"github.com/xenking/rebate-engine/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server and handles graceful
// shutdown.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("store", cfg.Store.Driver),
	)

	stores, err := OpenStores(ctx, lg, cfg.Store)
	if err != nil {
		return errors.Wrap(err, "open stores")
	}
	defer stores.Close()

	var products product.Store = stores.Products
	if cfg.ProductCache.TTL > 0 {
		products = cache.NewProductStore(products, cfg.ProductCache.TTL, cfg.ProductCache.Cleanup)
	}

	var rebates rebate.Store = stores.Rebates
	if len(cfg.Kafka.Brokers) > 0 {
		w, err := events.NewWriter(events.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
		if err != nil {
			return errors.Wrap(err, "create kafka writer")
		}
		pub := events.NewPublisher(rebates, w)
		defer func() {
			if err := pub.Close(); err != nil {
				lg.Warn("Close kafka writer", zap.Error(err))
			}
		}()
		rebates = pub
		lg.Info("Publishing calculation events",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}

	svc := rebate.NewService(rebates, products, nil)
	h, err := handler.New(svc, m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create handler")
	}

	healthSvc := health.New()
	if stores.Ping != nil {
		healthSvc.AddReadinessCheck(cfg.Store.Driver, 5*time.Second, stores.Ping)
	}
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: NewRouter(RouterOptions{
			Logger:         lg,
			TracerProvider: m.TracerProvider(),
			MeterProvider:  m.MeterProvider(),
			Handler:        h,
			Health:         healthSvc,
			CORS:           cfg.CORS,
			RateLimit:      cfg.RateLimit,
		}),
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()

		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// RouterOptions holds NewRouter dependencies.
type RouterOptions struct {
	Logger         *zap.Logger
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Handler        *handler.Handler
	Health         *health.Health
	CORS           CORSConfig
	RateLimit      RateLimitConfig
}

// NewRouter builds the HTTP routes: probes at the root and the API under
// /api. Only API routes are rate limited.
func NewRouter(opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(
		httpmiddleware.InjectLogger(opts.Logger),
		httpmiddleware.RequestID(),
		httpmiddleware.Recovery(),
		httpmiddleware.Instrument("rebate-api", opts.TracerProvider, opts.MeterProvider),
		httpmiddleware.LogRequests(),
		cors.Handler(cors.Options{
			AllowedOrigins: opts.CORS.Origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", httpmiddleware.HeaderRequestID},
			ExposedHeaders: []string{httpmiddleware.HeaderRequestID},
			MaxAge:         86400,
		}),
	)

	r.Get("/livez", opts.Health.LiveEndpoint)
	r.Get("/readyz", opts.Health.ReadyEndpoint)
	r.Route("/api", func(r chi.Router) {
		r.Use(httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{
			Max:    opts.RateLimit.Max,
			Window: opts.RateLimit.Window,
		}))
		opts.Handler.Mount(r)
	})
	return r
}
