package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"github.com/formbricks/wordsim/internal/api/handlers"
	"github.com/formbricks/wordsim/internal/api/middleware"
	"github.com/formbricks/wordsim/internal/config"
	"github.com/formbricks/wordsim/internal/embeddings"
	"github.com/formbricks/wordsim/internal/engine"
	"github.com/formbricks/wordsim/internal/notify"
	"github.com/formbricks/wordsim/internal/observability"
	"github.com/formbricks/wordsim/internal/service"
)

const apiVersion = "1.0.0"

// App holds all server dependencies and coordinates startup and shutdown.
type App struct {
	cfg            *config.Config
	server         *http.Server
	actor          *engine.Actor
	broadcaster    *service.Broadcaster
	meterProvider  observability.MeterProviderShutdown
	tracerProvider *sdktrace.TracerProvider
}

// core is the engine plus the observability it reports to; shared by serve and stdio.
type core struct {
	actor          *engine.Actor
	metrics        observability.Metrics
	metricsHandler http.Handler
	meterProvider  observability.MeterProviderShutdown
	tracerProvider *sdktrace.TracerProvider
}

// newCore sets up metrics, tracing, the embedding provider and the actor. The actor is not started.
func newCore(ctx context.Context, cfg *config.Config) (*core, error) {
	c := &core{}

	if cfg.MetricsEnabled {
		mp, handler, metrics, err := observability.NewMeterProvider(ctx, observability.MeterProviderConfig{})
		if err != nil {
			return nil, fmt.Errorf("create meter provider: %w", err)
		}

		c.meterProvider, c.metricsHandler, c.metrics = mp, handler, metrics
	} else {
		slog.Warn("metrics not enabled (METRICS_ENABLED=false)")
	}

	tp, err := observability.NewTracerProvider(cfg)
	if err != nil {
		c.shutdownQuietly(ctx)

		return nil, fmt.Errorf("create tracer provider: %w", err)
	}

	if tp != nil {
		otel.SetTracerProvider(tp)
		c.tracerProvider = tp
	}

	var cacheMetrics embeddings.CacheMetrics
	if c.metrics != nil {
		cacheMetrics = c.metrics
	}

	provider, err := embeddings.New(ctx, embeddings.Options{
		Provider:   cfg.EmbeddingProvider,
		Model:      cfg.EmbeddingModel,
		APIKey:     cfg.EmbeddingProviderAPIKey,
		Dimensions: cfg.EmbeddingDimensions,
		OllamaURL:  cfg.OllamaURL,
		RateLimit:  cfg.EmbeddingRateLimit,
		CacheSize:  cfg.EmbeddingCacheSize,
	}, cacheMetrics)
	if err != nil {
		c.shutdownQuietly(ctx)

		return nil, fmt.Errorf("create embedding provider: %w", err)
	}

	var engineMetrics engine.Metrics
	if c.metrics != nil {
		engineMetrics = c.metrics
	}

	c.actor = engine.New(provider, engine.Options{
		OutboxBuffer: cfg.EngineOutboxBuffer,
		EmbedTimeout: cfg.EmbeddingTimeout,
		Metrics:      engineMetrics,
	})

	slog.Info("embedding provider configured",
		"provider", provider.Name(),
		"model", cfg.EmbeddingModel,
		"cache_size", cfg.EmbeddingCacheSize,
		"rate_limit", cfg.EmbeddingRateLimit,
	)

	return c, nil
}

// shutdown flushes tracer and meter providers. Logs errors and returns the first.
func (c *core) shutdown(ctx context.Context) error {
	var first error

	if err := observability.ShutdownTracerProvider(ctx, c.tracerProvider); err != nil {
		first = err
	}

	if c.meterProvider != nil {
		if err := c.meterProvider.Shutdown(ctx); err != nil {
			if first == nil {
				first = fmt.Errorf("meter provider shutdown: %w", err)
			} else {
				slog.Error("shutdown meter provider", "error", err)
			}
		}
	}

	return first
}

// shutdownQuietly is shutdown for error paths during construction.
func (c *core) shutdownQuietly(ctx context.Context) {
	if err := c.shutdown(ctx); err != nil {
		slog.Error("shutdown observability", "error", err)
	}
}

// NewApp builds and wires all components. It does not start the server or the engine;
// call Run to start and block until shutdown or failure.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	c, err := newCore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var broadcasterMetrics service.BroadcasterMetrics
	if c.metrics != nil {
		broadcasterMetrics = c.metrics
	}

	broadcaster := service.NewBroadcaster(c.actor.Outbox(), service.BroadcasterOptions{Metrics: broadcasterMetrics})

	if cfg.WebhookURL != "" {
		var deliveryMetrics notify.DeliveryMetrics
		if c.metrics != nil {
			deliveryMetrics = c.metrics
		}

		sink, err := notify.NewWebhookSink(notify.Options{
			URL:     cfg.WebhookURL,
			Secret:  cfg.WebhookSecret,
			Metrics: deliveryMetrics,
		})
		if err != nil {
			c.shutdownQuietly(ctx)

			return nil, fmt.Errorf("create webhook sink: %w", err)
		}

		broadcaster.RegisterSink(sink)
		slog.Info("webhook delivery enabled", "url", cfg.WebhookURL)
	}

	var requestMetrics httpMetrics
	if c.metrics != nil {
		requestMetrics = c.metrics
	}

	server := newHTTPServer(cfg, routes{
		health:  handlers.NewHealthHandler(c.actor),
		words:   handlers.NewWordsHandler(c.actor, broadcaster),
		events:  handlers.NewEventsHandler(broadcaster, 0),
		metrics: c.metricsHandler,
	}, requestMetrics, c.tracerProvider)

	return &App{
		cfg:            cfg,
		server:         server,
		actor:          c.actor,
		broadcaster:    broadcaster,
		meterProvider:  c.meterProvider,
		tracerProvider: c.tracerProvider,
	}, nil
}

// httpMetrics is what the HTTP middleware records. Implemented by observability.Metrics.
type httpMetrics interface {
	middleware.RequestRecorder
	middleware.BodyLimitRecorder
}

type routes struct {
	health  *handlers.HealthHandler
	words   *handlers.WordsHandler
	events  *handlers.EventsHandler
	metrics http.Handler
}

// newHTTPServer builds the HTTP server (no auth on /health, /ready and /metrics; API key on /v1/).
// Handler chain: RequestID -> otelhttp(Logging(router)) so access logs get trace_id/span_id from context.
func newHTTPServer(
	cfg *config.Config,
	r routes,
	requestMetrics httpMetrics,
	tracerProvider *sdktrace.TracerProvider,
) *http.Server {
	router := chi.NewRouter()
	router.Use(middleware.Metrics(requestMetrics))

	router.Get("/health", r.health.Check)
	router.Get("/ready", r.health.Ready)

	if r.metrics != nil {
		router.Handle("/metrics", r.metrics)
	}

	router.Group(func(protected chi.Router) {
		protected.Use(middleware.Auth(cfg.APIKey))
		protected.Use(middleware.MaxBody(cfg.MaxRequestBodyBytes, requestMetrics))

		protected.Get("/v1/events", r.events.Stream)

		humaConfig := huma.DefaultConfig("wordsim API", apiVersion)
		humaConfig.Info.Description = "Submit words and receive their cosine similarity to every earlier word."
		r.words.Register(humachi.New(protected, humaConfig))
	})

	otelOpts := []otelhttp.Option{
		// Skip tracing for probes and scrapes to reduce noise.
		otelhttp.WithFilter(func(r *http.Request) bool {
			switch r.URL.Path {
			case "/health", "/ready", "/metrics":
				return false
			default:
				return true
			}
		}),
	}
	if tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(tracerProvider))
	}

	// Logging runs inside otelhttp so r.Context() has the span when we log (trace_id/span_id in access logs).
	inner := middleware.Logging(router)
	handler := otelhttp.NewHandler(inner, "wordsim-api", otelOpts...)
	handler = middleware.RequestID(handler)

	const (
		readHeaderTimeout = 5 * time.Second
		readTimeout       = 15 * time.Second
		idleTimeout       = 60 * time.Second
	)

	// No WriteTimeout: /v1/events responses stay open for the life of the subscription.
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// Run starts the engine, the broadcaster and the HTTP server, then blocks until ctx is cancelled
// (e.g. signal) or a component fails. On return the server is shut down and the engine stopped;
// the caller should then call Shutdown.
func (a *App) Run(ctx context.Context) error {
	a.broadcaster.Start()
	a.actor.Start(context.WithoutCancel(ctx))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting server", "port", a.cfg.Port)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down server...")

		// Stopping the engine closes the event streams, so open SSE connections let Shutdown finish.
		a.actor.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ShutdownTimeout)
		defer cancel()

		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}

		return nil
	})

	return g.Wait()
}

// Shutdown waits for queued webhook deliveries and flushes observability. Call after Run returns.
func (a *App) Shutdown(ctx context.Context) error {
	a.actor.Stop()

	select {
	case <-a.broadcaster.Done():
	case <-ctx.Done():
		slog.Warn("broadcaster did not drain before shutdown deadline")
	}

	c := &core{meterProvider: a.meterProvider, tracerProvider: a.tracerProvider}

	return c.shutdown(ctx)
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	observability.SetupLogging(os.Stdout, cfg.LogLevel)

	app, err := NewApp(ctx, cfg)
	if err != nil {
		return err
	}

	runErr := app.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}

	slog.Info("Server exited")

	return runErr
}
