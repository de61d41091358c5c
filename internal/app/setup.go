// Package app contains the application setup for the marketplace API.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/coinmarket/internal/config"
	"github.com/abgdnv/coinmarket/internal/service"
	"github.com/abgdnv/coinmarket/internal/store"
	"github.com/abgdnv/coinmarket/internal/transport/rest"
	"github.com/abgdnv/coinmarket/pkg/bootstrap"
	pkgconfig "github.com/abgdnv/coinmarket/pkg/config"
	"github.com/abgdnv/coinmarket/pkg/kafka"
	"github.com/abgdnv/coinmarket/pkg/messaging"
	"github.com/abgdnv/coinmarket/pkg/nats"
	"github.com/abgdnv/coinmarket/pkg/server"
	"github.com/abgdnv/coinmarket/pkg/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ServiceName names the process in logs, metrics and traces.
const ServiceName = "coinmarket"

// ordersStream is the JetStream stream that captures every order lifecycle subject.
const ordersStream = "ORDERS"

type Dependencies struct {
	OrderService   service.OrderService
	CatalogService service.CatalogService
	Registry       *prometheus.Registry
	Logger         *slog.Logger
	closers        []func() error
}

// NewDependencies wires the services on top of an already built store and publisher.
func NewDependencies(st store.Store, publisher messaging.Publisher, registry *prometheus.Registry, logger *slog.Logger) *Dependencies {
	return &Dependencies{
		OrderService:   service.NewOrderService(st, publisher, logger),
		CatalogService: service.NewCatalogService(st, logger),
		Registry:       registry,
		Logger:         logger,
	}
}

// SetupDependencies builds the store and the event publisher selected by cfg and wires the services on top.
func SetupDependencies(ctx context.Context, cfg *config.Config, registry *prometheus.Registry, logger *slog.Logger) (*Dependencies, error) {
	var closers []func() error
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}

	st, closeStore, err := setupStore(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	closers = append(closers, closeStore)

	publisher, closePublisher, err := setupPublisher(ctx, cfg, logger)
	if err != nil {
		closeAll()
		return nil, err
	}
	closers = append(closers, closePublisher)

	deps := NewDependencies(st, publisher, registry, logger)
	deps.closers = closers
	return deps, nil
}

// Close releases the store and broker connections in reverse order of creation.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i]())
	}
	return errors.Join(errs...)
}

func setupStore(ctx context.Context, cfg pkgconfig.DatabaseConfig, logger *slog.Logger) (store.Store, func() error, error) {
	if cfg.Driver == pkgconfig.DriverMemory {
		logger.Warn("Using in-memory store, data is lost on restart")
		return store.NewMemoryStore(), func() error { return nil }, nil
	}
	if cfg.Migrate {
		if err := store.Migrate(cfg.URL); err != nil {
			return nil, nil, err
		}
		logger.Info("Database migrations applied")
	}
	dbPool, err := bootstrap.NewDbPool(ctx, cfg.URL, cfg.Timeout)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Successfully connected to the database!")
	return store.NewPgStore(dbPool), func() error { dbPool.Close(); return nil }, nil
}

func setupPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (messaging.Publisher, func() error, error) {
	var next messaging.Publisher
	var closer func() error
	switch cfg.Events.Broker {
	case pkgconfig.BrokerNATS:
		nc, err := nats.NewClient(cfg.Nats.Url, cfg.Nats.Timeout)
		if err != nil {
			return nil, nil, err
		}
		js, err := nats.NewJetStreamContext(nc)
		if err != nil {
			return nil, nil, err
		}
		if _, err := nats.EnsureStream(ctx, js, cfg.Nats.Stream, messaging.OrdersSubjects); err != nil {
			nc.Close()
			return nil, nil, err
		}
		next = nats.NewPublisher(js)
		closer = func() error { return nc.Drain() }
	case pkgconfig.BrokerKafka:
		p := kafka.NewPublisher(kafka.NewWriter(cfg.Events.Kafka), cfg.Events.Kafka.WriteTimeout)
		next = p
		closer = p.Close
	default:
		logger.Info("Event publishing is disabled")
		return messaging.NopPublisher{}, func() error { return nil }, nil
	}
	logger.Info("Publishing order events", "broker", cfg.Events.Broker)
	return messaging.NewBreakerPublisher(cfg.Events.Broker, next, cfg.Resilience.CircuitBreaker), closer, nil
}

// SetupHttpHandler builds the router with metrics, tracing and every API route.
// Used by tests to exercise the full middleware chain.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	metrics := telemetry.NewHTTPMetrics(deps.Registry, "api")
	mux := server.NewChiRouter(deps.Logger, metrics.Middleware)
	wireRoutes(mux, deps)
	mux.Method(http.MethodGet, "/metrics", telemetry.Handler(deps.Registry))
	return otelhttp.NewHandler(mux, ServiceName)
}

func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	h := rest.NewHandler(deps.OrderService, deps.CatalogService, deps.Logger)
	h.RegisterRoutes(mux)
}

// SetupHttpServer creates and configures an HTTP server for the marketplace API.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	return server.NewHTTPServer(cfg.HTTPServer, SetupHttpHandler(deps))
}

// NewRegistry returns a registry carrying the Go runtime and process collectors.
func NewRegistry() (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register go collector: %w", err)
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("failed to register process collector: %w", err)
	}
	return reg, nil
}
