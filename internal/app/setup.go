// Package app wires the catalog service together.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/gocommerce-catalog/internal/cache"
	"github.com/abgdnv/gocommerce-catalog/internal/config"
	"github.com/abgdnv/gocommerce-catalog/internal/service"
	"github.com/abgdnv/gocommerce-catalog/internal/store"
	grpcImpl "github.com/abgdnv/gocommerce-catalog/internal/transport/grpc"
	"github.com/abgdnv/gocommerce-catalog/internal/transport/rest"
	"github.com/abgdnv/gocommerce-catalog/pkg/auth"
	"github.com/abgdnv/gocommerce-catalog/pkg/bootstrap"
	"github.com/abgdnv/gocommerce-catalog/pkg/messaging"
	natsclient "github.com/abgdnv/gocommerce-catalog/pkg/nats"
	"github.com/abgdnv/gocommerce-catalog/pkg/server"
	"github.com/abgdnv/gocommerce-catalog/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"google.golang.org/grpc"
)

const ServiceName = "catalog"

type Dependencies struct {
	ProductService service.ProductService
	Records        store.RecordStore
	Verifier       auth.Verifier
	Metrics        http.Handler
	MetricsPath    string
	Logger         *slog.Logger
}

// SetupRecordStore opens the configured store. The returned func releases its resources.
func SetupRecordStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.RecordStore, func(), error) {
	if cfg.Store.Kind != config.StorePostgres {
		logger.Info("Using in-memory record store")
		return store.NewInMemory(), func() {}, nil
	}
	if cfg.Database.Migrate {
		if err := store.Migrate(cfg.Database.URL); err != nil {
			return nil, nil, err
		}
		logger.Info("Database migrations applied")
	}
	dbPool, err := bootstrap.NewDbPool(ctx, cfg.Database.URL, cfg.Database.Timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}
	logger.Info("Successfully connected to the database!")
	return store.NewPgStore(dbPool), dbPool.Close, nil
}

// SetupPublisher connects to NATS and ensures the product stream exists.
// Without NATS, events are dropped by a no-op publisher.
func SetupPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (messaging.Publisher, func(), error) {
	if !cfg.NATS.Enabled {
		logger.Info("NATS disabled, product events are not published")
		return messaging.NoopPublisher{}, func() {}, nil
	}
	nc, err := natsclient.NewClient(cfg.NATS.Url, cfg.NATS.Timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := natsclient.NewJetStreamContext(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	streamCtx, cancel := context.WithTimeout(ctx, cfg.NATS.Timeout)
	defer cancel()
	if err := natsclient.EnsureStream(streamCtx, js, cfg.NATS.Stream, messaging.ProductsSubjectWildcard); err != nil {
		nc.Close()
		return nil, nil, err
	}
	logger.Info("Connected to NATS", "url", cfg.NATS.Url, "stream", cfg.NATS.Stream)
	return natsclient.NewNatsPublisher(js), func() { _ = nc.Drain() }, nil
}

// SetupDependencies builds the service over records, guarding it with a circuit breaker when enabled.
func SetupDependencies(records store.RecordStore, publisher messaging.Publisher, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	if cfg.Resilience.CircuitBreaker.Enabled {
		records = store.NewBreakerStore(records, cfg.Resilience.CircuitBreaker, func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		})
	}

	productCache := cache.NewLRU(cfg.Cache.Capacity, cfg.Cache.TTL)
	if err := productCache.RegisterMetrics(otel.Meter("catalog-cache")); err != nil {
		return nil, fmt.Errorf("failed to register cache metrics: %w", err)
	}
	pService := service.NewService(records, productCache, publisher, cfg.Resilience.Retry, logger)

	return &Dependencies{
		ProductService: pService,
		Records:        records,
		Logger:         logger,
	}, nil
}

// SetupHttpHandler builds the router with every catalog route.
// Used by tests to exercise the full HTTP surface.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := server.NewChiRouter(ServiceName, deps.Logger)
	wireRoutes(mux, deps)
	return mux
}

func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	var guard func(http.Handler) http.Handler
	if deps.Verifier != nil {
		guard = web.AuthMiddleware(deps.Verifier)
	}
	productHandler := rest.NewHandler(deps.ProductService, deps.Logger, guard)
	productHandler.RegisterRoutes(mux)
	if deps.Metrics != nil {
		mux.Handle(deps.MetricsPath, deps.Metrics)
	}
}

// SetupHttpServer creates and configures an HTTP server for the catalog.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	mux := SetupHttpHandler(deps)

	httpCfg := server.HTTPConfig{
		Port:           cfg.HTTPServer.Port,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ReadTimeout:    cfg.HTTPServer.Timeout.Read,
		WriteTimeout:   cfg.HTTPServer.Timeout.Write,
		IdleTimeout:    cfg.HTTPServer.Timeout.Idle,
		ReadHeader:     cfg.HTTPServer.Timeout.ReadHeader,
	}

	return server.NewHTTPServer(httpCfg, mux)
}

// SetupGrpcServer creates the gRPC server with the health service reporting store reachability.
// The returned HealthServer must be Run to start probing.
func SetupGrpcServer(deps *Dependencies, cfg *config.Config) (*grpc.Server, *grpcImpl.HealthServer) {
	healthServer := grpcImpl.NewHealthServer(deps.Records, cfg.GRPC.HealthInterval, deps.Logger)
	grpcServer := server.NewGRPCServer(deps.Logger, cfg.GRPC.ReflectionEnabled, healthServer.Register)
	return grpcServer, healthServer
}
