// Package app composes the item service runtime: storage, application
// services, the background settler, and the gRPC and HTTP servers.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"cloud.google.com/go/longrunning/autogen/longrunningpb"

	operationsapi "github.com/plantworks/manufacturing/internal/api/grpc/operations"
	itemsapi "github.com/plantworks/manufacturing/internal/api/http/items"
	"github.com/plantworks/manufacturing/internal/item/service"
	"github.com/plantworks/manufacturing/internal/item/settle"
	"github.com/plantworks/manufacturing/internal/operation"
	"github.com/plantworks/manufacturing/internal/platform/metrics"
	"github.com/plantworks/manufacturing/internal/platform/timeouts"
	"github.com/plantworks/manufacturing/internal/storage"
	"github.com/plantworks/manufacturing/internal/storage/postgres"
	"github.com/plantworks/manufacturing/internal/storage/sqlite"
)

// Config controls item service startup and dependencies.
type Config struct {
	GRPCPort       int
	HTTPPort       int
	StorageDriver  string
	DBPath         string
	DatabaseURL    string
	SettleInterval time.Duration
}

const (
	defaultGRPCPort = 8080
	defaultHTTPPort = 8081
	defaultDBPath   = "data/items.db"
)

// Run starts the item service and blocks until the context is canceled or
// a server fails.
func Run(ctx context.Context, cfg Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.GRPCPort <= 0 {
		cfg.GRPCPort = defaultGRPCPort
	}
	if cfg.HTTPPort <= 0 {
		cfg.HTTPPort = defaultHTTPPort
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeStore(); closeErr != nil {
			log.Printf("close item store: %v", closeErr)
		}
	}()

	registry := operation.NewRegistry()
	command := service.NewCommand(store, registry)
	query := service.NewQuery(store)
	settler := settle.New(store, cfg.SettleInterval)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	settlerErr := make(chan error, 1)
	go func() {
		settlerErr <- settler.Run(runCtx)
	}()

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen on grpc port %d: %w", cfg.GRPCPort, err)
	}
	defer grpcListener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	longrunningpb.RegisterOperationsServer(grpcServer, operationsapi.NewServer(registry))
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("items.runtime", grpc_health_v1.HealthCheckResponse_SERVING)

	grpcErr := make(chan error, 1)
	go func() {
		grpcErr <- grpcServer.Serve(grpcListener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-grpcErr
	}()
	log.Printf("grpc server listening at %v", grpcListener.Addr())

	m := metrics.New()
	mux := http.NewServeMux()
	itemsapi.NewHandler(command, query).Register(mux, m)
	mux.Handle("GET /metrics", m.Handler())

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	httpErr := make(chan error, 1)
	go func() {
		httpErr <- httpServer.ListenAndServe()
	}()
	log.Printf("http server listening at %s", httpServer.Addr)

	shutdownHTTP := func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancelShutdown()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown http server: %v", err)
		}
		<-httpErr
	}

	select {
	case <-ctx.Done():
		shutdownHTTP()
		return nil
	case err := <-httpErr:
		return fmt.Errorf("http server: %w", err)
	case err := <-grpcErr:
		grpcErr <- nil
		shutdownHTTP()
		return fmt.Errorf("grpc server: %w", err)
	case err := <-settlerErr:
		shutdownHTTP()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("settler: %w", err)
	}
}

// openStore selects the storage backend from config. SQLite is the default;
// Postgres is used when configured explicitly or when only a database URL
// is provided.
func openStore(ctx context.Context, cfg Config) (storage.ItemStore, func() error, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	if driver == "" {
		if strings.TrimSpace(cfg.DatabaseURL) != "" {
			driver = "postgres"
		} else {
			driver = "sqlite"
		}
	}

	switch driver {
	case "sqlite":
		path := cfg.DBPath
		if strings.TrimSpace(path) == "" {
			path = defaultDBPath
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create storage dir: %w", err)
			}
		}
		store, err := sqlite.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, store.Close, nil
	case "postgres":
		store, err := postgres.Open(ctx, postgres.Config{URL: cfg.DatabaseURL})
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
