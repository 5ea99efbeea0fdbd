package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"

	"github.com/cm8me/shortener/internal/config"
	"github.com/cm8me/shortener/internal/handler"
	"github.com/cm8me/shortener/internal/middleware"
	"github.com/cm8me/shortener/internal/probe"
	"github.com/cm8me/shortener/internal/proto"
	"github.com/cm8me/shortener/internal/service"
	"github.com/cm8me/shortener/internal/storage"
	"github.com/cm8me/shortener/internal/storage/dynamodb"
	"github.com/cm8me/shortener/internal/storage/file"
	"github.com/cm8me/shortener/internal/storage/memory"
	"github.com/cm8me/shortener/internal/storage/postgres"
	"github.com/cm8me/shortener/internal/storage/redis"
	"github.com/cm8me/shortener/internal/worker"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config     *config.Config
	store      storage.KVStore
	closeStore func()
	workers    *worker.ProbeWorkerPool
	handler    http.Handler
	grpcServer *grpc.Server
}

// NewApp opens the configured storage and wires the service, the probe
// workers and both transports.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	store, closeStore, err := newStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.APIToken == "" {
		log.Warn().Msg("API_TOKEN is empty, POST / will reject every request")
	}

	prober := probe.New(cfg.ProbeTimeout)

	svcConfig := service.Config{
		BaseURL:     cfg.HostURL,
		MaxAttempts: cfg.SlugMaxAttempts,
		ListLimit:   cfg.ListLimit,
		Prober:      prober,
	}

	var workers *worker.ProbeWorkerPool
	if cfg.ProbeAsync {
		workerConfig := worker.DefaultConfig()
		workerConfig.JobTimeout = 2*cfg.ProbeTimeout + time.Second
		workers = worker.NewProbeWorkerPool(prober, store, workerConfig)
		workers.Start()
		svcConfig.ProbeQueue = workers
	}

	urlService := service.NewURLService(store, svcConfig)

	auth := middleware.NewTokenAuth(cfg.APIToken)

	var pinger storage.Pinger
	if p, ok := store.(storage.Pinger); ok {
		pinger = p
	}

	httpHandler := handler.NewHandler(urlService, auth, pinger, cfg.HostURL)

	a := &App{
		config:     cfg,
		store:      store,
		closeStore: closeStore,
		workers:    workers,
		handler:    httpHandler.RegisterRoutes(),
	}

	if cfg.GRPCAddress != "" {
		grpcAuth := middleware.NewGRPCAuthMiddleware(auth, proto.ShortenFullMethod)
		a.grpcServer = grpc.NewServer(grpc.UnaryInterceptor(grpcAuth.UnaryInterceptor))
		proto.RegisterShortenerServer(a.grpcServer, handler.NewShortenerGRPCServer(urlService))
	}

	return a, nil
}

func newStorage(ctx context.Context, cfg *config.Config) (storage.KVStore, func(), error) {
	kind := cfg.StorageKind()
	log.Info().Str("storage", kind).Msg("Opening storage")

	switch kind {
	case config.StorageFile:
		s, err := file.NewStorage(cfg.FilePath())
		if err != nil {
			return nil, nil, fmt.Errorf("error opening file storage: %w", err)
		}
		return s, func() {}, nil

	case config.StoragePostgres:
		s, err := postgres.NewStorage(ctx, cfg.DatabaseDSN, cfg.Namespace)
		if err != nil {
			return nil, nil, fmt.Errorf("error opening postgres storage: %w", err)
		}
		return s, s.Close, nil

	case config.StorageRedis:
		s, err := redis.NewStorage(ctx, cfg.RedisURL, cfg.Namespace)
		if err != nil {
			return nil, nil, fmt.Errorf("error opening redis storage: %w", err)
		}
		return s, func() {
			if err := s.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close redis client")
			}
		}, nil

	case config.StorageDynamoDB:
		s, err := dynamodb.NewStorage(ctx, dynamodb.Options{
			Region:   cfg.AWSRegion,
			Table:    cfg.DynamoTable(),
			Endpoint: cfg.DynamoDBEndpoint,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("error opening dynamodb storage: %w", err)
		}
		return s, func() {}, nil

	default:
		return memory.NewStorage(), func() {}, nil
	}
}

// Run serves HTTP, and gRPC when configured, until ctx is cancelled or a
// server fails, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	server := &http.Server{
		Addr:    a.config.ServerAddress,
		Handler: a.handler,
	}

	go func() {
		log.Info().
			Str("address", a.config.ServerAddress).
			Str("host_url", a.config.HostURL).
			Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if a.grpcServer != nil {
		lis, err := net.Listen("tcp", a.config.GRPCAddress)
		if err != nil {
			errCh <- fmt.Errorf("grpc listen: %w", err)
		} else {
			go func() {
				log.Info().Str("address", a.config.GRPCAddress).Msg("Starting gRPC server")
				if err := a.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
					errCh <- fmt.Errorf("grpc server: %w", err)
				}
			}()
		}
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case runErr = <-errCh:
		log.Error().Err(runErr).Msg("Server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	if a.grpcServer != nil {
		a.grpcServer.GracefulStop()
	}

	a.Close()

	return runErr
}

// Close drains the probe workers and releases the storage.
func (a *App) Close() {
	if a.workers != nil {
		if err := a.workers.Shutdown(shutdownTimeout); err != nil {
			log.Error().Err(err).Msg("Probe workers did not finish in time")
		}
	}

	a.closeStore()
}
