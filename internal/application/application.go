package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/palletplan/internal/api"
	"github.com/eugenenazirov/palletplan/internal/config"
	"github.com/eugenenazirov/palletplan/internal/metrics"
	"github.com/eugenenazirov/palletplan/internal/pallet"
	"github.com/eugenenazirov/palletplan/internal/storage"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	storage storage.Storage
	engine  pallet.Engine
	handler *api.Handler
	router  http.Handler
	logger  *zap.Logger
	server  *http.Server
	closers []io.Closer
}

// New initializes the application with all dependencies from the provided configuration.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	store, closers, err := newStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	for _, p := range cfg.Pallets {
		if err := store.Put(ctx, p); err != nil {
			_ = closeAll(closers)
			return nil, fmt.Errorf("failed to apply pallet profile %q: %w", p.Name, err)
		}
	}

	profiles, err := store.List(ctx)
	if err != nil {
		_ = closeAll(closers)
		return nil, fmt.Errorf("failed to list pallet profiles: %w", err)
	}
	metrics.SetProfiles(len(profiles))

	engine := pallet.New()
	handler := api.NewHandler(engine, store,
		api.WithLogger(logger),
		api.WithDefaultUnits(cfg.Units),
	)
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		api.WithMetrics(cfg.EnableMetrics),
		api.WithCORSOrigins(cfg.CORSOrigins...),
	)

	logger.Info("application initialized",
		zap.String("storage", cfg.StorageBackend),
		zap.String("units", string(cfg.Units)),
		zap.Int("pallet_profiles", len(profiles)),
	)

	return &App{
		storage: store,
		engine:  engine,
		handler: handler,
		router:  apiRouter,
		logger:  logger,
		server:  NewServer(cfg, BuildRootHandler(apiRouter, cfg.EnableMetrics)),
		closers: closers,
	}, nil
}

func newStorage(ctx context.Context, cfg config.Config) (storage.Storage, []io.Closer, error) {
	switch cfg.StorageBackend {
	case config.BackendRedis:
		store, err := storage.Dial(ctx, cfg.RedisAddr, cfg.RedisKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect profile storage: %w", err)
		}
		return store, []io.Closer{store}, nil
	case config.BackendMemory, "":
		return storage.NewMemoryStorage(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// BuildRootHandler mounts the API under /api/ and, when enabled, the
// Prometheus exposition endpoint under /metrics.
func BuildRootHandler(apiHandler http.Handler, enableMetrics bool) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	if enableMetrics {
		mux.Handle("GET /metrics", metrics.Handler())
	}
	return mux
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Engine returns the planning engine, for callers that plan without HTTP.
func (a *App) Engine() pallet.Engine {
	return a.engine
}

// Storage returns the pallet profile storage.
func (a *App) Storage() storage.Storage {
	return a.storage
}

// Close releases storage connections. It is safe to call after shutdown.
func (a *App) Close() error {
	return closeAll(a.closers)
}

func closeAll(closers []io.Closer) error {
	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
