// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"time"

	gpubsub "cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/frisbee/internal/api"
	"github.com/JakeFAU/frisbee/internal/clock/system"
	"github.com/JakeFAU/frisbee/internal/config"
	"github.com/JakeFAU/frisbee/internal/dispatcher"
	"github.com/JakeFAU/frisbee/internal/engine/bing"
	collyfetcher "github.com/JakeFAU/frisbee/internal/fetcher/colly"
	"github.com/JakeFAU/frisbee/internal/harvest"
	"github.com/JakeFAU/frisbee/internal/id/project"
	"github.com/JakeFAU/frisbee/internal/metrics"
	"github.com/JakeFAU/frisbee/internal/orchestrator"
	"github.com/JakeFAU/frisbee/internal/policy/ratelimit"
	"github.com/JakeFAU/frisbee/internal/progress"
	progresssinks "github.com/JakeFAU/frisbee/internal/progress/sinks"
	"github.com/JakeFAU/frisbee/internal/publisher/pubsub"
	"github.com/JakeFAU/frisbee/internal/registry"
	"github.com/JakeFAU/frisbee/internal/sink"
	"github.com/JakeFAU/frisbee/internal/storage/gcs"
	"github.com/JakeFAU/frisbee/internal/storage/local"
	"github.com/JakeFAU/frisbee/internal/storage/memory"
	"github.com/JakeFAU/frisbee/internal/storage/postgres"
	"github.com/JakeFAU/frisbee/internal/storage/s3"
)

// Option overrides a service App.New would otherwise build from configuration.
type Option func(*App)

// WithBlobStore replaces the configured artifact backend.
func WithBlobStore(store harvest.BlobStore) Option {
	return func(a *App) { a.blobs = store }
}

// WithPublisher replaces the Pub/Sub client built from pubsub.project_id.
func WithPublisher(p harvest.Publisher) Option {
	return func(a *App) { a.publisher = p }
}

// WithFetcher replaces the colly fetcher used by search modules.
func WithFetcher(f harvest.Fetcher) Option {
	return func(a *App) { a.fetcher = f }
}

// WithClock replaces the system clock.
func WithClock(c harvest.Clock) Option {
	return func(a *App) { a.clock = c }
}

// App holds all the shared, long-lived services for the application.
// It is built once at startup; every run shares its registry, pool and sinks.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *registry.Registry
	pool     *dispatcher.Dispatcher
	runs     *memory.RunStore
	sink     harvest.Sink
	ids      *project.Generator
	hub      *progress.Hub

	clock     harvest.Clock
	fetcher   harvest.Fetcher
	blobs     harvest.BlobStore
	publisher harvest.Publisher

	closers []func()
}

// New creates and initializes an App from cfg. It fails fast if a configured
// backend cannot be initialized.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	a := &App{
		cfg:    cfg,
		logger: logger,
		runs:   memory.NewRunStore(),
		ids:    project.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.clock == nil {
		a.clock = system.New(nil)
	}
	if a.fetcher == nil {
		a.fetcher = collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.HTTP.UserAgent,
			Timeout:   cfg.RequestTimeout(),
		})
	}

	limiter := ratelimit.New(ratelimit.Config{RPS: cfg.HTTP.RateLimitRPS, Burst: cfg.HTTP.RateLimitBurst})
	a.registry = registry.New()
	a.registry.MustRegister(bing.Name, bing.Factory(
		a.fetcher,
		limiter,
		bing.Options{MaxParallel: cfg.HTTP.MaxParallel},
		logger.Named(bing.Name),
	))

	sinks, err := a.buildSinks(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	if len(sinks) > 0 {
		a.sink = sinks
	}

	a.hub = progress.NewHub(progress.Config{Logger: logger},
		progresssinks.NewLogSink(logger.Named("progress")),
		progresssinks.NewRunSink(a.runs, logger),
	)

	a.pool = dispatcher.NewPool(dispatcher.PoolConfig{
		Workers:    cfg.Harvest.Workers,
		QueueDepth: cfg.Harvest.QueueDepth,
	}, a.registry, a.clock, logger)

	logger.Info("application services initialized",
		zap.Strings("engines", a.registry.Names()),
		zap.Int("workers", a.pool.Size()),
		zap.Int("sinks", len(sinks)),
	)
	return a, nil
}

func (a *App) buildSinks(ctx context.Context) (sink.Multi, error) {
	var sinks sink.Multi

	if a.cfg.Storage.Enabled || a.blobs != nil {
		store := a.blobs
		if store == nil {
			var err error
			if store, err = a.buildBlobStore(ctx); err != nil {
				return nil, err
			}
		}
		sinks = append(sinks, sink.NewBlob(store, a.cfg.Storage.Prefix, a.ids, a.logger))
	}

	if a.cfg.DB.DSN != "" {
		outcomes, err := postgres.NewOutcomeStore(ctx, postgres.Config{
			DSN:      a.cfg.DB.DSN,
			Table:    a.cfg.DB.Table,
			MaxConns: a.cfg.DB.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("init outcome store: %w", err)
		}
		a.closers = append(a.closers, outcomes.Close)
		if err := outcomes.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure outcome schema: %w", err)
		}
		a.logger.Info("postgres outcome sink enabled", zap.String("table", a.cfg.DB.Table))
		sinks = append(sinks, outcomes)
	}

	if a.publisher == nil && a.cfg.PubSub.ProjectID != "" {
		client, err := gpubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("init pubsub client: %w", err)
		}
		pub := pubsub.New(client, a.cfg.PubSub.TopicName)
		a.closers = append(a.closers, func() {
			pub.Close()
			if err := client.Close(); err != nil {
				a.logger.Warn("close pubsub client", zap.Error(err))
			}
		})
		a.publisher = pub
	}
	if a.publisher != nil {
		a.logger.Info("completion notices enabled", zap.String("topic", a.cfg.PubSub.TopicName))
		sinks = append(sinks, sink.NewPublish(a.publisher, a.cfg.PubSub.TopicName))
	}
	return sinks, nil
}

func (a *App) buildBlobStore(ctx context.Context) (harvest.BlobStore, error) {
	storageCfg := a.cfg.Storage
	switch storageCfg.Backend {
	case config.BackendLocal, "":
		store, err := local.New(local.Config{BaseDir: storageCfg.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("init local storage: %w", err)
		}
		a.logger.Info("writing artifacts to disk", zap.String("base_dir", storageCfg.BaseDir))
		return store, nil
	case config.BackendMemory:
		return memory.NewBlobStore(), nil
	case config.BackendGCS:
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := client.Close(); err != nil {
				a.logger.Warn("close gcs client", zap.Error(err))
			}
		})
		store, err := gcs.New(client, gcs.Config{Bucket: storageCfg.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs storage: %w", err)
		}
		a.logger.Info("writing artifacts to gcs", zap.String("bucket", storageCfg.GCSBucket))
		return store, nil
	case config.BackendS3:
		store, err := s3.New(ctx, s3.Config{
			Endpoint:  storageCfg.S3.Endpoint,
			Bucket:    storageCfg.S3.Bucket,
			Region:    storageCfg.S3.Region,
			AccessKey: storageCfg.S3.AccessKey,
			SecretKey: storageCfg.S3.SecretKey,
			UseSSL:    storageCfg.S3.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("init s3 storage: %w", err)
		}
		a.logger.Info("writing artifacts to s3", zap.String("bucket", storageCfg.S3.Bucket))
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", storageCfg.Backend)
	}
}

// Start launches the shared worker pool.
func (a *App) Start(ctx context.Context) {
	a.pool.Start(ctx)
}

// Logger returns the root logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Registry exposes the engine registry.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Runs returns the run store backing the API.
func (a *App) Runs() *memory.RunStore {
	return a.runs
}

// Orchestrator builds a run bound to the shared pool and sinks.
func (a *App) Orchestrator() *orchestrator.Orchestrator {
	opts := []orchestrator.Option{
		orchestrator.WithPool(a.pool),
		orchestrator.WithClock(a.clock),
		orchestrator.WithLogger(a.logger),
		orchestrator.WithProject(a.ids.Name()),
		orchestrator.WithProgress(a.hub),
	}
	if a.sink != nil {
		opts = append(opts, orchestrator.WithSink(a.sink))
	}
	return orchestrator.New(a.registry, opts...)
}

// Server builds the HTTP API over the shared services.
func (a *App) Server() *api.Server {
	return api.NewServer(api.Deps{
		Loader:   a.registry,
		Engines:  a.registry,
		Pool:     a.pool,
		Sink:     a.sink,
		Clock:    a.clock,
		Runs:     a.runs,
		Progress: a.hub,
		Config:   a.cfg,
		Logger:   a.logger,
	})
}

// Close stops the pool, flushes progress and releases backend clients, most
// recent first.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Stop()
	}
	if a.hub != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("flush progress", zap.Error(err))
		}
		cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
