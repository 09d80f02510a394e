package app

import (
	"context"
	"database/sql"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	libdb "chargewatch/backend/libs/db"
	libredis "chargewatch/backend/libs/redis"
	"chargewatch/backend/services/station-poller/internal/clients"
	"chargewatch/backend/services/station-poller/internal/config"
	"chargewatch/backend/services/station-poller/internal/events"
	httpserver "chargewatch/backend/services/station-poller/internal/http"
	"chargewatch/backend/services/station-poller/internal/http/handlers"
	"chargewatch/backend/services/station-poller/internal/http/middleware"
	"chargewatch/backend/services/station-poller/internal/metrics"
	redisstore "chargewatch/backend/services/station-poller/internal/redis"
	"chargewatch/backend/services/station-poller/internal/repository"
	"chargewatch/backend/services/station-poller/internal/scheduler"
	"chargewatch/backend/services/station-poller/internal/service"
	"chargewatch/backend/services/station-poller/internal/validation"
	"chargewatch/backend/services/station-poller/internal/ws"
)

// App wires station poller dependencies.
type App struct {
	scheduler   *scheduler.Scheduler
	server      *httpserver.Server
	feed        *ws.Manager
	db          *sql.DB
	redisClient *redis.Client
	publisher   *events.Publisher
	logger      *zap.Logger
}

// New constructs the application graph. Postgres, Redis and Kafka are wired only when configured.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}

	extractor := clients.NewStationsClient(clients.StationsConfig{
		URL:      cfg.Upstream.URL,
		Timeout:  cfg.Timeout(),
		Retry:    cfg.RetryPolicy(),
		DebugDir: cfg.Storage.OutputDir,
	}, clients.NewDefaultHTTPClient(cfg.Timeout()), logger)
	store := repository.NewCSVStore(cfg.Storage.OutputDir, cfg.Files(), logger)

	pipeline := service.NewPipeline(
		extractor,
		service.NewTransformer(cfg.Operator(), logger),
		validation.NewValidator(cfg.Pipeline.ExpectFullDay),
		store,
		logger,
	)
	registry := metrics.NewRegistry()
	pipeline.SetRecorder(registry)

	if cfg.Database.DSN != "" {
		sqlDB, err := libdb.NewPostgresDB(ctx, cfg.Database.DSN, libdb.Options{})
		if err != nil {
			return nil, err
		}
		a.db = sqlDB
		mirror := repository.NewPostgresMirror(sqlDB)
		if err := mirror.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, err
		}
		pipeline.AddSink(mirror)
		logger.Info("postgres mirror enabled")
	}

	var statusCache handlers.StatusCache
	if cfg.Redis.Addr != "" {
		redisClient, err := libredis.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redisClient = redisClient
		statusStore := redisstore.NewStore(redisClient, cfg.StatusTTL())
		pipeline.AddSink(statusStore)
		statusCache = statusStore
		logger.Info("redis status cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		a.publisher = events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		pipeline.AddSink(a.publisher)
		logger.Info("kafka events enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	a.feed = ws.NewManager(logger)
	pipeline.AddSink(a.feed)

	a.scheduler = scheduler.New(pipeline, scheduler.Config{
		Single:   cfg.Pipeline.Single,
		Duration: cfg.Duration(),
		Interval: cfg.Interval(),
	}, logger)
	if meta, err := store.LoadMetadata(); err == nil {
		a.scheduler.SetLatest(meta)
	}

	if !cfg.HTTP.Disabled {
		router := httpserver.NewRouter(httpserver.RouterDeps{
			RunsHandlers:     handlers.NewRunsHandlers(a.scheduler, logger),
			StationsHandlers: handlers.NewStationsHandlers(statusCache, store, logger),
			HealthHandler:    handlers.NewHealthHandler(),
			MetricsHandler:   registry.Handler(),
			LiveFeedHandler:  ws.NewServer(a.feed, cfg.FeedWriteTimeout(), logger).HandleWS,
		}, middleware.AuthMiddleware(cfg.JWT.Secret))

		read, write, idle, shutdown := cfg.ServerTimeouts()
		a.server = httpserver.NewServer(
			cfg.HTTPAddress(),
			router,
			httpserver.Timeouts{Read: read, Write: write, Idle: idle, Shutdown: shutdown},
			logger,
			middleware.RecoveryMiddleware(logger),
			middleware.LoggingMiddleware(logger),
		)
	}

	return a, nil
}

// Run polls until the scheduler finishes or ctx is cancelled, serving the ops API meanwhile.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErr := make(chan error, 1)
	if a.server != nil {
		go func() { serverErr <- a.server.Run(runCtx) }()
	}
	go a.feed.Start(runCtx)

	done := make(chan scheduler.Stats, 1)
	go func() { done <- a.scheduler.Run(runCtx) }()

	var runErr error
	serverStopped := a.server == nil
	select {
	case <-done:
	case err := <-serverErr:
		serverStopped = true
		runErr = err
		if err != nil {
			a.logger.Error("ops api stopped", zap.Error(err))
		}
		cancel()
		<-done
	}

	cancel()
	if !serverStopped {
		if err := <-serverErr; err != nil && runErr == nil {
			runErr = err
		}
	}
	return runErr
}

// Close releases resources.
func (a *App) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("failed to close kafka writer", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
