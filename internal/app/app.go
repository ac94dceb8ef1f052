package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	httpapi "github.com/shestoi/warehouse/internal/api/http"
	"github.com/shestoi/warehouse/internal/api/http/middleware"
	"github.com/shestoi/warehouse/internal/client/llm"
	"github.com/shestoi/warehouse/internal/config"
	eventkafka "github.com/shestoi/warehouse/internal/event/kafka"
	"github.com/shestoi/warehouse/internal/repository/memory"
	"github.com/shestoi/warehouse/internal/repository/postgres"
	redisrepo "github.com/shestoi/warehouse/internal/repository/redis"
	"github.com/shestoi/warehouse/internal/service"
	platformhealth "github.com/shestoi/warehouse/platform/health/http"
	platformlogging "github.com/shestoi/warehouse/platform/logging"
	"github.com/shestoi/warehouse/platform/observability"
	platformshutdown "github.com/shestoi/warehouse/platform/shutdown"
)

const (
	serviceName = "warehouse"

	outboxMaxRetries = 3
	outboxBackoff    = 500 * time.Millisecond
	healthTimeout    = 2 * time.Second
)

// App содержит все зависимости для запуска и корректного shutdown Warehouse Service
type App struct {
	logger      *zap.Logger
	httpServer  *http.Server
	dispatcher  *eventkafka.OutboxDispatcher
	shutdownMgr *platformshutdown.Manager
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// Build создаёт и настраивает все зависимости Warehouse Service.
// При ошибке уже открытые ресурсы закрываются.
func Build(ctx context.Context, cfg config.Config) (_ *App, err error) {
	logger, err := platformlogging.New(platformlogging.Config{
		ServiceName: serviceName,
		Env:         string(cfg.AppEnv),
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Building Warehouse service", zap.String("http_addr", cfg.HTTPAddr))

	shutdownMgr := platformshutdown.New(cfg.ShutdownTimeout, logger)
	defer func() {
		if err != nil {
			shutdownMgr.Shutdown()
		}
	}()

	otelShutdown, err := observability.Init(ctx, cfg.OTel)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}
	shutdownMgr.Add("otel", otelShutdown)

	// Схема накатывается до открытия пула
	logger.Info("Applying migrations")
	if err := postgres.Migrate(ctx, cfg.PostgresDSN); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("Connecting to PostgreSQL")
	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	shutdownMgr.Add("postgres_pool", platformshutdown.ClosePool(pool))
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("PostgreSQL connection established")

	checks := []platformhealth.Check{{Name: "postgres", Fn: pool.Ping}}

	var sessions middleware.SessionResolver
	if cfg.RedisEnabled {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		shutdownMgr.Add("redis", platformshutdown.CloseWithError(client))
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		sessions = redisrepo.NewSessionRepository(client, logger)
		checks = append(checks, platformhealth.Check{Name: "redis", Fn: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}})
		logger.Info("Redis session store enabled", zap.String("addr", cfg.RedisAddr))
	} else {
		seed := map[string]int64{}
		if cfg.DevSessionID != "" {
			seed[cfg.DevSessionID] = cfg.DevUserID
		}
		sessions = memory.NewSessionRepository(seed)
		logger.Warn("Redis disabled, using in-memory sessions", zap.Int("sessions", len(seed)))
	}

	store := postgres.NewStore(pool)
	items := postgres.NewItemRepository(pool)
	movements := postgres.NewMovementRepository(pool)

	llmClient := llm.NewClient(logger, llm.Config{
		URL:     cfg.LLMAPIURL,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
		Timeout: cfg.LLMTimeout,
	})

	itemService := service.NewItemService(logger, items)
	ledgerService := service.NewLedgerService(logger, store, movements)
	ingestService := service.NewIngestService(logger, llm.NewExtractor(llmClient), items, itemService, ledgerService)
	dashboardService := service.NewDashboardService(logger, postgres.NewDashboardRepository(pool))
	reportService := service.NewReportService(logger, dashboardService, llm.NewReporter(llmClient))

	var dispatcher *eventkafka.OutboxDispatcher
	if cfg.Kafka.Enabled {
		publisher := eventkafka.NewMovementEventPublisher(logger, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		shutdownMgr.Add("kafka_writer", platformshutdown.CloseWithError(publisher))
		dispatcher = eventkafka.NewOutboxDispatcher(logger, movements, postgres.NewOutboxCursor(pool), publisher,
			cfg.OutboxBatchSize, cfg.OutboxInterval, outboxMaxRetries, outboxBackoff)
		logger.Info("Kafka stock events enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	handler := httpapi.NewHandler(logger, itemService, ledgerService, ingestService, dashboardService, reportService)
	router := httpapi.NewRouter(handler, httpapi.RouterConfig{
		Sessions:       sessions,
		HealthChecks:   checks,
		HealthTimeout:  healthTimeout,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		ServiceName:    serviceName,
	}, logger)

	// WriteTimeout больше таймаута модели: пакетная загрузка ждёт её ответа
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.LLMTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	shutdownMgr.Add("http_server", platformshutdown.ShutdownHTTPServer(httpServer))

	return &App{
		logger:      logger,
		httpServer:  httpServer,
		dispatcher:  dispatcher,
		shutdownMgr: shutdownMgr,
	}, nil
}

// Run запускает сервис и блокируется до сигнала shutdown или отмены ctx
func (a *App) Run(ctx context.Context) error {
	defer platformlogging.Sync(a.logger)

	ctx, a.cancel = context.WithCancel(ctx)
	defer a.cancel()

	a.logger.Info("Starting Warehouse service", zap.String("addr", a.httpServer.Addr))

	serveErr := make(chan error, 1)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server error", zap.Error(err))
			serveErr <- err
			a.cancel()
		}
	}()

	if a.dispatcher != nil {
		dispatcherCtx, stopDispatcher := context.WithCancel(ctx)
		done := make(chan struct{})
		// Диспетчер останавливается раньше закрытия kafka writer и пула
		a.shutdownMgr.Add("outbox_dispatcher", func(ctx context.Context) error {
			stopDispatcher()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			defer close(done)
			_ = a.dispatcher.Start(dispatcherCtx)
		}()
	}

	a.shutdownMgr.Wait(ctx)
	a.wg.Wait()
	a.logger.Info("Warehouse service stopped")

	select {
	case err := <-serveErr:
		return err
	default:
		return nil
	}
}
