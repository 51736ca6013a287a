package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kevin07696/flutterwave-gateway/internal/adapters/flutterwave"
	"github.com/kevin07696/flutterwave-gateway/internal/adapters/postgres"
	redisadapter "github.com/kevin07696/flutterwave-gateway/internal/adapters/redis"
	"github.com/kevin07696/flutterwave-gateway/internal/adapters/secrets"
	"github.com/kevin07696/flutterwave-gateway/internal/config"
	"github.com/kevin07696/flutterwave-gateway/internal/domain/ports"
	cronHandler "github.com/kevin07696/flutterwave-gateway/internal/handlers/cron"
	paymentHandler "github.com/kevin07696/flutterwave-gateway/internal/handlers/payment"
	webhookHandler "github.com/kevin07696/flutterwave-gateway/internal/handlers/webhook"
	"github.com/kevin07696/flutterwave-gateway/internal/services/notification"
	paymentService "github.com/kevin07696/flutterwave-gateway/internal/services/payment"
	pkghttp "github.com/kevin07696/flutterwave-gateway/pkg/http"
	"github.com/kevin07696/flutterwave-gateway/pkg/middleware"
	"github.com/kevin07696/flutterwave-gateway/pkg/observability"
	"github.com/kevin07696/flutterwave-gateway/pkg/resilience"
	"github.com/kevin07696/flutterwave-gateway/pkg/security"
	"github.com/kevin07696/flutterwave-gateway/pkg/shutdown"
)

const version = "0.1.0"

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logger)
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Service stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting flutterwave gateway service",
		zap.String("version", version),
		zap.String("environment", cfg.Gateway.Environment),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := secrets.New(ctx, cfg.SecretsConfig(), logger)
	if err != nil {
		return fmt.Errorf("init secret store: %w", err)
	}
	if err := cfg.ResolveSecrets(ctx, store); err != nil {
		return fmt.Errorf("resolve secrets: %w", err)
	}

	shutdowns := shutdown.NewManager(logger, cfg.Server.ShutdownTimeout)

	dbPool, err := initDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	shutdowns.RegisterNoErr("database", dbPool.Close)

	redisClient, tokenStore, err := initTokenStore(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	if redisClient != nil {
		shutdowns.RegisterCloser("redis", redisClient)
	}

	deps, err := initDependencies(cfg, dbPool, tokenStore, logger)
	if err != nil {
		return err
	}
	shutdowns.Register("notifications", deps.notifications.Shutdown)

	health := observability.NewHealthChecker()
	health.Register("database", deps.db)
	if redisClient != nil {
		health.Register("token_store", tokenStore.(observability.Pinger))
	}
	health.Register("gateway", observability.PingFunc(func(context.Context) error {
		if deps.gateway.CircuitState() == resilience.StateOpen {
			return errors.New("circuit breaker open")
		}
		return nil
	}))

	if cfg.Cron.SweepInterval > 0 {
		sweeper := shutdown.NewPeriodicWorker("payment-sweep", cfg.Cron.SweepInterval, logger)
		sweeper.Start(func(ctx context.Context) {
			runSweep(ctx, deps.payments, logger)
		})
		shutdowns.Register("payment-sweep", sweeper.Shutdown)
	}

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst,
		middleware.WithLogger(logger),
		middleware.WithExemptPrefixes("/webhooks/", "/cron/", "/health", "/ready", "/metrics"),
	)
	shutdowns.RegisterNoErr("rate-limiter", rateLimiter.Shutdown)

	timeouts := resilience.DefaultTimeoutConfig()
	router := mux.NewRouter()
	observability.RegisterRoutes(router, health)
	paymentHandler.NewHandler(deps.payments, logger, timeouts).RegisterRoutes(router)
	webhookHandler.NewFlutterwaveHandler(deps.payments, logger).RegisterRoutes(router)
	cronHandler.NewPaymentSweepHandler(deps.payments, logger, cfg.Cron.Secret, timeouts).RegisterRoutes(router)

	var handler http.Handler = router
	handler = middleware.Timeout(timeouts, logger)(handler)
	handler = rateLimiter.Middleware(handler)
	handler = middleware.GzipHandler(nil, logger)(handler)
	handler = observability.HTTPMetricsMiddleware(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Recovery(logger)(handler)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      timeouts.HTTPHandler + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}
	shutdowns.Register("http", httpServer.Shutdown)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	waitCtx, stopWaiting := context.WithCancel(context.Background())
	defer stopWaiting()
	go func() {
		if err, ok := <-serveErr; ok {
			logger.Error("HTTP server failed", zap.Error(err))
			stopWaiting()
		}
	}()

	return shutdowns.Wait(waitCtx)
}

type dependencies struct {
	db            *postgres.DBExecutor
	gateway       *flutterwave.Client
	payments      *paymentService.Service
	notifications *shutdown.Tracker
}

func initLogger(cfg config.LoggerConfig) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return zap.NewExample()
	}
	return logger
}

func initDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	pool, err := postgres.NewPool(ctx, cfg.URL, postgres.PoolConfig{
		MaxConns:        cfg.MaxConns,
		MinConns:        cfg.MinConns,
		MaxConnLifetime: cfg.MaxConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	if cfg.ApplySchema {
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("Database schema applied")
	}

	logger.Info("Database connection established",
		zap.Int32("max_conns", cfg.MaxConns),
	)
	return pool, nil
}

// initTokenStore returns a redis-backed store when REDIS_URL is set, so
// every replica shares one gateway token. Otherwise tokens stay in memory.
func initTokenStore(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*goredis.Client, ports.TokenStore, error) {
	if cfg.URL == "" {
		logger.Info("REDIS_URL not set, caching gateway tokens in memory")
		return nil, flutterwave.NewMemoryTokenStore(), nil
	}

	client, err := redisadapter.NewClient(cfg.URL)
	if err != nil {
		return nil, nil, err
	}
	store := redisadapter.NewTokenStore(client, cfg.TokenKey)
	if err := store.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Info("Gateway tokens cached in redis", zap.String("key", cfg.TokenKey))
	return client, store, nil
}

func initDependencies(cfg *config.Config, pool *pgxpool.Pool, tokens ports.TokenStore, logger *zap.Logger) (*dependencies, error) {
	gatewayCfg := cfg.GatewayConfig()
	gatewayLogger := security.NewZapLogger(logger.Named("flutterwave"))

	httpClient := pkghttp.NewHTTPClient(pkghttp.GatewayClientConfig(), gatewayCfg.Timeout)
	auth := flutterwave.NewAuthManager(gatewayCfg, tokens, httpClient, gatewayLogger)
	gateway, err := flutterwave.NewClient(gatewayCfg, httpClient, auth, gatewayLogger)
	if err != nil {
		return nil, fmt.Errorf("init gateway client: %w", err)
	}

	timeouts := resilience.DefaultTimeoutConfig()
	notifier := notification.NewDispatcher(notification.Config{
		URL:         cfg.Notification.URL,
		Secret:      cfg.Notification.Secret,
		MaxAttempts: cfg.Notification.MaxAttempts,
		Timeouts:    timeouts,
	}, pkghttp.NewHTTPClient(pkghttp.NotificationClientConfig(), timeouts.NotificationDelivery), logger.Named("notification"))

	db := postgres.NewDBExecutor(pool)
	tracker := shutdown.NewTracker("notifications", logger)

	svc := paymentService.NewService(
		paymentService.Config{
			WebhookSecretHash: gatewayCfg.SecretHash,
			WebhookRetention:  cfg.Cron.WebhookRetention,
		},
		db,
		postgres.NewPaymentRepository(db),
		postgres.NewReceiptRepository(db),
		postgres.NewWebhookEventRepository(db),
		gateway,
		notifier,
		logger.Named("payment"),
		paymentService.WithDispatcher(tracker.Dispatch),
	)

	return &dependencies{
		db:            db,
		gateway:       gateway,
		payments:      svc,
		notifications: tracker,
	}, nil
}

// runSweep is the in-process equivalent of the /cron endpoints for
// deployments without an external scheduler
func runSweep(ctx context.Context, svc *paymentService.Service, logger *zap.Logger) {
	result, err := svc.CheckExpiredPayments(ctx, false)
	if err != nil {
		logger.Error("Scheduled payment sweep failed", zap.Error(err))
	} else if result.Checked > 0 {
		logger.Info("Scheduled payment sweep completed",
			zap.Int("checked", result.Checked),
			zap.Int("successful", result.Successful),
			zap.Int("failed", result.Failed),
			zap.Int("expired", result.Expired),
			zap.Int("errors", result.Errors),
		)
	}

	if _, err := svc.CleanupWebhooks(ctx); err != nil {
		logger.Error("Scheduled webhook cleanup failed", zap.Error(err))
	}
}
