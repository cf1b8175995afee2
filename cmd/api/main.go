package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/user-service/internal/api/http"
	"github.com/spec-kit/user-service/internal/api/http/handlers"
	"github.com/spec-kit/user-service/internal/auth"
	"github.com/spec-kit/user-service/internal/cache"
	"github.com/spec-kit/user-service/internal/config"
	"github.com/spec-kit/user-service/internal/events"
	"github.com/spec-kit/user-service/internal/observability"
	"github.com/spec-kit/user-service/internal/persistence"
	"github.com/spec-kit/user-service/internal/repository"
	"github.com/spec-kit/user-service/internal/service"
	"github.com/spec-kit/user-service/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	privateKey, publicKey, err := auth.LoadKeyPair(cfg.Auth.PrivateKeyPath, cfg.Auth.PublicKeyPath)
	if err != nil {
		logger.Fatal("failed to load signing keys", zap.Error(err))
	}
	tokens, err := auth.NewTokenManager(privateKey, publicKey, auth.TokenManagerConfig{
		Issuer:          cfg.Auth.Issuer,
		Audience:        cfg.Auth.Audience,
		AccessTTL:       cfg.Auth.AccessTokenTTL(),
		VerificationTTL: cfg.Auth.VerificationTokenTTL(),
	})
	if err != nil {
		logger.Fatal("failed to init token manager", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, "cache", logger)
	defer redis.Close()

	publisher, busRedis, err := newPublisher(cfg.EventBus, logger)
	if err != nil {
		logger.Fatal("failed to init event bus", zap.Error(err))
	}
	defer publisher.Close() //nolint:errcheck
	if busRedis != nil {
		defer busRedis.Close()
	}

	userRepo := repository.NewUserRepository(pg.PoolHandle())
	userCache := cache.NewUserCache(
		cache.NewRedisCache(redis.Client, cfg.Cache.DefaultTTL()),
		userRepo,
		cfg.Cache.UserTTL(),
		logger,
	)
	revocations := auth.NewRedisRevocationList(redis.Client)
	emitter := events.NewEmitter(publisher, logger, cfg.EventBus.PublishTimeout())

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:    userRepo,
		UserCache:   userCache,
		Tokens:      tokens,
		Revocations: revocations,
		Emitter:     emitter,
		Logger:      logger,
	})
	userService := service.NewUserService(*cfg, service.UserDependencies{
		UserRepo:  userRepo,
		UserCache: userCache,
		Emitter:   emitter,
		Logger:    logger,
	})

	deps := map[string]handlers.Pinger{"postgres": pg, "redis": redis}
	if busRedis != nil {
		deps["event_bus"] = busRedis
	}
	validator := handlers.NewValidator()

	app := httptransport.NewApp(cfg.App.Name,
		httptransport.MiddlewareConfig{Logger: logger, Timeout: cfg.App.RequestTimeout()},
		httptransport.RouteConfig{
			Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps),
			Auth:           handlers.NewAuthHandler(authService, validator),
			Users:          handlers.NewUsersHandler(userService, validator),
			AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), revocations, logger),
		},
	)

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

// newPublisher selects the broker for the configured driver. The returned
// Redis handle is non-nil only for the redis driver.
func newPublisher(cfg config.EventBusConfig, logger *zap.Logger) (events.Publisher, *persistence.Redis, error) {
	switch cfg.Driver {
	case config.EventBusAMQP:
		pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.Exchange)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("event bus ready", zap.String("driver", cfg.Driver), zap.String("exchange", cfg.Exchange))
		return pub, nil, nil
	case config.EventBusMemory:
		broker := events.NewMemoryBroker()
		worker.StartEventLogWorker(broker, logger)
		logger.Info("event bus ready", zap.String("driver", cfg.Driver))
		return broker, nil, nil
	default:
		busRedis := persistence.NewRedis(cfg.Redis, "event_bus", logger)
		logger.Info("event bus ready", zap.String("driver", cfg.Driver), zap.String("queue", cfg.Queue))
		return events.NewRedisQueue(busRedis.Client, cfg.Queue), busRedis, nil
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
