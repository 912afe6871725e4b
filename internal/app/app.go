// Package app wires the service together and owns its lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/lumenlabs/identity-service/internal/config"
	"github.com/lumenlabs/identity-service/internal/domain/repository"
	memoryRepo "github.com/lumenlabs/identity-service/internal/domain/repository/memory"
	postgresRepo "github.com/lumenlabs/identity-service/internal/domain/repository/postgres"
	redisRepo "github.com/lumenlabs/identity-service/internal/domain/repository/redis"
	"github.com/lumenlabs/identity-service/internal/events/kafka"
	handler "github.com/lumenlabs/identity-service/internal/handler/http"
	dbpostgres "github.com/lumenlabs/identity-service/internal/infrastructure/database/postgres"
	"github.com/lumenlabs/identity-service/internal/infrastructure/security"
	"github.com/lumenlabs/identity-service/internal/service"
	"github.com/lumenlabs/identity-service/migrations"
)

// App holds the wired service and its closable resources.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	server      *http.Server
	pool        *pgxpool.Pool
	redisClient *redis.Client
	producer    *kafka.Producer
}

// New builds the application: storage, services, transport.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg.Database.AutoMigrate {
		if err := migrations.Up(cfg.Database.DSN(), logger); err != nil {
			return nil, fmt.Errorf("migrations failed: %w", err)
		}
	}

	pool, err := dbpostgres.NewDBPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Everything opened below is released again if any later wiring step
	// fails; the App owns the resources only once New returns.
	var redisClient *redis.Client
	var producer *kafka.Producer
	wired := false
	defer func() {
		if wired {
			return
		}
		if producer != nil {
			_ = producer.Close()
		}
		if redisClient != nil {
			_ = redisClient.Close()
		}
		pool.Close()
	}()

	userRepo := postgresRepo.NewUserRepositoryPostgres(pool)
	accountRepo := postgresRepo.NewOAuthAccountRepositoryPostgres(pool)
	txManager := postgresRepo.NewTxManager(pool)

	var stateConsumer repository.StateConsumer
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		stateConsumer = redisRepo.NewStateConsumer(redisClient, logger)
	} else {
		logger.Warn("Redis disabled, using in-process state tracking; " +
			"replay protection does not span multiple instances")
		stateConsumer = memoryRepo.NewStateConsumer()
	}

	var events service.EventPublisher = service.NopPublisher{}
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, "/identity-service", logger)
		if err != nil {
			return nil, fmt.Errorf("kafka producer failed: %w", err)
		}
		events = producer
	}

	hasher, err := security.NewArgon2idPasswordService(cfg.Password)
	if err != nil {
		return nil, err
	}
	jwtService, err := security.NewJWTService(cfg.JWT)
	if err != nil {
		return nil, err
	}

	registry, err := service.NewProviderRegistry(cfg.OAuth.Providers)
	if err != nil {
		return nil, err
	}
	stateCodec, err := service.NewStateCodec(cfg.OAuth.StateSecret, cfg.OAuth.StateTTL)
	if err != nil {
		return nil, err
	}

	userService := service.NewUserService(userRepo, hasher, events, logger)
	oauthService := service.NewOAuthService(
		registry, stateCodec, stateConsumer,
		userRepo, accountRepo, txManager,
		events, logger, cfg.OAuth.ExchangeTimeout,
	)

	router := handler.SetupRouter(userService, oauthService, jwtService, cfg, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	wired = true
	return &App{
		cfg:         cfg,
		logger:      logger,
		server:      server,
		pool:        pool,
		redisClient: redisClient,
		producer:    producer,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	err := a.server.Shutdown(shutdownCtx)
	a.close()
	return err
}

func (a *App) close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("Failed to close Kafka producer", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}
	a.pool.Close()
}
