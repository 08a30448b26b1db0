package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inkflow_backend/internal/appointments"
	"inkflow_backend/internal/campaigns"
	"inkflow_backend/internal/clients"
	"inkflow_backend/internal/deposits"
	apphttp "inkflow_backend/internal/http"
	"inkflow_backend/internal/http/router"
	"inkflow_backend/internal/identity"
	"inkflow_backend/internal/leads"
	"inkflow_backend/internal/messaging"
	"inkflow_backend/internal/payments"
	"inkflow_backend/internal/scheduler"
	"inkflow_backend/internal/social"
	socialrepo "inkflow_backend/internal/social/repository"
	"inkflow_backend/migrations"
	"inkflow_backend/platform/config"
	"inkflow_backend/platform/db"
	"inkflow_backend/platform/logger"
	"inkflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting api", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.Migrate(ctx, cfg, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	rdb := initRedis(cfg, log)
	if rdb != nil {
		defer rdb.Close()
	}

	jobClient := initJobClient(cfg, log)
	if jobClient != nil {
		defer jobClient.Close()
	}

	val := validator.New()

	// Domain modules. Messaging resolves Meta page tokens through the social
	// integrations store, and social ingestion writes into the messaging
	// store, so the integrations repository is built first to break the loop.
	identityModule := identity.NewModule(pool, cfg, log, val)
	clientsModule := clients.NewModule(pool, log, val)

	leadsModule := leads.NewModule(pool, rdb, leads.RateLimitSettings{
		Limit:   cfg.GetIntakeRateLimit(),
		Window:  cfg.GetIntakeRateWindow(),
		Timeout: cfg.GetIntakeRateTimeout(),
	}, clientsModule.Service(), identityModule.Repository(), log, val)

	integrationsRepo := socialrepo.New(pool)
	messagingModule := messaging.NewModule(pool, cfg, clientsModule.Repository(), integrationsRepo, log, val)

	socialModule, err := social.NewModule(pool, cfg, messagingModule.Repository(), clientsModule.Repository(), clientsModule.Service(), leadsModule.Service(), log, val)
	if err != nil {
		log.Error("failed to initialize social module", "error", err)
		panic("failed to initialize social module: " + err.Error())
	}

	appointmentsModule := appointments.NewModule(pool, jobClient, identityModule.Repository(), clientsModule.Repository(), log, val)
	paymentsModule := payments.NewModule(cfg, appointmentsModule.Repository(), identityModule.Repository(), log)
	depositsModule := deposits.NewModule(appointmentsModule.Repository(), clientsModule.Repository(), identityModule.Repository(), paymentsModule.Client(), messagingModule.Service(), log, val)
	campaignsModule := campaigns.NewModule(pool, clientsModule.Repository(), clientsModule.Service(), messagingModule.Service(), jobClient, cfg.GetAppBaseURL(), log, val)

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: pool,
		Modules: []apphttp.Module{
			identityModule,
			clientsModule,
			leadsModule,
			appointmentsModule,
			depositsModule,
			messagingModule,
			socialModule,
			paymentsModule,
			campaignsModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initRedis(cfg config.SchedulerConfig, log *logger.Logger) *redis.Client {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; intake rate limiting disabled")
		return nil
	}
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		log.Error("invalid REDIS_URL", "error", err)
		return nil
	}
	return redis.NewClient(opt)
}

func initJobClient(cfg config.SchedulerConfig, log *logger.Logger) *scheduler.Client {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; reminder and campaign jobs disabled")
		return nil
	}
	jobClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize job client", "error", err)
		return nil
	}
	return jobClient
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
