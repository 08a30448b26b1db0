package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	apptrepo "inkflow_backend/internal/appointments/repository"
	campaignrepo "inkflow_backend/internal/campaigns/repository"
	campaignsvc "inkflow_backend/internal/campaigns/service"
	clientrepo "inkflow_backend/internal/clients/repository"
	clientsvc "inkflow_backend/internal/clients/service"
	identityrepo "inkflow_backend/internal/identity/repository"
	"inkflow_backend/internal/messaging/email"
	"inkflow_backend/internal/messaging/meta"
	msgrepo "inkflow_backend/internal/messaging/repository"
	msgsvc "inkflow_backend/internal/messaging/service"
	"inkflow_backend/internal/messaging/sms"
	reminderrepo "inkflow_backend/internal/reminders/repository"
	remindersvc "inkflow_backend/internal/reminders/service"
	"inkflow_backend/internal/scheduler"
	socialrepo "inkflow_backend/internal/social/repository"
	"inkflow_backend/platform/config"
	"inkflow_backend/platform/db"
	"inkflow_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler worker", "env", cfg.Env, "queue", cfg.AsynqQueueName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	jobClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize job client", "error", err)
		panic("failed to initialize job client: " + err.Error())
	}
	defer jobClient.Close()

	// Repositories shared across the worker services.
	reminderRepo := reminderrepo.New(pool)
	appointmentRepo := apptrepo.New(pool)
	clientRepo := clientrepo.New(pool)
	identityRepo := identityrepo.New(pool)
	messageRepo := msgrepo.New(pool)
	integrationsRepo := socialrepo.New(pool)
	campaignRepo := campaignrepo.New(pool)

	emailSender := email.NewSender(cfg)
	outbound := msgsvc.New(
		messageRepo,
		emailSender,
		sms.NewClient(cfg, log),
		meta.NewClient(cfg, log),
		integrationsRepo,
		log,
	)

	reminders := remindersvc.New(reminderRepo, appointmentRepo, clientRepo, outbound, messageRepo, identityRepo, emailSender, log)

	clients := clientsvc.New(clientRepo, log)
	campaigns := campaignsvc.New(campaignRepo, clientRepo, clients, outbound, jobClient, cfg.GetAppBaseURL(), log)

	worker, err := scheduler.NewWorker(cfg, reminders, campaigns, reminders, log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	workerErr := make(chan error, 1)
	go func() {
		workerErr <- worker.Run()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, shutting down")
		worker.Shutdown()
	case err := <-workerErr:
		if err != nil {
			log.Error("worker error", "error", err)
			panic("worker error: " + err.Error())
		}
	}
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
