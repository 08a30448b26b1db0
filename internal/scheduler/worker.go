package scheduler

import (
	"context"
	"fmt"
	"time"

	"inkflow_backend/platform/config"
	"inkflow_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// ReminderProcessor delivers a single claimed reminder.
type ReminderProcessor interface {
	ProcessReminder(ctx context.Context, reminderID, orgID uuid.UUID) error
}

// CampaignRunner executes a campaign batch.
type CampaignRunner interface {
	RunCampaign(ctx context.Context, campaignID, orgID uuid.UUID) error
}

// Scanner runs the periodic reconciliation scans. Scans re-derive state from
// the database and guard with time windows, so overlapping runs are safe.
type Scanner interface {
	ScanNoReply(ctx context.Context) error
	ScanDepositsDue(ctx context.Context) error
	ScanDunning(ctx context.Context) error
}

type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, reminders ReminderProcessor, campaigns CampaignRunner, scans Scanner, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{server: server, mux: mux, log: log}

	mux.HandleFunc(TaskReminderSend, func(ctx context.Context, task *asynq.Task) error {
		payload, err := ParseReminderSendPayload(task)
		if err != nil {
			return fmt.Errorf("parse reminder payload: %w", err)
		}
		reminderID, err := uuid.Parse(payload.ReminderID)
		if err != nil {
			return fmt.Errorf("invalid reminder id: %w", err)
		}
		orgID, err := uuid.Parse(payload.OrganizationID)
		if err != nil {
			return fmt.Errorf("invalid organization id: %w", err)
		}
		if err := reminders.ProcessReminder(ctx, reminderID, orgID); err != nil {
			log.JobError(TaskReminderSend, err)
			return err
		}
		return nil
	})

	mux.HandleFunc(TaskCampaignRun, func(ctx context.Context, task *asynq.Task) error {
		payload, err := ParseCampaignRunPayload(task)
		if err != nil {
			return fmt.Errorf("parse campaign payload: %w", err)
		}
		campaignID, err := uuid.Parse(payload.CampaignID)
		if err != nil {
			return fmt.Errorf("invalid campaign id: %w", err)
		}
		orgID, err := uuid.Parse(payload.OrganizationID)
		if err != nil {
			return fmt.Errorf("invalid organization id: %w", err)
		}
		if err := campaigns.RunCampaign(ctx, campaignID, orgID); err != nil {
			log.JobError(TaskCampaignRun, err)
			return err
		}
		return nil
	})

	mux.HandleFunc(TaskScanNoReply, func(ctx context.Context, _ *asynq.Task) error {
		if err := scans.ScanNoReply(ctx); err != nil {
			log.JobError(TaskScanNoReply, err)
			return err
		}
		return nil
	})
	mux.HandleFunc(TaskScanDepositDue, func(ctx context.Context, _ *asynq.Task) error {
		if err := scans.ScanDepositsDue(ctx); err != nil {
			log.JobError(TaskScanDepositDue, err)
			return err
		}
		return nil
	})
	mux.HandleFunc(TaskScanDunning, func(ctx context.Context, _ *asynq.Task) error {
		if err := scans.ScanDunning(ctx); err != nil {
			log.JobError(TaskScanDunning, err)
			return err
		}
		return nil
	})

	interval := cfg.GetScanInterval()
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	periodic := asynq.NewScheduler(opt, nil)
	spec := fmt.Sprintf("@every %s", interval)
	for _, taskType := range []string{TaskScanNoReply, TaskScanDepositDue, TaskScanDunning} {
		if _, err := periodic.Register(spec, asynq.NewTask(taskType, nil), asynq.Queue(queue)); err != nil {
			return nil, fmt.Errorf("register periodic %s: %w", taskType, err)
		}
	}
	w.scheduler = periodic

	return w, nil
}

// Run starts the periodic scheduler and blocks serving tasks.
func (w *Worker) Run() error {
	if err := w.scheduler.Start(); err != nil {
		return err
	}
	return w.server.Run(w.mux)
}

// Shutdown stops the worker and the periodic scheduler.
func (w *Worker) Shutdown() {
	w.scheduler.Shutdown()
	w.server.Shutdown()
}
