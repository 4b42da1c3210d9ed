package jobs

import (
	"context"
	"fmt"
	"time"

	"advisor-marketplace-backend/internal/config"
	"advisor-marketplace-backend/internal/logger"
	"advisor-marketplace-backend/internal/metrics"
	"advisor-marketplace-backend/internal/repository/postgres"
	"advisor-marketplace-backend/internal/service"
)

// Job names double as the trigger path under /functions/v1/.
const (
	JobExpireInvites      = "expire-invites"
	JobRFPReminders       = "rfp-reminders"
	JobExpireNegotiations = "expire-negotiations"
	JobRetryFailedEmails  = "retry-failed-emails"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	store    *postgres.Store
	services *Services
	config   *config.Config
	now      func() time.Time
}

// Services holds all service dependencies needed by jobs
type Services struct {
	Notifications service.NotificationService
	Negotiations  service.NegotiationService
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(store *postgres.Store, services *Services, cfg *config.Config) *JobRunner {
	return &JobRunner{
		store:    store,
		services: services,
		config:   cfg,
		now:      time.Now,
	}
}

// Config returns the configuration the runner was built with
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// Jobs maps each job name to its entry point
func (jr *JobRunner) Jobs() map[string]func(context.Context) (any, error) {
	return map[string]func(context.Context) (any, error){
		JobExpireInvites: func(ctx context.Context) (any, error) {
			return jr.ExpireInvites(ctx)
		},
		JobRFPReminders: func(ctx context.Context) (any, error) {
			return jr.SendRFPReminders(ctx)
		},
		JobExpireNegotiations: func(ctx context.Context) (any, error) {
			return jr.ExpireNegotiations(ctx)
		},
		JobRetryFailedEmails: func(ctx context.Context) (any, error) {
			return jr.RetryFailedEmails(ctx)
		},
	}
}

// runWithRecovery wraps job execution with panic recovery and records the run
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func() error) (err error) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
			err = fmt.Errorf("job %s panicked: %v", jobName, r)
		}
		metrics.ObserveJob(jobName, started, err)
		if err != nil {
			logger.Error("Job failed", "job", jobName, "error", err, "duration", time.Since(started))
			return
		}
		logger.Info("Job completed", "job", jobName, "duration", time.Since(started))
	}()

	logger.Info("Starting job", "job", jobName)
	return jobFunc()
}

// RunAll runs every job once in dependency order (for manual execution)
func (jr *JobRunner) RunAll(ctx context.Context) error {
	// Expire first so reminders never go out for invites past their deadline.
	if _, err := jr.ExpireInvites(ctx); err != nil {
		return err
	}
	if _, err := jr.SendRFPReminders(ctx); err != nil {
		return err
	}
	if _, err := jr.ExpireNegotiations(ctx); err != nil {
		return err
	}
	_, err := jr.RetryFailedEmails(ctx)
	return err
}
