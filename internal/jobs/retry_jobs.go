package jobs

import (
	"context"
	"fmt"

	"advisor-marketplace-backend/internal/logger"
)

type RetrySummary struct {
	Retried   int `json:"retried"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

// RetryFailedEmails re-sends invite emails that have failed fewer than the configured number of times.
func (jr *JobRunner) RetryFailedEmails(ctx context.Context) (*RetrySummary, error) {
	summary := &RetrySummary{}
	err := jr.runWithRecovery(JobRetryFailedEmails, func() error {
		pending, err := jr.store.Invites.ListUndelivered(ctx, jr.config.Email.MaxAttempts, jr.now())
		if err != nil {
			return fmt.Errorf("failed to list undelivered invites: %w", err)
		}

		for i := range pending {
			inv := &pending[i]
			summary.Retried++
			if err := jr.services.Notifications.SendRFPInvite(ctx, inv); err != nil {
				logger.Warn("Invite email retry failed",
					"inviteID", inv.ID,
					"attempt", inv.EmailAttempts+1,
					"error", err)
				summary.Failed++
				continue
			}
			summary.Delivered++
		}

		logger.Info("Retried undelivered invite emails",
			"retried", summary.Retried,
			"delivered", summary.Delivered,
			"failed", summary.Failed)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}
