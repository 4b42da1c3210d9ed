package jobs

import (
	"context"
	"errors"
	"fmt"

	"advisor-marketplace-backend/internal/domain"
	"advisor-marketplace-backend/internal/logger"
	"advisor-marketplace-backend/internal/service"
)

// StageSummary counts one reminder stage. Unrecorded reminders reached the provider but their
// stage was not saved, so the next run may send them again.
type StageSummary struct {
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
	Unrecorded int `json:"unrecorded"`
}

type RemindersSummary struct {
	Stage1          StageSummary `json:"stage_1"`
	Stage2          StageSummary `json:"stage_2"`
	Stage3          StageSummary `json:"stage_3"`
	TotalSent       int          `json:"total_sent"`
	TotalFailed     int          `json:"total_failed"`
	TotalUnrecorded int          `json:"total_unrecorded"`
}

func (s *RemindersSummary) stage(n int) *StageSummary {
	switch n {
	case domain.ReminderStageUnopened:
		return &s.Stage1
	case domain.ReminderStageNoSubmission:
		return &s.Stage2
	default:
		return &s.Stage3
	}
}

// SendRFPReminders evaluates each reminder stage independently and sends at most one
// email per invite per stage. A failed send leaves the invite eligible for the next run.
func (jr *JobRunner) SendRFPReminders(ctx context.Context) (*RemindersSummary, error) {
	summary := &RemindersSummary{}
	err := jr.runWithRecovery(JobRFPReminders, func() error {
		rules := domain.DefaultReminderRules(jr.config.ReminderCooldown(), jr.config.FinalReminderCooldown())
		for _, rule := range rules {
			now := jr.now()
			candidates, err := jr.store.Invites.ListReminderCandidates(ctx, rule, now)
			if err != nil {
				return fmt.Errorf("failed to list %s reminder candidates: %w", rule.Name, err)
			}

			st := summary.stage(rule.Stage)
			for i := range candidates {
				c := &candidates[i]
				if rule.Guarded(&c.RFPInvite, now) {
					st.Skipped++
					continue
				}
				err := jr.services.Notifications.SendReminder(ctx, c, rule)
				if errors.Is(err, service.ErrReminderNotRecorded) {
					st.Unrecorded++
					continue
				}
				if err != nil {
					logger.Error("Failed to send reminder",
						"inviteID", c.ID,
						"stage", rule.Stage,
						"error", err)
					st.Failed++
					continue
				}
				st.Sent++
			}

			summary.TotalSent += st.Sent
			summary.TotalFailed += st.Failed
			summary.TotalUnrecorded += st.Unrecorded
			logger.Info("Reminder stage processed",
				"stage", rule.Name,
				"candidates", len(candidates),
				"sent", st.Sent,
				"failed", st.Failed,
				"skipped", st.Skipped,
				"unrecorded", st.Unrecorded)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}
