package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"advisor-marketplace-backend/internal/config"
	"advisor-marketplace-backend/internal/domain"
	"advisor-marketplace-backend/internal/mocks"
	"advisor-marketplace-backend/internal/repository/postgres"
	"advisor-marketplace-backend/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type runnerFixture struct {
	invites       *mocks.InviteRepo
	activity      *mocks.ActivityRepo
	notifications *mocks.NotificationService
	negotiations  *mocks.NegotiationService
	runner        *JobRunner
	now           time.Time
}

func newRunnerFixture() *runnerFixture {
	f := &runnerFixture{
		invites:       new(mocks.InviteRepo),
		activity:      new(mocks.ActivityRepo),
		notifications: new(mocks.NotificationService),
		negotiations:  new(mocks.NegotiationService),
		now:           time.Date(2026, 4, 1, 7, 0, 0, 0, time.UTC),
	}
	cfg := &config.Config{
		Email:     config.EmailConfig{MaxAttempts: 3},
		Reminders: config.ReminderConfig{CooldownHours: 24, FinalCooldownHours: 12, NegotiationStaleDays: 30},
	}
	store := &postgres.Store{Invites: f.invites, Activity: f.activity}
	f.runner = NewJobRunner(store, &Services{Notifications: f.notifications, Negotiations: f.negotiations}, cfg)
	f.runner.now = func() time.Time { return f.now }
	return f
}

func stageRule(stage int) any {
	return mock.MatchedBy(func(r domain.ReminderRule) bool { return r.Stage == stage })
}

func TestExpireInvites(t *testing.T) {
	ctx := context.Background()

	t.Run("SecondRunExpiresNothing", func(t *testing.T) {
		f := newRunnerFixture()
		deadline := f.now.Add(-time.Hour)
		expired := []domain.RFPInvite{
			{ID: uuid.New(), RFPID: uuid.New(), Status: domain.InviteStatusExpired, DeadlineAt: &deadline},
			{ID: uuid.New(), RFPID: uuid.New(), Status: domain.InviteStatusExpired, DeadlineAt: &deadline},
		}
		f.invites.On("ExpireOverdue", ctx, f.now).Return(expired, nil).Once()
		f.invites.On("ExpireOverdue", ctx, f.now).Return([]domain.RFPInvite{}, nil).Once()
		f.activity.On("Create", ctx, mock.MatchedBy(func(e *domain.ActivityLog) bool {
			return e.Action == domain.ActivityInviteExpired && e.ActorID == nil
		})).Return(nil).Twice()

		first, err := f.runner.ExpireInvites(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, first.ExpiredCount)
		assert.Equal(t, []uuid.UUID{expired[0].ID, expired[1].ID}, first.InviteIDs)

		second, err := f.runner.ExpireInvites(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, second.ExpiredCount)

		body, err := json.Marshal(second)
		require.NoError(t, err)
		assert.JSONEq(t, `{"expired_count":0,"invite_ids":[]}`, string(body))
		f.activity.AssertExpectations(t)
	})

	t.Run("ActivityFailureDoesNotFailJob", func(t *testing.T) {
		f := newRunnerFixture()
		f.invites.On("ExpireOverdue", ctx, f.now).Return([]domain.RFPInvite{{ID: uuid.New()}}, nil).Once()
		f.activity.On("Create", ctx, mock.Anything).Return(errors.New("insert failed")).Once()

		summary, err := f.runner.ExpireInvites(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.ExpiredCount)
	})

	t.Run("QueryError", func(t *testing.T) {
		f := newRunnerFixture()
		f.invites.On("ExpireOverdue", ctx, f.now).Return(nil, errors.New("connection reset")).Once()

		_, err := f.runner.ExpireInvites(ctx)
		assert.ErrorContains(t, err, "connection reset")
	})

	t.Run("PanicBecomesError", func(t *testing.T) {
		f := newRunnerFixture()
		f.invites.On("ExpireOverdue", ctx, f.now).Panic("boom").Once()

		_, err := f.runner.ExpireInvites(ctx)
		assert.ErrorContains(t, err, "panicked")
	})
}

func TestSendRFPReminders(t *testing.T) {
	ctx := context.Background()

	t.Run("CountsPerStage", func(t *testing.T) {
		f := newRunnerFixture()
		far := f.now.Add(10 * 24 * time.Hour)
		soon := f.now.Add(36 * time.Hour)
		final := f.now.Add(30 * time.Hour)

		unopened := []domain.ReminderCandidate{
			{RFPInvite: domain.RFPInvite{ID: uuid.New(), Status: domain.InviteStatusSent, DeadlineAt: &far}},
			{RFPInvite: domain.RFPInvite{ID: uuid.New(), Status: domain.InviteStatusSent, DeadlineAt: &far}},
		}
		noSubmission := []domain.ReminderCandidate{
			{RFPInvite: domain.RFPInvite{ID: uuid.New(), Status: domain.InviteStatusOpened, DeadlineAt: &far}},
			{RFPInvite: domain.RFPInvite{ID: uuid.New(), Status: domain.InviteStatusOpened, DeadlineAt: &soon}},
		}
		finalDeadline := []domain.ReminderCandidate{
			{RFPInvite: domain.RFPInvite{ID: uuid.New(), Status: domain.InviteStatusInProgress, DeadlineAt: &final}},
		}

		f.invites.On("ListReminderCandidates", ctx, stageRule(1), f.now).Return(unopened, nil).Once()
		f.invites.On("ListReminderCandidates", ctx, stageRule(2), f.now).Return(noSubmission, nil).Once()
		f.invites.On("ListReminderCandidates", ctx, stageRule(3), f.now).Return(finalDeadline, nil).Once()

		f.notifications.On("SendReminder", ctx, &unopened[0], stageRule(1)).Return(nil).Once()
		f.notifications.On("SendReminder", ctx, &unopened[1], stageRule(1)).Return(errors.New("rate limited")).Once()
		f.notifications.On("SendReminder", ctx, &noSubmission[0], stageRule(2)).Return(nil).Once()
		f.notifications.On("SendReminder", ctx, &finalDeadline[0], stageRule(3)).Return(nil).Once()

		summary, err := f.runner.SendRFPReminders(ctx)
		require.NoError(t, err)
		assert.Equal(t, StageSummary{Sent: 1, Failed: 1}, summary.Stage1)
		assert.Equal(t, StageSummary{Sent: 1, Skipped: 1}, summary.Stage2, "deadline two days out is skipped")
		assert.Equal(t, StageSummary{Sent: 1}, summary.Stage3)
		assert.Equal(t, 3, summary.TotalSent)
		assert.Equal(t, 1, summary.TotalFailed)
		f.notifications.AssertExpectations(t)
		f.notifications.AssertNumberOfCalls(t, "SendReminder", 4)
	})

	t.Run("SentButNotRecordedCountedSeparately", func(t *testing.T) {
		f := newRunnerFixture()
		far := f.now.Add(10 * 24 * time.Hour)
		c := []domain.ReminderCandidate{
			{RFPInvite: domain.RFPInvite{ID: uuid.New(), Status: domain.InviteStatusSent, DeadlineAt: &far}},
			{RFPInvite: domain.RFPInvite{ID: uuid.New(), Status: domain.InviteStatusSent, DeadlineAt: &far}},
		}

		f.invites.On("ListReminderCandidates", ctx, stageRule(1), f.now).Return(c, nil).Once()
		f.invites.On("ListReminderCandidates", ctx, mock.MatchedBy(func(r domain.ReminderRule) bool { return r.Stage != 1 }), f.now).
			Return([]domain.ReminderCandidate{}, nil)
		f.notifications.On("SendReminder", ctx, &c[0], stageRule(1)).
			Return(fmt.Errorf("%w: stage 1: %w", service.ErrReminderNotRecorded, errors.New("deadlock detected"))).Once()
		f.notifications.On("SendReminder", ctx, &c[1], stageRule(1)).Return(errors.New("rate limited")).Once()

		summary, err := f.runner.SendRFPReminders(ctx)
		require.NoError(t, err)
		assert.Equal(t, StageSummary{Failed: 1, Unrecorded: 1}, summary.Stage1)
		assert.Equal(t, 0, summary.TotalSent)
		assert.Equal(t, 1, summary.TotalFailed)
		assert.Equal(t, 1, summary.TotalUnrecorded)
	})

	t.Run("RerunAfterSuccessSendsNothing", func(t *testing.T) {
		f := newRunnerFixture()
		far := f.now.Add(10 * 24 * time.Hour)
		c := []domain.ReminderCandidate{{RFPInvite: domain.RFPInvite{ID: uuid.New(), Status: domain.InviteStatusSent, DeadlineAt: &far}}}

		// The first run advances the stage, so the eligibility query returns nothing on the second.
		f.invites.On("ListReminderCandidates", ctx, stageRule(1), f.now).Return(c, nil).Once()
		f.invites.On("ListReminderCandidates", ctx, stageRule(1), f.now).Return([]domain.ReminderCandidate{}, nil).Once()
		f.invites.On("ListReminderCandidates", ctx, mock.MatchedBy(func(r domain.ReminderRule) bool { return r.Stage != 1 }), f.now).
			Return([]domain.ReminderCandidate{}, nil)
		f.notifications.On("SendReminder", ctx, mock.Anything, mock.Anything).Return(nil).Once()

		first, err := f.runner.SendRFPReminders(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, first.TotalSent)

		second, err := f.runner.SendRFPReminders(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, second.TotalSent)
		f.notifications.AssertNumberOfCalls(t, "SendReminder", 1)
	})

	t.Run("UsesConfiguredCooldowns", func(t *testing.T) {
		f := newRunnerFixture()
		f.invites.On("ListReminderCandidates", ctx, mock.MatchedBy(func(r domain.ReminderRule) bool {
			if r.Stage == domain.ReminderStageFinalDeadline {
				return r.Cooldown == 12*time.Hour
			}
			return r.Cooldown == 24*time.Hour
		}), f.now).Return([]domain.ReminderCandidate{}, nil).Times(3)

		_, err := f.runner.SendRFPReminders(ctx)
		require.NoError(t, err)
		f.invites.AssertExpectations(t)
	})

	t.Run("QueryErrorFailsJob", func(t *testing.T) {
		f := newRunnerFixture()
		f.invites.On("ListReminderCandidates", ctx, stageRule(1), f.now).Return(nil, errors.New("syntax error")).Once()

		_, err := f.runner.SendRFPReminders(ctx)
		assert.ErrorContains(t, err, "unopened")
	})
}

func TestExpireNegotiations(t *testing.T) {
	ctx := context.Background()
	f := newRunnerFixture()
	sessions := []domain.NegotiationSession{{ID: uuid.New()}, {ID: uuid.New()}}
	f.negotiations.On("ExpireStale", ctx, 30*24*time.Hour).Return(sessions, nil).Once()

	summary, err := f.runner.ExpireNegotiations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.CancelledCount)
	assert.Equal(t, []uuid.UUID{sessions[0].ID, sessions[1].ID}, summary.SessionIDs)
}

func TestRetryFailedEmails(t *testing.T) {
	ctx := context.Background()
	f := newRunnerFixture()
	pending := []domain.RFPInvite{
		{ID: uuid.New(), EmailAttempts: 1},
		{ID: uuid.New(), EmailAttempts: 2},
	}
	f.invites.On("ListUndelivered", ctx, 3, f.now).Return(pending, nil).Once()
	f.notifications.On("SendRFPInvite", ctx, &pending[0]).Return(nil).Once()
	f.notifications.On("SendRFPInvite", ctx, &pending[1]).Return(errors.New("bounced")).Once()

	summary, err := f.runner.RetryFailedEmails(ctx)
	require.NoError(t, err)
	assert.Equal(t, RetrySummary{Retried: 2, Delivered: 1, Failed: 1}, *summary)
}

func TestJobs(t *testing.T) {
	f := newRunnerFixture()
	jobs := f.runner.Jobs()
	for _, name := range []string{JobExpireInvites, JobRFPReminders, JobExpireNegotiations, JobRetryFailedEmails} {
		assert.Contains(t, jobs, name)
	}
}
