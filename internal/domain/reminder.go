package domain

import (
	"slices"
	"time"
)

const (
	ReminderStageNone          = 0
	ReminderStageUnopened      = 1
	ReminderStageNoSubmission  = 2
	ReminderStageFinalDeadline = 3
)

// ReminderRule describes when an invite is eligible for the reminder of one stage.
// Stages are evaluated independently; the only coupling between them is that an
// invite never receives a stage at or below the one it already reached.
type ReminderRule struct {
	Stage    int
	Name     string
	Template string
	Statuses []InviteStatus

	// MinAge is the minimum time since the invite was created. Zero disables the check.
	MinAge time.Duration
	// Cooldown is the minimum time since the last notification of any kind.
	Cooldown time.Duration
	// DeadlineFrom and DeadlineTo bound the deadline relative to now. Both zero disables the window.
	DeadlineFrom time.Duration
	DeadlineTo   time.Duration
	// SkipWithinDays skips invites whose deadline is this many days away or fewer.
	// Nil disables the guard.
	SkipWithinDays *int
}

func (r ReminderRule) HasDeadlineWindow() bool {
	return r.DeadlineFrom != 0 || r.DeadlineTo != 0
}

// Eligible mirrors the SQL selection predicate for the rule.
func (r ReminderRule) Eligible(inv *RFPInvite, now time.Time) bool {
	if !slices.Contains(r.Statuses, inv.Status) {
		return false
	}
	if inv.ReminderStage >= r.Stage {
		return false
	}
	if r.MinAge > 0 && inv.CreatedAt.After(now.Add(-r.MinAge)) {
		return false
	}
	if inv.LastNotificationAt != nil && !inv.LastNotificationAt.Before(now.Add(-r.Cooldown)) {
		return false
	}
	if r.HasDeadlineWindow() {
		if inv.DeadlineAt == nil {
			return false
		}
		if inv.DeadlineAt.Before(now.Add(r.DeadlineFrom)) || inv.DeadlineAt.After(now.Add(r.DeadlineTo)) {
			return false
		}
	}
	return true
}

// Guarded reports whether an eligible invite should still be skipped because its deadline is too close.
func (r ReminderRule) Guarded(inv *RFPInvite, now time.Time) bool {
	if r.SkipWithinDays == nil {
		return false
	}
	days := inv.DaysToDeadline(now)
	return days != nil && *days <= *r.SkipWithinDays
}

// DefaultReminderRules returns the three reminder stages with the given cooldowns.
func DefaultReminderRules(cooldown, finalCooldown time.Duration) []ReminderRule {
	day := 24 * time.Hour
	unopenedGuard, noSubmissionGuard := 0, 2
	return []ReminderRule{
		{
			Stage:          ReminderStageUnopened,
			Name:           "unopened",
			Template:       "reminder_unopened",
			Statuses:       []InviteStatus{InviteStatusSent},
			MinAge:         3 * day,
			Cooldown:       cooldown,
			SkipWithinDays: &unopenedGuard,
		},
		{
			Stage:          ReminderStageNoSubmission,
			Name:           "no_submission",
			Template:       "reminder_no_submission",
			Statuses:       []InviteStatus{InviteStatusSent, InviteStatusOpened},
			MinAge:         7 * day,
			Cooldown:       cooldown,
			SkipWithinDays: &noSubmissionGuard,
		},
		{
			Stage:        ReminderStageFinalDeadline,
			Name:         "final_deadline",
			Template:     "reminder_final_deadline",
			Statuses:     []InviteStatus{InviteStatusSent, InviteStatusOpened, InviteStatusInProgress},
			Cooldown:     finalCooldown,
			DeadlineFrom: 24 * time.Hour,
			DeadlineTo:   48 * time.Hour,
		},
	}
}
