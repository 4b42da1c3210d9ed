package jobs

import (
	"context"
	"fmt"

	"advisor-marketplace-backend/internal/domain"
	"advisor-marketplace-backend/internal/logger"

	"github.com/google/uuid"
)

type ExpireInvitesSummary struct {
	ExpiredCount int         `json:"expired_count"`
	InviteIDs    []uuid.UUID `json:"invite_ids"`
}

// ExpireInvites moves every open invite past its deadline to expired in one batch update.
// Rerunning it finds nothing left to expire.
func (jr *JobRunner) ExpireInvites(ctx context.Context) (*ExpireInvitesSummary, error) {
	summary := &ExpireInvitesSummary{InviteIDs: []uuid.UUID{}}
	err := jr.runWithRecovery(JobExpireInvites, func() error {
		expired, err := jr.store.Invites.ExpireOverdue(ctx, jr.now())
		if err != nil {
			return fmt.Errorf("failed to expire invites: %w", err)
		}

		for _, inv := range expired {
			meta := map[string]any{"rfp_id": inv.RFPID.String()}
			if inv.DeadlineAt != nil {
				meta["deadline_at"] = inv.DeadlineAt.UTC()
			}
			if err := jr.store.Activity.Create(ctx, &domain.ActivityLog{
				Action:     domain.ActivityInviteExpired,
				EntityType: domain.EntityRFPInvite,
				EntityID:   inv.ID,
				Meta:       meta,
			}); err != nil {
				logger.Error("Failed to write expiry activity", "inviteID", inv.ID, "error", err)
			}
			summary.InviteIDs = append(summary.InviteIDs, inv.ID)
		}
		summary.ExpiredCount = len(expired)

		logger.Info("Expired overdue invites", "count", summary.ExpiredCount)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

type ExpireNegotiationsSummary struct {
	CancelledCount int         `json:"cancelled_count"`
	SessionIDs     []uuid.UUID `json:"session_ids"`
}

// ExpireNegotiations cancels negotiation sessions that stayed active past the staleness window.
func (jr *JobRunner) ExpireNegotiations(ctx context.Context) (*ExpireNegotiationsSummary, error) {
	summary := &ExpireNegotiationsSummary{SessionIDs: []uuid.UUID{}}
	err := jr.runWithRecovery(JobExpireNegotiations, func() error {
		cancelled, err := jr.services.Negotiations.ExpireStale(ctx, jr.config.NegotiationStaleAfter())
		if err != nil {
			return err
		}
		for _, s := range cancelled {
			summary.SessionIDs = append(summary.SessionIDs, s.ID)
		}
		summary.CancelledCount = len(cancelled)

		logger.Info("Cancelled stale negotiations", "count", summary.CancelledCount)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}
