package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"advisor-marketplace-backend/internal/domain"
	"advisor-marketplace-backend/internal/logger"
	"advisor-marketplace-backend/internal/repository"

	"github.com/google/uuid"
)

type inviteService struct {
	invites       repository.InviteRepository
	activity      repository.ActivityLogRepository
	directory     repository.DirectoryRepository
	notifications NotificationService
	now           func() time.Time
}

func NewInviteService(
	invites repository.InviteRepository,
	activity repository.ActivityLogRepository,
	directory repository.DirectoryRepository,
	notifications NotificationService,
) InviteService {
	return &inviteService{
		invites:       invites,
		activity:      activity,
		directory:     directory,
		notifications: notifications,
		now:           time.Now,
	}
}

// DispatchRFP creates one invite per shortlisted advisor and emails each of them.
// A failed email does not fail the dispatch: the attempt is recorded and retried by the sweep job.
func (s *inviteService) DispatchRFP(ctx context.Context, ownerID, rfpID uuid.UUID, advisorIDs []uuid.UUID, deadline *time.Time) (*DispatchResult, error) {
	logger.EnterMethod("inviteService.DispatchRFP", "rfpID", rfpID, "advisors", len(advisorIDs))

	if len(advisorIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one advisor is required", ErrValidation)
	}
	if deadline != nil && !deadline.After(s.now()) {
		return nil, fmt.Errorf("%w: deadline must be in the future", ErrValidation)
	}

	rfp, err := s.directory.GetRFP(ctx, rfpID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	project, err := s.directory.GetProject(ctx, rfp.ProjectID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if project.OwnerID != ownerID {
		return nil, ErrForbidden
	}

	// Resolve the whole shortlist before the first insert so an unknown advisor fails the
	// dispatch without leaving half of it behind.
	advisors := make([]*domain.Advisor, 0, len(advisorIDs))
	seen := make(map[uuid.UUID]bool, len(advisorIDs))
	for _, advisorID := range advisorIDs {
		if seen[advisorID] {
			continue
		}
		seen[advisorID] = true

		advisor, err := s.directory.GetAdvisor(ctx, advisorID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown advisor %s", ErrValidation, advisorID)
		}
		if err != nil {
			logger.ExitMethodWithError("inviteService.DispatchRFP", err, "advisorID", advisorID)
			return nil, fmt.Errorf("advisor %s: %w", advisorID, err)
		}
		advisors = append(advisors, advisor)
	}

	result := &DispatchResult{Invites: []domain.RFPInvite{}}
	for _, advisor := range advisors {
		inv := &domain.RFPInvite{
			RFPID:      rfpID,
			AdvisorID:  advisor.ID,
			Email:      advisor.Email,
			Status:     domain.InviteStatusSent,
			DeadlineAt: deadline,
		}
		if err := s.invites.Create(ctx, inv); err != nil {
			// Already invited by an earlier dispatch; a retried shortlist moves past them.
			if errors.Is(err, repository.ErrInviteExists) {
				result.Skipped++
				continue
			}
			logger.ExitMethodWithError("inviteService.DispatchRFP", err, "advisorID", advisor.ID, "created", len(result.Invites))
			return nil, fmt.Errorf("%w: invite for advisor %s (%d of %d created): %w",
				ErrPersistence, advisor.ID, len(result.Invites), len(advisors), err)
		}

		if err := s.notifications.SendRFPInvite(ctx, inv); err != nil {
			logger.Warn("Invite email failed, will be retried", "inviteID", inv.ID, "error", err)
			result.Failed++
		} else {
			result.Sent++
		}
		result.Invites = append(result.Invites, *inv)
	}

	logger.ExitMethod("inviteService.DispatchRFP", "rfpID", rfpID, "sent", result.Sent, "failed", result.Failed, "skipped", result.Skipped)
	return result, nil
}

// Transition applies an advisor-driven status change through the shared transition table.
func (s *inviteService) Transition(ctx context.Context, callerID, inviteID uuid.UUID, to domain.InviteStatus, reason *string) (*domain.RFPInvite, error) {
	logger.EnterMethod("inviteService.Transition", "inviteID", inviteID, "to", to)

	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, to)
	}

	inv, err := s.invites.GetByID(ctx, inviteID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	advisor, err := s.directory.GetAdvisor(ctx, inv.AdvisorID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if advisor.UserID != callerID {
		return nil, ErrForbidden
	}

	// Re-sending the current status is a no-op, which keeps client retries harmless.
	if inv.Status == to {
		return inv, nil
	}
	if !domain.CanTransition(inv.Status, to, domain.ActorAdvisor) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, inv.Status, to)
	}

	now := s.now()
	if err := s.invites.UpdateStatus(ctx, inv.ID, to, reason, now); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, fmt.Errorf("%w: invite changed concurrently", ErrInvalidTransition)
		}
		logger.ExitMethodWithError("inviteService.Transition", err, "inviteID", inviteID)
		return nil, err
	}

	from := inv.Status
	inv.Status = to
	inv.UpdatedAt = now
	switch to {
	case domain.InviteStatusOpened:
		if inv.OpenedAt == nil {
			inv.OpenedAt = &now
		}
	case domain.InviteStatusSubmitted:
		inv.SubmittedAt = &now
	case domain.InviteStatusDeclined:
		inv.DeclineReason = reason
	}

	if err := s.activity.Create(ctx, &domain.ActivityLog{
		ActorID:    &callerID,
		Action:     domain.ActivityInviteStatusChanged,
		EntityType: domain.EntityRFPInvite,
		EntityID:   inv.ID,
		Meta:       map[string]any{"from": string(from), "to": string(to)},
	}); err != nil {
		logger.Error("Failed to write activity log", "inviteID", inv.ID, "error", err)
	}

	var notifyErr error
	switch to {
	case domain.InviteStatusSubmitted:
		notifyErr = s.notifications.SendProposalSubmitted(ctx, inv)
	case domain.InviteStatusDeclined:
		notifyErr = s.notifications.SendInviteDeclined(ctx, inv)
	}
	if notifyErr != nil {
		logger.Warn("Owner notification failed", "inviteID", inv.ID, "status", to, "error", notifyErr)
	}

	logger.ExitMethod("inviteService.Transition", "inviteID", inviteID, "from", from, "to", to)
	return inv, nil
}

func mapRepoError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
