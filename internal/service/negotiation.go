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

const (
	reasonInitialSubmission   = "initial submission"
	reasonNegotiationResponse = "negotiation response"
	reasonStale               = "no response within the negotiation window"
)

type negotiationService struct {
	negotiations  repository.NegotiationRepository
	proposals     repository.ProposalRepository
	activity      repository.ActivityLogRepository
	directory     repository.DirectoryRepository
	notifications NotificationService
	now           func() time.Time
}

func NewNegotiationService(
	negotiations repository.NegotiationRepository,
	proposals repository.ProposalRepository,
	activity repository.ActivityLogRepository,
	directory repository.DirectoryRepository,
	notifications NotificationService,
) NegotiationService {
	return &negotiationService{
		negotiations:  negotiations,
		proposals:     proposals,
		activity:      activity,
		directory:     directory,
		notifications: notifications,
		now:           time.Now,
	}
}

// RequestNegotiation opens a counter-offer round on a proposal owned by the caller's project.
// Only one active round per proposal is allowed; the existing one is reported in the error.
func (s *negotiationService) RequestNegotiation(ctx context.Context, callerID uuid.UUID, req *NegotiationRequest) (*domain.NegotiationSession, error) {
	logger.EnterMethod("negotiationService.RequestNegotiation", "proposalID", req.ProposalID)

	proposal, err := s.proposals.GetByID(ctx, req.ProposalID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	project, err := s.directory.GetProject(ctx, proposal.ProjectID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if project.OwnerID != callerID {
		return nil, ErrForbidden
	}
	switch proposal.Status {
	case domain.ProposalStatusAccepted, domain.ProposalStatusRejected, domain.ProposalStatusWithdrawn:
		return nil, fmt.Errorf("%w: proposal is %s", ErrInvalidTransition, proposal.Status)
	}

	if existing, err := s.negotiations.FindActiveByProposal(ctx, proposal.ID); err == nil {
		return nil, &ActiveNegotiationError{ExistingSessionID: existing.ID}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	// The first round snapshots the submitted proposal as version 1, saved with the session.
	var snapshot *domain.ProposalVersion
	base, err := s.proposals.LatestVersion(ctx, proposal.ID)
	if errors.Is(err, repository.ErrNotFound) {
		snapshot = proposal.SnapshotVersion(proposal.AdvisorID, reasonInitialSubmission)
		base, err = snapshot, nil
	}
	if err != nil {
		logger.ExitMethodWithError("negotiationService.RequestNegotiation", err, "proposalID", proposal.ID)
		return nil, fmt.Errorf("failed to load proposal version: %w", err)
	}

	session := &domain.NegotiationSession{
		ProjectID:            proposal.ProjectID,
		ProposalID:           proposal.ID,
		AdvisorID:            proposal.AdvisorID,
		InitiatorID:          callerID,
		Status:               domain.NegotiationStatusAwaitingResponse,
		TargetPrice:          req.TargetPrice,
		TargetReductionPct:   req.TargetReductionPct,
		Message:              req.Message,
		FileRefs:             req.FileRefs,
		LineItemAdjustments:  req.LineItemAdjustments,
		MilestoneAdjustments: req.MilestoneAdjustments,
	}
	if snapshot == nil {
		session.BaseVersionID = &base.ID
	}
	if err := s.negotiations.Create(ctx, session, snapshot); err != nil {
		if errors.Is(err, repository.ErrActiveNegotiationExists) {
			// Lost the race to a concurrent request; report the winner.
			if existing, findErr := s.negotiations.FindActiveByProposal(ctx, proposal.ID); findErr == nil {
				return nil, &ActiveNegotiationError{ExistingSessionID: existing.ID}
			}
			return nil, &ActiveNegotiationError{}
		}
		logger.ExitMethodWithError("negotiationService.RequestNegotiation", err, "proposalID", proposal.ID)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	if err := s.proposals.UpdateStatus(ctx, proposal.ID, domain.ProposalStatusNegotiationRequested); err != nil {
		logger.Error("Failed to mark proposal as under negotiation", "proposalID", proposal.ID, "error", err)
	}

	s.record(ctx, &domain.ActivityLog{
		ActorID:    &callerID,
		ProjectID:  &session.ProjectID,
		Action:     domain.ActivityNegotiationRequested,
		EntityType: domain.EntityNegotiation,
		EntityID:   session.ID,
		Meta: map[string]any{
			"proposal_id":     proposal.ID.String(),
			"base_version_id": base.ID.String(),
			"current_price":   proposal.Price,
		},
	})

	if err := s.notifications.SendNegotiationRequest(ctx, session); err != nil {
		logger.Warn("Negotiation request email failed", "sessionID", session.ID, "error", err)
	}

	logger.ExitMethod("negotiationService.RequestNegotiation", "sessionID", session.ID)
	return session, nil
}

// Respond records the advisor's repriced line items as a new proposal version and resolves the session.
func (s *negotiationService) Respond(ctx context.Context, callerID uuid.UUID, reply *NegotiationReply) (*ReplyResult, error) {
	logger.EnterMethod("negotiationService.Respond", "sessionID", reply.SessionID)

	if len(reply.LineItems) == 0 {
		return nil, fmt.Errorf("%w: at least one line item is required", ErrValidation)
	}

	session, err := s.negotiations.GetByID(ctx, reply.SessionID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if session.Status != domain.NegotiationStatusAwaitingResponse {
		return nil, ErrSessionNotAwaitingResponse
	}

	proposal, err := s.proposals.GetByID(ctx, session.ProposalID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	advisor, err := s.directory.GetAdvisor(ctx, proposal.AdvisorID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if advisor.UserID != callerID {
		return nil, ErrForbidden
	}

	current, err := s.proposals.LatestVersion(ctx, proposal.ID)
	if errors.Is(err, repository.ErrNotFound) {
		current = proposal.SnapshotVersion(proposal.AdvisorID, reasonInitialSubmission)
		current.VersionNumber = 0
	} else if err != nil {
		return nil, err
	}

	items, err := mergeLineItems(current.LineItems, reply.LineItems)
	if err != nil {
		return nil, err
	}

	version := &domain.ProposalVersion{
		ProposalID:    proposal.ID,
		VersionNumber: current.VersionNumber + 1,
		Price:         domain.SumLineItems(items),
		TimelineDays:  current.TimelineDays,
		ScopeText:     current.ScopeText,
		Terms:         current.Terms,
		LineItems:     items,
		ChangeReason:  reasonNegotiationResponse,
		CreatedBy:     callerID,
	}
	if reply.TimelineDays != nil {
		version.TimelineDays = *reply.TimelineDays
	}

	now := s.now()
	err = s.negotiations.RecordResponse(ctx, &repository.NegotiationResponse{
		SessionID:         session.ID,
		Version:           version,
		ConsultantMessage: reply.Message,
		ResolvedAt:        now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, ErrSessionNotAwaitingResponse
		}
		logger.ExitMethodWithError("negotiationService.Respond", err, "sessionID", session.ID)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	session.Status = domain.NegotiationStatusAccepted
	session.ResponseVersionID = &version.ID
	session.ConsultantMessage = reply.Message
	session.ResolvedAt = &now

	oldPrice := current.Price
	s.record(ctx, &domain.ActivityLog{
		ActorID:    &callerID,
		ProjectID:  &session.ProjectID,
		Action:     domain.ActivityNegotiationResponded,
		EntityType: domain.EntityNegotiation,
		EntityID:   session.ID,
		Meta: map[string]any{
			"version_id":     version.ID.String(),
			"version_number": version.VersionNumber,
			"old_price":      oldPrice,
			"new_price":      version.Price,
		},
	})

	if err := s.notifications.SendNegotiationResponse(ctx, session, oldPrice, version.Price); err != nil {
		logger.Warn("Negotiation response email failed", "sessionID", session.ID, "error", err)
	}

	logger.ExitMethod("negotiationService.Respond", "sessionID", session.ID, "oldPrice", oldPrice, "newPrice", version.Price)
	return &ReplyResult{Session: session, Version: version, OldPrice: oldPrice, NewPrice: version.Price}, nil
}

// Cancel lets the project owner withdraw an active negotiation.
func (s *negotiationService) Cancel(ctx context.Context, callerID, sessionID uuid.UUID, reason string) (*domain.NegotiationSession, error) {
	session, err := s.negotiations.GetByID(ctx, sessionID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	project, err := s.directory.GetProject(ctx, session.ProjectID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if project.OwnerID != callerID {
		return nil, ErrForbidden
	}
	if !session.Status.CanTransitionTo(domain.NegotiationStatusCancelled) {
		return nil, fmt.Errorf("%w: session is %s", ErrInvalidTransition, session.Status)
	}

	now := s.now()
	if err := s.negotiations.Cancel(ctx, session.ID, now); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, fmt.Errorf("%w: session changed concurrently", ErrInvalidTransition)
		}
		return nil, err
	}
	session.Status = domain.NegotiationStatusCancelled
	session.ResolvedAt = &now

	s.afterCancel(ctx, session, &callerID, reason)
	return session, nil
}

// ExpireStale cancels every active session older than staleAfter and notifies both parties.
func (s *negotiationService) ExpireStale(ctx context.Context, staleAfter time.Duration) ([]domain.NegotiationSession, error) {
	now := s.now()
	cancelled, err := s.negotiations.CancelStale(ctx, now.Add(-staleAfter), now)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel stale negotiations: %w", err)
	}
	for i := range cancelled {
		s.afterCancel(ctx, &cancelled[i], nil, reasonStale)
	}
	return cancelled, nil
}

func (s *negotiationService) afterCancel(ctx context.Context, session *domain.NegotiationSession, actorID *uuid.UUID, reason string) {
	// The proposal goes back to plain submitted so the owner can accept it or negotiate again.
	if err := s.proposals.UpdateStatus(ctx, session.ProposalID, domain.ProposalStatusSubmitted); err != nil {
		logger.Error("Failed to reset proposal status", "proposalID", session.ProposalID, "error", err)
	}

	meta := map[string]any{"proposal_id": session.ProposalID.String()}
	if reason != "" {
		meta["reason"] = reason
	}
	s.record(ctx, &domain.ActivityLog{
		ActorID:    actorID,
		ProjectID:  &session.ProjectID,
		Action:     domain.ActivityNegotiationCancelled,
		EntityType: domain.EntityNegotiation,
		EntityID:   session.ID,
		Meta:       meta,
	})

	if err := s.notifications.SendNegotiationCancelled(ctx, session, reason); err != nil {
		logger.Warn("Negotiation cancellation email failed", "sessionID", session.ID, "error", err)
	}
}

func (s *negotiationService) record(ctx context.Context, entry *domain.ActivityLog) {
	if err := s.activity.Create(ctx, entry); err != nil {
		logger.Error("Failed to write activity log", "action", entry.Action, "entityID", entry.EntityID, "error", err)
	}
}

// mergeLineItems takes the advisor's submitted prices as the new item list, keeping the
// previous description when the advisor did not send one.
func mergeLineItems(previous, submitted []domain.LineItem) ([]domain.LineItem, error) {
	byID := make(map[string]domain.LineItem, len(previous))
	for _, it := range previous {
		byID[it.ID] = it
	}

	seen := make(map[string]bool, len(submitted))
	out := make([]domain.LineItem, 0, len(submitted))
	for _, it := range submitted {
		if it.ID == "" {
			return nil, fmt.Errorf("%w: line item id is required", ErrValidation)
		}
		if seen[it.ID] {
			return nil, fmt.Errorf("%w: duplicate line item %s", ErrValidation, it.ID)
		}
		if it.Price < 0 {
			return nil, fmt.Errorf("%w: line item %s has a negative price", ErrValidation, it.ID)
		}
		seen[it.ID] = true
		if it.Description == "" {
			it.Description = byID[it.ID].Description
		}
		out = append(out, it)
	}
	return out, nil
}
