package service

import (
	"context"
	"time"

	"advisor-marketplace-backend/internal/domain"

	"github.com/google/uuid"
)

type NotificationService interface {
	SendRFPInvite(ctx context.Context, inv *domain.RFPInvite) error
	SendReminder(ctx context.Context, c *domain.ReminderCandidate, rule domain.ReminderRule) error
	SendNegotiationRequest(ctx context.Context, session *domain.NegotiationSession) error
	SendNegotiationResponse(ctx context.Context, session *domain.NegotiationSession, oldPrice, newPrice float64) error
	SendProposalSubmitted(ctx context.Context, inv *domain.RFPInvite) error
	SendInviteDeclined(ctx context.Context, inv *domain.RFPInvite) error
	SendNegotiationCancelled(ctx context.Context, session *domain.NegotiationSession, reason string) error
}

// DispatchResult summarizes one RFP dispatch to a shortlist. Skipped counts advisors who
// already held an invite for the RFP.
type DispatchResult struct {
	Invites []domain.RFPInvite `json:"invites"`
	Sent    int                `json:"sent"`
	Failed  int                `json:"failed"`
	Skipped int                `json:"skipped"`
}

type InviteService interface {
	DispatchRFP(ctx context.Context, ownerID, rfpID uuid.UUID, advisorIDs []uuid.UUID, deadline *time.Time) (*DispatchResult, error)
	Transition(ctx context.Context, callerID, inviteID uuid.UUID, to domain.InviteStatus, reason *string) (*domain.RFPInvite, error)
}

// NegotiationRequest is the entrepreneur's counter-offer on a proposal.
type NegotiationRequest struct {
	ProposalID           uuid.UUID
	TargetPrice          *float64
	TargetReductionPct   *float64
	Message              string
	FileRefs             []string
	LineItemAdjustments  []domain.LineItemAdjustment
	MilestoneAdjustments []domain.MilestoneAdjustment
}

// NegotiationReply is the advisor's answer: the full list of line items with their new prices.
type NegotiationReply struct {
	SessionID    uuid.UUID
	LineItems    []domain.LineItem
	TimelineDays *int
	Message      string
}

// ReplyResult is returned to the advisor after a successful response.
type ReplyResult struct {
	Session  *domain.NegotiationSession `json:"session"`
	Version  *domain.ProposalVersion    `json:"version"`
	OldPrice float64                    `json:"old_price"`
	NewPrice float64                    `json:"new_price"`
}

type NegotiationService interface {
	RequestNegotiation(ctx context.Context, callerID uuid.UUID, req *NegotiationRequest) (*domain.NegotiationSession, error)
	Respond(ctx context.Context, callerID uuid.UUID, reply *NegotiationReply) (*ReplyResult, error)
	Cancel(ctx context.Context, callerID, sessionID uuid.UUID, reason string) (*domain.NegotiationSession, error)
	ExpireStale(ctx context.Context, staleAfter time.Duration) ([]domain.NegotiationSession, error)
}
