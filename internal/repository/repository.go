package repository

import (
	"context"
	"errors"
	"time"

	"advisor-marketplace-backend/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("record not found")

	// ErrStaleState means a guarded UPDATE matched no row because the record moved on.
	ErrStaleState = errors.New("record is no longer in the expected state")

	// ErrActiveNegotiationExists is returned when the one-active-session index rejects an insert.
	ErrActiveNegotiationExists = errors.New("an active negotiation already exists for this proposal")

	// ErrInviteExists is returned when the advisor already holds an invite for the RFP.
	ErrInviteExists = errors.New("advisor is already invited to this RFP")
)

type InviteRepository interface {
	Create(ctx context.Context, inv *domain.RFPInvite) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.RFPInvite, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, to domain.InviteStatus, declineReason *string, now time.Time) error
	ExpireOverdue(ctx context.Context, now time.Time) ([]domain.RFPInvite, error)

	// Reminders
	ListReminderCandidates(ctx context.Context, rule domain.ReminderRule, now time.Time) ([]domain.ReminderCandidate, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, stage int, now time.Time) (bool, error)

	// Delivery bookkeeping
	ListUndelivered(ctx context.Context, maxAttempts int, now time.Time) ([]domain.RFPInvite, error)
	RecordEmailAttempt(ctx context.Context, id uuid.UUID, sendErr error, now time.Time) error
}

// NegotiationResponse is everything persisted atomically when an advisor answers a session.
type NegotiationResponse struct {
	SessionID         uuid.UUID
	Version           *domain.ProposalVersion
	ConsultantMessage string
	ResolvedAt        time.Time
}

type NegotiationRepository interface {
	// Create inserts the session. A non-nil snapshot is stored first, in the same transaction,
	// and becomes the session's base version.
	Create(ctx context.Context, session *domain.NegotiationSession, snapshot *domain.ProposalVersion) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.NegotiationSession, error)
	FindActiveByProposal(ctx context.Context, proposalID uuid.UUID) (*domain.NegotiationSession, error)
	Cancel(ctx context.Context, id uuid.UUID, now time.Time) error
	CancelStale(ctx context.Context, createdBefore, now time.Time) ([]domain.NegotiationSession, error)
	RecordResponse(ctx context.Context, resp *NegotiationResponse) error
	StampNotified(ctx context.Context, id uuid.UUID, party string, now time.Time) error
}

type ProposalRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Proposal, error)
	ListVersions(ctx context.Context, proposalID uuid.UUID) ([]domain.ProposalVersion, error)
	LatestVersion(ctx context.Context, proposalID uuid.UUID) (*domain.ProposalVersion, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ProposalStatus) error
}

type ActivityLogRepository interface {
	Create(ctx context.Context, entry *domain.ActivityLog) error
}

// DirectoryRepository reads the people and projects notifications are addressed to.
type DirectoryRepository interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
	GetAdvisor(ctx context.Context, id uuid.UUID) (*domain.Advisor, error)
	GetProject(ctx context.Context, id uuid.UUID) (*domain.Project, error)
	GetRFP(ctx context.Context, id uuid.UUID) (*domain.RFP, error)
	ListTeamMembers(ctx context.Context, advisorID uuid.UUID) ([]domain.TeamMember, error)
}

// Negotiation parties for StampNotified.
const (
	PartyAdvisor      = "advisor"
	PartyEntrepreneur = "entrepreneur"
)
